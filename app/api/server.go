package api

import (
	"github.com/gin-gonic/gin"
)

// NewServer creates the read-only status HTTP server. It exposes telemetry
// and schedule state; collected items only ever leave through the output
// sink, never through this API.
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", handler.HealthCheck)
	r.GET("/stats", handler.GetStats)
	r.GET("/feeds", handler.ListFeeds)

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "Feedpoll",
			"description": "Scheduled RSS/Atom collection with cross-run deduplication",
			"endpoints": map[string]string{
				"health": "/health",
				"stats":  "/stats",
				"feeds":  "/feeds",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})

	return r
}
