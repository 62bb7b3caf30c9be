package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avdeyev/feedpoll/app/cfg"
	"github.com/avdeyev/feedpoll/app/database"
	"github.com/avdeyev/feedpoll/app/tasks"
	"github.com/avdeyev/feedpoll/app/telemetry"
)

type Handler struct {
	seenRepo  database.SeenRepository
	recorder  *telemetry.Recorder
	scheduler tasks.TaskSchedulerInterface
}

func NewHandler(seenRepo database.SeenRepository, recorder *telemetry.Recorder,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		seenRepo:  seenRepo,
		recorder:  recorder,
		scheduler: scheduler,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if _, err := h.seenRepo.SeenCount(); err != nil {
		slog.Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "store unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": cfg.GetVersion(),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	seenCount, err := h.seenRepo.SeenCount()
	if err != nil {
		slog.Error("Database error", "operation", "seen_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"collection":   h.recorder.Snapshot(),
		"seen_records": seenCount,
	})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"feeds": h.scheduler.Status(),
	})
}
