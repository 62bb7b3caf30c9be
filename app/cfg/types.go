package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	OutputDir         string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	CycleTimeout      int
	ShutdownGrace     int
	RetentionDays     int

	// Fetch configuration
	FetchRetries  int
	MaxBodyBytes  int64
	UserAgent     string

	// Application metadata
	Debug   bool
	Version string
}
