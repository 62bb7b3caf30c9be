package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/feedpoll.db" description:"Path to the SQLite database file holding seen-item state"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing feed source configuration files"`
	OutputDir         string `long:"output-dir" env:"OUTPUT_DIR" default:"./out" description:"Directory for JSONL output files (empty disables the file sink)"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP status API port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Maximum number of feeds fetched concurrently"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"10" description:"Scheduler tick interval in seconds"`
	CycleTimeout      int    `long:"cycle-timeout" env:"CYCLE_TIMEOUT" default:"300" description:"Maximum duration of a single collection cycle in seconds"`
	ShutdownGrace     int    `long:"shutdown-grace" env:"SHUTDOWN_GRACE" default:"30" description:"Seconds to let in-flight cycles finish before hard stop"`
	RetentionDays     int    `long:"retention-days" env:"RETENTION_DAYS" default:"30" description:"Days to retain seen-item records before eviction"`

	// Fetch configuration
	FetchRetries int    `long:"fetch-retries" env:"FETCH_RETRIES" default:"3" description:"Retries after the initial fetch attempt for transient failures"`
	MaxBodyBytes int64  `long:"max-body-bytes" env:"MAX_BODY_BYTES" default:"10485760" description:"Maximum feed payload size in bytes"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"Feedpoll/1.0" description:"User agent string for HTTP requests"`

	// Application metadata
	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		OutputDir:         raw.OutputDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		CycleTimeout:      raw.CycleTimeout,
		ShutdownGrace:     raw.ShutdownGrace,
		RetentionDays:     raw.RetentionDays,
		FetchRetries:      raw.FetchRetries,
		MaxBodyBytes:      raw.MaxBodyBytes,
		UserAgent:         raw.UserAgent,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}
