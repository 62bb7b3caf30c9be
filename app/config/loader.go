package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of feed source configurations
type Loader struct {
	sourcesDir string
}

// NewLoader creates a new source configuration loader
func NewLoader(sourcesDir string) *Loader {
	return &Loader{sourcesDir: sourcesDir}
}

// LoadAll loads all YAML source files from the sources directory, keyed by feed ID.
// Sources are immutable for the lifetime of the process; a reload requires a restart.
func (l *Loader) LoadAll() (map[string]*SourceConfig, error) {
	configs := make(map[string]*SourceConfig)

	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return configs, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		config, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(config); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", file, err)
		}

		if _, exists := configs[config.Feed.ID]; exists {
			return nil, fmt.Errorf("duplicate feed ID %q in %s", config.Feed.ID, file)
		}

		configs[config.Feed.ID] = config
		slog.Debug("Loaded source configuration", "file", file, "feed", config.Feed.ID)
	}

	return configs, nil
}

// loadFile loads a single YAML source configuration file
func (l *Loader) loadFile(path string) (*SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config SourceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	l.setDefaults(&config)

	return &config, nil
}

// setDefaults applies default values to a source configuration
func (l *Loader) setDefaults(config *SourceConfig) {
	if config.Settings.PollInterval == 0 {
		config.Settings.PollInterval = 300 // seconds
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30 // seconds
	}
}

// validate validates a source configuration
func (l *Loader) validate(config *SourceConfig) error {
	if config.Feed.ID == "" {
		return fmt.Errorf("feed ID is required")
	}
	if config.Feed.URL == "" {
		return fmt.Errorf("feed URL is required")
	}

	u, err := url.Parse(config.Feed.URL)
	if err != nil {
		return fmt.Errorf("feed URL is not well-formed: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("feed URL must use http or https, got %q", u.Scheme)
	}

	if config.Settings.PollInterval < 0 {
		return fmt.Errorf("poll interval must be non-negative")
	}
	if config.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	return nil
}
