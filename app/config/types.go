package config

// SourceConfig represents a complete feed source configuration
type SourceConfig struct {
	Feed     FeedInfo       `yaml:"feed"`
	Settings SourceSettings `yaml:"settings"`
}

// FeedInfo contains the stable identity of a feed source
type FeedInfo struct {
	ID   string `yaml:"id"`
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// SourceSettings contains per-source collection settings
type SourceSettings struct {
	Enabled      bool              `yaml:"enabled"`
	PollInterval int               `yaml:"poll_interval"` // seconds
	Timeout      int               `yaml:"timeout"`       // seconds
	Headers      map[string]string `yaml:"headers"`       // extra HTTP headers sent on every fetch
}
