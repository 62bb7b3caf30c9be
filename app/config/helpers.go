package config

import (
	"time"
)

// GetPollInterval returns the polling interval as time.Duration
func (s *SourceSettings) GetPollInterval() time.Duration {
	if s.PollInterval <= 0 {
		return 300 * time.Second
	}
	return time.Duration(s.PollInterval) * time.Second
}

// GetTimeout returns the per-request timeout as time.Duration
func (s *SourceSettings) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}
