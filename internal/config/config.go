package config

import "time"

// Config holds the harness settings.
type Config struct {
	// PsqlPath is the external SQL client binary.
	PsqlPath string `mapstructure:"psql_path" yaml:"psql_path"`

	// TimeoutSeconds is the global timeout budget. Poll budgets and
	// subprocess timeouts derive from it.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`

	// PollIntervalMs is the sleep between poll attempts.
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// PollBudget bounds a polling loop. It is derived per call and never
// persisted, so a configuration change takes effect on the next loop.
type PollBudget struct {
	Interval    time.Duration
	MaxAttempts int
}

// PollBudget derives the retry budget from the global timeout: ten attempts
// per timeout second, so the loop runs for roughly the full timeout at the
// default interval.
func (c *Config) PollBudget() PollBudget {
	return PollBudget{
		Interval:    time.Duration(c.PollIntervalMs) * time.Millisecond,
		MaxAttempts: 10 * c.TimeoutSeconds,
	}
}

// Timeout returns the global timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
