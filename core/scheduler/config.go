package scheduler

import (
	"fmt"
	"time"
)

// Config holds trigger, retry and sweep settings.
type Config struct {
	// Timezone is the IANA name of the site timezone.
	Timezone string `json:"timezone"`
	// Retries is the number of attempts after the first one. Zero selects
	// the default.
	Retries             int    `json:"retries"`
	BackoffSeconds      int    `json:"backoff_seconds"`
	BatchTimeoutSeconds int    `json:"batch_timeout_seconds"`
	TriggerSpec         string `json:"trigger_spec"`
	SweepSpec           string `json:"sweep_spec"`
	SweepBackoffSeconds int    `json:"sweep_backoff_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Europe/London"
	}
	if c.Retries == 0 {
		c.Retries = 3
	}
	if c.BackoffSeconds == 0 {
		c.BackoffSeconds = 60
	}
	if c.BatchTimeoutSeconds == 0 {
		c.BatchTimeoutSeconds = 20
	}
	if c.TriggerSpec == "" {
		c.TriggerSpec = "* * * * *"
	}
	if c.SweepSpec == "" {
		c.SweepSpec = "0 1 * * 1"
	}
	if c.SweepBackoffSeconds == 0 {
		c.SweepBackoffSeconds = 300
	}
}

// Validate checks the timezone and numeric bounds.
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if c.Retries < 0 || c.BackoffSeconds < 0 || c.SweepBackoffSeconds < 0 {
		return fmt.Errorf("retries and backoff must not be negative")
	}
	if c.BatchTimeoutSeconds < 0 {
		return fmt.Errorf("batch_timeout_seconds must not be negative")
	}
	return nil
}

// Location loads the site timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// TriggerPolicy is the retry policy of a trigger cycle.
func (c Config) TriggerPolicy() RetryPolicy {
	return RetryPolicy{Retries: c.Retries, Backoff: time.Duration(c.BackoffSeconds) * time.Second}
}

// SweepPolicy is the retry policy of the weekly sweep.
func (c Config) SweepPolicy() RetryPolicy {
	return RetryPolicy{Retries: c.Retries, Backoff: time.Duration(c.SweepBackoffSeconds) * time.Second}
}

// BatchTimeout bounds the plan build of a single batch.
func (c Config) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSeconds) * time.Second
}
