package config

import (
	"fmt"
	"strings"
)

// TelemetryConfig holds configuration for robot telemetry ingestion over
// MQTT. Readings arrive on <state_topic_prefix>/<reading> when pushed and on
// <response_topic_prefix>/<reading> after a poll.
type TelemetryConfig struct {
	Enabled         bool   `json:"enabled"`
	Mode            string `json:"mode"`
	IntervalSeconds int    `json:"interval_seconds"`
	RequestTopic    string `json:"request_topic"`
	ResponsePrefix  string `json:"response_topic_prefix"`
	StatePrefix     string `json:"state_topic_prefix"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	// SampleBuffer sizes the bus feeding telemetry samples to metrics sinks.
	SampleBuffer int `json:"sample_buffer"`
}

// SetDefaults applies sane defaults.
func (c *TelemetryConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "push"
	}
	if c.RequestTopic == "" {
		c.RequestTopic = "rounds/robot/poll"
	}
	if c.ResponsePrefix == "" {
		c.ResponsePrefix = "rounds/robot/response"
	}
	if c.StatePrefix == "" {
		c.StatePrefix = "rounds/robot/state"
	}
	if c.SampleBuffer <= 0 {
		c.SampleBuffer = 64
	}
}

// Validate checks the ingestion mode.
func (c TelemetryConfig) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "push", "pull", "hybrid":
		return nil
	}
	return fmt.Errorf("unknown mode %q", c.Mode)
}

func (c TelemetryConfig) Interval() int {
	if c.IntervalSeconds <= 0 {
		return 10
	}
	return c.IntervalSeconds
}

func (c TelemetryConfig) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return 3
	}
	return c.TimeoutSeconds
}
