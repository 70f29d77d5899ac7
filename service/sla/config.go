package sla

import (
	"fmt"
	"time"
)

// Config controls the sweep.
type Config struct {
	// Interval between sweeps started by Start.
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	// Workers bounds the number of instances ticked concurrently.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
	// AlertThreshold is the number of consecutive failed sweeps of one
	// instance after which an escalation failure alert is raised.
	AlertThreshold int `json:"alertThreshold" yaml:"alertThreshold" mapstructure:"alertThreshold"`
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{
		Interval:       time.Minute,
		Workers:        8,
		AlertThreshold: 3,
	}
}

// Init fills unset fields with their defaults.
func (c *Config) Init() {
	defaults := DefaultConfig()
	if c.Interval == 0 {
		c.Interval = defaults.Interval
	}
	if c.Workers == 0 {
		c.Workers = defaults.Workers
	}
	if c.AlertThreshold == 0 {
		c.AlertThreshold = defaults.AlertThreshold
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive: %v", c.Interval)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("sweep workers must be positive: %v", c.Workers)
	}
	if c.AlertThreshold <= 0 {
		return fmt.Errorf("sweep alert threshold must be positive: %v", c.AlertThreshold)
	}
	return nil
}
