package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/servicehub/internal/config"
)

// Config controls the background jobs.
type Config struct {
	Enabled      bool
	EarningsCron string
	JobTimeout   time.Duration
	LockTTL      time.Duration
	BatchSize    int
	// Tolerance is the largest stored/computed earnings difference that is
	// not reported as drift.
	Tolerance float64
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		EarningsCron: "@every 15m",
		JobTimeout:   2 * time.Minute,
		LockTTL:      5 * time.Minute,
		BatchSize:    500,
		Tolerance:    0.005,
	}
}

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.Enabled = cfg.Scheduler.Enabled
	if spec := strings.TrimSpace(cfg.Scheduler.EarningsCron); spec != "" {
		c.EarningsCron = spec
	}
	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.EarningsCron) == "" {
		c.EarningsCron = defaults.EarningsCron
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Tolerance <= 0 {
		c.Tolerance = defaults.Tolerance
	}
	return c
}
