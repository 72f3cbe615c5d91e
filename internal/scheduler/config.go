package scheduler

import (
	"time"

	"github.com/smallbiznis/privatedrops/internal/config"
)

// Config controls job intervals and batch sizes.
type Config struct {
	Enabled          bool
	TickInterval     time.Duration
	JobTimeout       time.Duration
	LockTTL          time.Duration
	ModerateInterval time.Duration
	ModerateBatch    int
	NonceInterval    time.Duration
	MetricsInterval  time.Duration
	LimiterInterval  time.Duration
	EnabledJobs      []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		TickInterval:     10 * time.Second,
		JobTimeout:       30 * time.Second,
		LockTTL:          2 * time.Minute,
		ModerateInterval: time.Minute,
		ModerateBatch:    25,
		NonceInterval:    10 * time.Minute,
		MetricsInterval:  30 * time.Second,
		LimiterInterval:  5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	sc := cfg.Scheduler
	return Config{
		Enabled:          sc.Enabled,
		LockTTL:          sc.LockTTL,
		ModerateInterval: sc.ModerateInterval,
		ModerateBatch:    sc.ModerateBatch,
		NonceInterval:    sc.NonceInterval,
		MetricsInterval:  sc.MetricsInterval,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.ModerateInterval <= 0 {
		c.ModerateInterval = defaults.ModerateInterval
	}
	if c.ModerateBatch <= 0 {
		c.ModerateBatch = defaults.ModerateBatch
	}
	if c.NonceInterval <= 0 {
		c.NonceInterval = defaults.NonceInterval
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = defaults.MetricsInterval
	}
	if c.LimiterInterval <= 0 {
		c.LimiterInterval = defaults.LimiterInterval
	}
	return c
}
