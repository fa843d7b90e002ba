package poller

import (
	"time"

	"github.com/smallbiznis/claimsync/internal/config"
)

// Config controls the reconciliation polling loop.
type Config struct {
	PollInterval    time.Duration
	BackoffInterval time.Duration
	// CommitTimeout bounds the cursor and heartbeat writes after a batch.
	CommitTimeout time.Duration
	// StartBlock seeds missing cursors. Negative means the current confirmed head.
	StartBlock int64
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    2 * time.Second,
		BackoffInterval: 5 * time.Second,
		CommitTimeout:   10 * time.Second,
		StartBlock:      -1,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.BackoffInterval <= 0 {
		c.BackoffInterval = defaults.BackoffInterval
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = defaults.CommitTimeout
	}
	return c
}

// ConfigFrom derives the loop settings from the process config.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		PollInterval:    cfg.Poller.PollInterval,
		BackoffInterval: cfg.Poller.BackoffInterval,
		StartBlock:      cfg.Chain.StartBlock,
	}.withDefaults()
}
