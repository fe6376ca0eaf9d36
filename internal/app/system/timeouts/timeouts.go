// Package timeouts holds the deadlines applied to store calls.
//
// Every read or write against either Mongo database runs under one of these
// so a stalled store surfaces as an Unavailable error instead of a hung
// request. Pick by the shape of the work:
//   - Ping: connectivity checks
//   - Short: single-document reads and writes
//   - Medium: paged lists, counts, multi-step flows inside one request
//   - Long: background sweeps across whole collections
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults used until Configure or ConfigureFromEnv changes them.
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 60 * time.Second
)

// Config holds timeout values. Zero fields are ignored by Configure.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

var (
	mu      sync.RWMutex
	current = defaults()
)

func defaults() Config {
	return Config{Ping: DefaultPing, Short: DefaultShort, Medium: DefaultMedium, Long: DefaultLong}
}

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(current)
}

// Ping is the deadline for health checks.
func Ping() time.Duration { return get(func(c Config) time.Duration { return c.Ping }) }

// Short is the deadline for single-document operations.
func Short() time.Duration { return get(func(c Config) time.Duration { return c.Short }) }

// Medium is the deadline for lists and multi-step request flows.
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }

// Long is the deadline for background sweeps.
func Long() time.Duration { return get(func(c Config) time.Duration { return c.Long }) }

// Configure overrides the non-zero fields of cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	apply(&current.Ping, cfg.Ping)
	apply(&current.Short, cfg.Short)
	apply(&current.Medium, cfg.Medium)
	apply(&current.Long, cfg.Long)
}

func apply(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// Reset restores the defaults. Tests use it to undo Configure.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = defaults()
}

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// envKeys maps environment variables to the field they set.
var envKeys = []struct {
	name string
	set  func(*Config, time.Duration)
}{
	{"TIMEOUT_PING", func(c *Config, d time.Duration) { c.Ping = d }},
	{"TIMEOUT_SHORT", func(c *Config, d time.Duration) { c.Short = d }},
	{"TIMEOUT_MEDIUM", func(c *Config, d time.Duration) { c.Medium = d }},
	{"TIMEOUT_LONG", func(c *Config, d time.Duration) { c.Long = d }},
}

// ConfigureFromEnv reads TIMEOUT_PING, TIMEOUT_SHORT, TIMEOUT_MEDIUM and
// TIMEOUT_LONG (Go duration strings). Unset or invalid values are skipped.
// Returns how many values were applied.
func ConfigureFromEnv() int {
	var cfg Config
	n := 0
	for _, k := range envKeys {
		v := os.Getenv(k.name)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			k.set(&cfg, d)
			n++
		}
	}
	Configure(cfg)
	return n
}

// WithTimeout wraps context.WithTimeout and logs a warning from the cancel
// func when the deadline was the reason the operation ended.
//
//	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Long(), log, "membership reconcile")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout))
		}
		cancel()
	}
}
