// Package limiter throttles password logins per (email, client address).
package limiter

import (
	"context"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login may be attempted and, if not, for how long it stays blocked.
	Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, email string, ipHash []byte) error
	// Failure records a failed attempt; it reports whether a lockout was placed.
	Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
}

// Config holds thresholds for the sliding-window lockout.
type Config struct {
	MaxFails int
	Window   time.Duration
	BlockFor time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxFails <= 0 {
		c.MaxFails = 5
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.BlockFor <= 0 {
		c.BlockFor = 15 * time.Minute
	}
	return c
}

// Nop never blocks. Used when no database-backed limiter is configured.
type Nop struct{}

func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return true, 0, nil
}

func (Nop) Success(context.Context, string, []byte) error { return nil }

func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}
