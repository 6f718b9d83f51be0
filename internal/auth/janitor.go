// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultSweepInterval is how often the janitor removes expired sessions.
const DefaultSweepInterval = 15 * time.Minute

// Janitor periodically deletes expired sessions. Expired sessions are
// already unauthenticated at resolve time; the sweep only reclaims
// storage.
type Janitor struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger

	// OnSweep, when set, observes the number of sessions each sweep
	// removed. Set it before calling Run.
	OnSweep func(count int64)
}

// NewJanitor creates a Janitor. A non-positive interval falls back to
// DefaultSweepInterval.
func NewJanitor(manager *Manager, interval time.Duration, logger *slog.Logger) (*Janitor, error) {
	if manager == nil {
		return nil, oops.Code("SESSION_JANITOR_INVALID").Errorf("session manager is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{manager: manager, interval: interval, logger: logger}, nil
}

// Run sweeps on a ticker until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.manager.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				j.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				j.logger.Debug("expired sessions removed", "count", n)
			}
			if j.OnSweep != nil {
				j.OnSweep(n)
			}
		}
	}
}
