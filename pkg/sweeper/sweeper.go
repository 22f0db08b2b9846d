// Package sweeper periodically removes expired uploads from a data store.
//
// A data store that supports expiration exposes a bulk deletion operation;
// the sweeper merely drives it on a fixed interval for the lifetime of a
// context. Uploads expire when their last write is older than the configured
// expiration period, matching the Upload-Expires values the handler reports
// to clients.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredDeleter is the single operation the sweeper needs from a data
// store. *mongostore.MongoStore implements it.
type ExpiredDeleter interface {
	// DeleteExpired removes every upload whose last write happened before the
	// given time, cascading to its stored data, and returns how many uploads
	// were removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper deletes expired uploads on a fixed interval.
type Sweeper struct {
	// Store is the data store to sweep.
	Store ExpiredDeleter
	// Period is the time after an upload's last write at which it expires.
	Period time.Duration
	// Interval is the time between two sweeps. Defaults to one minute.
	Interval time.Duration
	// Logger receives a summary line per sweep. Defaults to slog.Default().
	Logger *slog.Logger
}

// Start runs the sweep loop until ctx is cancelled. It returns immediately;
// the loop runs on its own goroutine. A sweeper with a zero Period does
// nothing, since uploads then never expire.
func (s *Sweeper) Start(ctx context.Context) {
	if s.Period <= 0 {
		return
	}

	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx, logger)
			}
		}
	}()
}

func (s *Sweeper) sweep(ctx context.Context, logger *slog.Logger) {
	start := time.Now()
	deleted, err := s.Store.DeleteExpired(ctx, start.Add(-s.Period))
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("ExpirationSweepError", "error", err)
		}
		return
	}

	logger.Debug("ExpirationSweepFinish", "deleted", deleted, "duration", time.Since(start).String())
}
