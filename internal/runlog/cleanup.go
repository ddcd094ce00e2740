package runlog

import (
	"context"
	"log/slog"
	"time"
)

// pruneFunc deletes every record stamped before cutoff and reports how many went.
type pruneFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// sweeper enforces the retention window of a SQL store from a background goroutine.
// A nil *sweeper is valid and does nothing.
type sweeper struct {
	prune  pruneFunc
	window time.Duration
	cancel context.CancelFunc
	done   chan struct{}
}

// startSweeper prunes once right away and then every interval. It returns nil when
// retentionDays disables expiry.
func startSweeper(retentionDays int, interval time.Duration, prune pruneFunc) *sweeper {
	if retentionDays <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &sweeper{
		prune:  prune,
		window: time.Duration(retentionDays) * 24 * time.Hour,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.loop(ctx, interval)
	return s
}

func (s *sweeper) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *sweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	deleted, err := s.prune(ctx, time.Now().Add(-s.window))
	switch {
	case err != nil && ctx.Err() == nil:
		slog.Error("run history retention failed", "error", err)
	case deleted > 0:
		slog.Info("expired run history removed", "deleted", deleted, "retention", s.window)
	}
}

// stop ends the loop and waits for an in-flight sweep. Safe to call more than once.
func (s *sweeper) stop() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}
