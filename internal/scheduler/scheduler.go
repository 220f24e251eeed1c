package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Expirer settles ledger rows that never got a result.
type Expirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor periodically expires submissions left pending longer than
// PendingTimeout, e.g. after a crash between sending and recording the result.
type Janitor struct {
	Repo           Expirer
	Interval       time.Duration
	PendingTimeout time.Duration
	Log            *zap.Logger

	now func() time.Time
}

func (j *Janitor) Run(ctx context.Context) error {
	t := time.NewTicker(j.Interval)
	defer t.Stop()

	// kick immediately
	j.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			j.tick(ctx)
		}
	}
}

func (j *Janitor) tick(ctx context.Context) {
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	n, err := j.Repo.ExpirePending(ctx, now().Add(-j.PendingTimeout))
	if err != nil {
		j.Log.Warn("janitor: expire pending submissions failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.Log.Info("janitor: expired pending submissions", zap.Int64("count", n))
	}
}
