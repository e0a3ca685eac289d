// Package jobs holds the River workers run by the API process.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

type ExpireRedemptionsArgs struct{}

func (ExpireRedemptionsArgs) Kind() string { return "expire_redemptions" }

// InsertOpts keeps at most one sweep queued per interval.
func (ExpireRedemptionsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{UniqueOpts: river.UniqueOpts{ByPeriod: time.Minute}}
}

// Expirer is the redemption engine operation the sweep drives.
type Expirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

type ExpireRedemptionsWorker struct {
	river.WorkerDefaults[ExpireRedemptionsArgs]
	expirer Expirer
	log     *slog.Logger
}

func NewExpireRedemptionsWorker(e Expirer, log *slog.Logger) *ExpireRedemptionsWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ExpireRedemptionsWorker{expirer: e, log: log}
}

func (w *ExpireRedemptionsWorker) Timeout(*river.Job[ExpireRedemptionsArgs]) time.Duration {
	return 30 * time.Second
}

func (w *ExpireRedemptionsWorker) Work(ctx context.Context, _ *river.Job[ExpireRedemptionsArgs]) error {
	n, err := w.expirer.ExpireDue(ctx)
	if err != nil {
		return fmt.Errorf("expire redemptions: %w", err)
	}
	if n > 0 {
		w.log.Info("redemptions expired", "count", n)
	}
	return nil
}

// PeriodicExpiry schedules the sweep every interval, starting at boot.
func PeriodicExpiry(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return ExpireRedemptionsArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
