package stores

import (
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Retention periodically purges exchanges older than MaxAge.
type Retention struct {
	Store    ExchangeStore
	Schedule string
	MaxAge   time.Duration
	Logger   zerolog.Logger

	now       func() time.Time
	scheduler *cron.Cron
}

// NewRetention validates the schedule and returns an unstarted job.
func NewRetention(store ExchangeStore, schedule string, maxAge time.Duration, logger zerolog.Logger) (*Retention, error) {
	if store == nil {
		return nil, errNilDB
	}
	if maxAge <= 0 {
		return nil, errors.Errorf("retention max age must be positive, got %s", maxAge)
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, errors.Wrapf(err, "invalid retention schedule %q", schedule)
	}
	return &Retention{
		Store:    store,
		Schedule: schedule,
		MaxAge:   maxAge,
		Logger:   logger,
		now:      time.Now,
	}, nil
}

// RunOnce purges expired exchanges immediately.
func (r *Retention) RunOnce() (int64, error) {
	cutoff := r.now().Add(-r.MaxAge)
	n, err := r.Store.PurgeBefore(cutoff)
	if err != nil {
		r.Logger.Error().Err(err).Msg("transcript purge failed")
		return 0, err
	}
	r.Logger.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("transcript purge complete")
	return n, nil
}

// Start schedules the purge job.
func (r *Retention) Start() error {
	r.scheduler = cron.New()
	if _, err := r.scheduler.AddFunc(r.Schedule, func() {
		_, _ = r.RunOnce()
	}); err != nil {
		return errors.Wrap(err, "failed to add retention schedule")
	}
	r.scheduler.Start()
	r.Logger.Info().Str("schedule", r.Schedule).Dur("max_age", r.MaxAge).Msg("transcript retention scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running purge to finish.
func (r *Retention) Stop() {
	if r.scheduler == nil {
		return
	}
	<-r.scheduler.Stop().Done()
}
