package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/unisphere-digest/internal/app/models"
)

// Runner runs the digest for every school
type Runner interface {
	RunAll(ctx context.Context, asOf time.Time) ([]*models.DeliveryReport, error)
}

// Daily triggers one RunAll per day at hour:minute in loc. The trigger time is
// used as asOf so a delayed run still covers the intended window.
type Daily struct {
	runner Runner
	hour   int
	minute int
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
}

// NewDaily creates a daily scheduler
func NewDaily(runner Runner, hour, minute int, loc *time.Location, logger zerolog.Logger) *Daily {
	if loc == nil {
		loc = time.UTC
	}
	return &Daily{
		runner: runner,
		hour:   hour,
		minute: minute,
		loc:    loc,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// NextRun returns the first trigger strictly after now
func (d *Daily) NextRun(now time.Time) time.Time {
	local := now.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

// Start blocks, running digests at each trigger until ctx is cancelled
func (d *Daily) Start(ctx context.Context) {
	for {
		next := d.NextRun(d.now())
		d.logger.Info().Time("nextRun", next).Msg("Next digest run scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			d.logger.Info().Msg("Scheduler stopped")
			return
		case <-timer.C:
		}

		d.trigger(ctx, next)
	}
}

func (d *Daily) trigger(ctx context.Context, asOf time.Time) {
	reports, err := d.runner.RunAll(ctx, asOf)
	if err != nil {
		d.logger.Error().Err(err).Time("asOf", asOf).Msg("Scheduled digest run failed")
		return
	}

	sent, failed, errored := 0, 0, 0
	for _, r := range reports {
		sent += r.Sent
		failed += r.Failed
		if r.Error != "" {
			errored++
		}
	}
	d.logger.Info().
		Time("asOf", asOf).
		Int("schools", len(reports)).
		Int("schoolsWithErrors", errored).
		Int("sent", sent).
		Int("failed", failed).
		Msg("Scheduled digest run finished")
}
