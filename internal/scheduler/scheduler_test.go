package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/unisphere-digest/internal/app/models"
	"github.com/yigit/unisphere-digest/internal/pkg/logger"
)

type fakeRunner struct {
	calls chan time.Time
	err   error
}

func (f *fakeRunner) RunAll(_ context.Context, asOf time.Time) ([]*models.DeliveryReport, error) {
	select {
	case f.calls <- asOf:
	default:
	}
	if f.err != nil {
		return nil, f.err
	}
	return []*models.DeliveryReport{{SchoolID: 1, Sent: 2}}, nil
}

func TestNextRun(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	d := NewDaily(nil, 6, 30, ist, logger.Nop())

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before trigger", time.Date(2019, 7, 16, 5, 0, 0, 0, ist), time.Date(2019, 7, 16, 6, 30, 0, 0, ist)},
		{"exactly at trigger", time.Date(2019, 7, 16, 6, 30, 0, 0, ist), time.Date(2019, 7, 17, 6, 30, 0, 0, ist)},
		{"after trigger", time.Date(2019, 7, 16, 18, 0, 0, 0, ist), time.Date(2019, 7, 17, 6, 30, 0, 0, ist)},
		{"end of month", time.Date(2019, 7, 31, 23, 0, 0, 0, ist), time.Date(2019, 8, 1, 6, 30, 0, 0, ist)},
		// 01:30 UTC is 07:00 IST, already past today's trigger
		{"now in another zone", time.Date(2019, 7, 16, 1, 30, 0, 0, time.UTC), time.Date(2019, 7, 17, 6, 30, 0, 0, ist)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.NextRun(tt.now)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.Equal(t, ist, got.Location())
		})
	}
}

func TestStart_TriggersAndStops(t *testing.T) {
	runner := &fakeRunner{calls: make(chan time.Time, 1)}
	d := NewDaily(runner, 0, 0, time.UTC, logger.Nop())

	trigger := time.Now().Add(20 * time.Millisecond)
	d.now = func() time.Time { return trigger.Add(-24 * time.Hour).Add(time.Nanosecond) }
	d.hour, d.minute = trigger.UTC().Hour(), trigger.UTC().Minute()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	select {
	case asOf := <-runner.calls:
		assert.Equal(t, d.hour, asOf.Hour())
		assert.Equal(t, d.minute, asOf.Minute())
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("scheduler did not trigger")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestTrigger_RunnerError(t *testing.T) {
	runner := &fakeRunner{calls: make(chan time.Time, 1), err: errors.New("database down")}
	d := NewDaily(runner, 6, 0, time.UTC, logger.Nop())

	asOf := time.Date(2019, 7, 16, 6, 0, 0, 0, time.UTC)
	d.trigger(context.Background(), asOf)

	require.Len(t, runner.calls, 1)
	assert.True(t, asOf.Equal(<-runner.calls))
}
