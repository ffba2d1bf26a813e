package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestScheduleReplayRejectsBadExpression(t *testing.T) {
	s := NewScheduler(quietLogger())
	_, err := s.ScheduleReplay("not a cron", time.Minute, func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.Error(t, s.Start(), "nothing scheduled")
}

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(quietLogger())
	id, err := s.ScheduleReplay("0 3 * * *", time.Minute, func(context.Context) error { return nil })
	require.NoError(t, err)
	require.Len(t, s.Entries(), 1)
	assert.True(t, s.GetNextRun().IsZero(), "no next run before start")

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())
	assert.Error(t, s.RemoveJob(id))

	next := s.GetNextRun()
	require.False(t, next.IsZero())
	assert.Equal(t, 3, next.UTC().Hour())
	assert.Equal(t, next, s.Status().NextRun)

	_, err = s.ScheduleReplay("@hourly", time.Minute, func(context.Context) error { return nil })
	assert.Error(t, err, "jobs cannot be added while running")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.RemoveJob(id))
	assert.Empty(t, s.Entries())
}

func TestRunNowRecordsStatus(t *testing.T) {
	s := NewScheduler(quietLogger())
	require.NoError(t, s.RunNow(context.Background(), func(context.Context) error { return nil }))

	boom := errors.New("boom")
	err := s.RunNow(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	status := s.Status()
	assert.Equal(t, 2, status.Runs)
	assert.Equal(t, 1, status.Failures)
	assert.Equal(t, "boom", status.LastError)
	assert.False(t, status.LastRun.IsZero())
}

func TestScheduledJobRuns(t *testing.T) {
	s := NewScheduler(quietLogger())
	ran := make(chan struct{}, 1)
	_, err := s.ScheduleReplay("@every 1s", time.Minute, func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled replay did not run")
	}
}
