package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSchedulerRunsTaskAtDeadline(t *testing.T) {
	fc := NewFake(epoch)
	s := NewScheduler(fc)
	defer s.Close()

	ran := 0
	require.NoError(t, s.Schedule("a", time.Hour, func(context.Context) { ran++ }))

	at, ok := s.Deadline("a")
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Hour), at)

	fc.Advance(59 * time.Minute)
	assert.Equal(t, 0, ran)
	assert.Equal(t, 1, s.Pending())

	fc.Advance(time.Minute)
	assert.Equal(t, 1, ran)
	assert.Equal(t, 0, s.Pending())

	fc.Advance(24 * time.Hour)
	assert.Equal(t, 1, ran, "one-shot task must not repeat")
}

func TestSchedulerCancel(t *testing.T) {
	fc := NewFake(epoch)
	s := NewScheduler(fc)
	defer s.Close()

	ran := false
	require.NoError(t, s.Schedule("a", time.Minute, func(context.Context) { ran = true }))
	assert.True(t, s.Cancel("a"))
	assert.False(t, s.Cancel("a"))

	fc.Advance(time.Hour)
	assert.False(t, ran)
	assert.Equal(t, 0, fc.Pending())
}

func TestSchedulerReplaceSameID(t *testing.T) {
	fc := NewFake(epoch)
	s := NewScheduler(fc)
	defer s.Close()

	var got []string
	require.NoError(t, s.Schedule("a", time.Minute, func(context.Context) { got = append(got, "first") }))
	require.NoError(t, s.Schedule("a", 2*time.Minute, func(context.Context) { got = append(got, "second") }))
	assert.Equal(t, 1, s.Pending())

	fc.Advance(5 * time.Minute)
	assert.Equal(t, []string{"second"}, got)
}

func TestSchedulerCloseDropsPending(t *testing.T) {
	fc := NewFake(epoch)
	var counts []int
	s := NewScheduler(fc, WithPendingHook(func(n int) { counts = append(counts, n) }))

	ran := false
	require.NoError(t, s.Schedule("a", time.Minute, func(context.Context) { ran = true }))
	s.Close()

	fc.Advance(time.Hour)
	assert.False(t, ran)
	assert.ErrorIs(t, s.Schedule("b", time.Minute, func(context.Context) {}), ErrSchedulerClosed)
	assert.Equal(t, []int{1, 0}, counts)
}

func TestSchedulerTaskContextCancelledOnClose(t *testing.T) {
	fc := NewFake(epoch)
	s := NewScheduler(fc)

	var taskCtx context.Context
	require.NoError(t, s.Schedule("a", time.Second, func(ctx context.Context) { taskCtx = ctx }))
	fc.Advance(time.Second)
	require.NotNil(t, taskCtx)
	assert.NoError(t, taskCtx.Err())

	s.Close()
	assert.ErrorIs(t, taskCtx.Err(), context.Canceled)
}

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	fc := NewFake(epoch)
	var order []int
	fc.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fc.AfterFunc(time.Second, func() { order = append(order, 1) })
	stopped := fc.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	assert.True(t, stopped.Stop())

	fc.Advance(10 * time.Second)
	assert.Equal(t, []int{1, 3}, order)
	assert.Equal(t, epoch.Add(10*time.Second), fc.Now())
}
