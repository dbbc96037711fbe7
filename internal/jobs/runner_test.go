package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestOneShotJobFires(t *testing.T) {
	r := NewTimerRunner()
	var fired atomic.Int32

	err := r.AddOneShotJob("job1", time.Now().Add(20*time.Millisecond), time.Hour, func() {
		fired.Add(1)
	})
	require.NoError(t, err)
	require.Contains(t, r.ListJobs(), "job1")

	waitFor(t, func() bool { return fired.Load() == 1 })
	waitFor(t, func() bool { return len(r.ListJobs()) == 0 })
}

func TestPastJobWithinGraceFiresImmediately(t *testing.T) {
	r := NewTimerRunner()
	var fired atomic.Int32

	err := r.AddOneShotJob("late", time.Now().Add(-time.Minute), time.Hour, func() {
		fired.Add(1)
	})
	require.NoError(t, err)
	waitFor(t, func() bool { return fired.Load() == 1 })
}

func TestPastJobBeyondGraceIsDropped(t *testing.T) {
	r := NewTimerRunner()

	err := r.AddOneShotJob("stale", time.Now().Add(-2*time.Hour), time.Hour, func() {
		t.Error("stale job must not fire")
	})
	assert.Error(t, err)
	assert.Empty(t, r.ListJobs())
}

func TestRemoveJobPreventsFiring(t *testing.T) {
	r := NewTimerRunner()
	var fired atomic.Int32

	err := r.AddOneShotJob("job1", time.Now().Add(30*time.Millisecond), time.Hour, func() {
		fired.Add(1)
	})
	require.NoError(t, err)

	r.RemoveJob("job1")
	assert.Empty(t, r.ListJobs())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestReAddingSameIDReplacesJob(t *testing.T) {
	r := NewTimerRunner()
	var first, second atomic.Int32

	require.NoError(t, r.AddOneShotJob("job1", time.Now().Add(30*time.Millisecond), time.Hour, func() {
		first.Add(1)
	}))
	require.NoError(t, r.AddOneShotJob("job1", time.Now().Add(40*time.Millisecond), time.Hour, func() {
		second.Add(1)
	}))
	require.Len(t, r.ListJobs(), 1)

	waitFor(t, func() bool { return second.Load() == 1 })
	assert.Equal(t, int32(0), first.Load())
}
