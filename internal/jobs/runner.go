// Package jobs provides the one-shot job facility behind reminder
// scheduling: an in-process registry of timers keyed by job id.
package jobs

import (
	"fmt"
	"sync"
	"time"

	"todohub/internal/logger"
)

// Runner registers callbacks to fire once at a future instant. A job whose
// run time has already passed still fires if it is within the misfire grace
// window; older than that, it is dropped. The registry is a single critical
// section, so concurrent Add/Remove for the same task cannot leave duplicate
// live jobs behind.
type Runner interface {
	AddOneShotJob(id string, runAt time.Time, grace time.Duration, fn func()) error
	ListJobs() []string
	RemoveJob(id string)
}

type timerRunner struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerRunner() Runner {
	return &timerRunner{timers: make(map[string]*time.Timer)}
}

func (r *timerRunner) AddOneShotJob(id string, runAt time.Time, grace time.Duration, fn func()) error {
	delay := time.Until(runAt)
	if delay < -grace {
		logger.Log.Warn().Str("job_id", id).Time("run_at", runAt).Msg("job past misfire grace, dropping")
		return fmt.Errorf("job %s run time passed the misfire grace window", id)
	}
	if delay < 0 {
		// Late but within grace: fire as soon as possible.
		delay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.timers[id]; ok {
		old.Stop()
	}
	r.timers[id] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, id)
		r.mu.Unlock()
		fn()
	})
	return nil
}

func (r *timerRunner) ListJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.timers))
	for id := range r.timers {
		ids = append(ids, id)
	}
	return ids
}

func (r *timerRunner) RemoveJob(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
}
