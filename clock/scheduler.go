package clock

import (
	"sync"
	"time"
)

// Job is a handle to a scheduled callback.
type Job interface {
	// Cancel prevents any future invocation of the callback. Cancelling
	// an already-fired one-shot job is a no-op.
	Cancel()
}

// Scheduler schedules callbacks, virtually or against the wall clock.
// Blocks receive a Scheduler in their Context and must use it instead of
// time.Sleep or time.AfterFunc so tests control time.
type Scheduler interface {
	// Schedule invokes fn once after delay.
	Schedule(delay time.Duration, fn func()) Job
	// Repeat invokes fn every interval until cancelled. The interval
	// must be positive.
	Repeat(interval time.Duration, fn func()) Job
}

// System schedules against the wall clock. Used in asynchronous mode
// where the graph runs the way it would under live deployment.
type System struct{}

func (System) Schedule(delay time.Duration, fn func()) Job {
	t := time.AfterFunc(delay, fn)
	return timerJob{t}
}

func (System) Repeat(interval time.Duration, fn func()) Job {
	if interval <= 0 {
		panic("clock: repeat interval must be positive")
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	return &tickerJob{ticker: ticker, done: done}
}

type timerJob struct {
	t *time.Timer
}

func (j timerJob) Cancel() { j.t.Stop() }

type tickerJob struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (j *tickerJob) Cancel() {
	j.once.Do(func() {
		j.ticker.Stop()
		close(j.done)
	})
}
