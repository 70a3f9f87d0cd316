package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Virtual is a logical-time scheduler. Time starts at zero and only
// moves when JumpAhead is called; callbacks due within a jump fire
// synchronously, in fire-time order, without any wall-clock delay.
type Virtual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	pending pendingQueue
}

// NewVirtual creates a virtual clock at logical time zero.
func NewVirtual() *Virtual {
	return &Virtual{}
}

// Now returns the current logical time. Logical time is cumulative
// across jumps and monotonic for the lifetime of the clock.
func (v *Virtual) Now() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Schedule invokes fn once when logical time reaches now+delay.
// A non-positive delay fires on the next jump.
func (v *Virtual) Schedule(delay time.Duration, fn func()) Job {
	if delay < 0 {
		delay = 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.push(v.now+delay, 0, fn)
}

// Repeat invokes fn every interval of logical time until cancelled.
// The interval must be positive: a zero or negative interval would make
// a jump re-fire the same callback forever.
func (v *Virtual) Repeat(interval time.Duration, fn func()) Job {
	if interval <= 0 {
		panic("clock: repeat interval must be positive")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.push(v.now+interval, interval, fn)
}

// JumpAhead advances logical time by d, synchronously invoking every
// callback scheduled to fire at or before the new time, in fire-time
// order with ties broken by registration order. A callback may schedule
// further callbacks; those fire within the same jump if their fire time
// falls inside the window.
func (v *Virtual) JumpAhead(d time.Duration) {
	if d < 0 {
		return
	}
	v.mu.Lock()
	target := v.now + d
	for len(v.pending) > 0 {
		next := v.pending[0]
		if next.fireAt > target {
			break
		}
		heap.Pop(&v.pending)
		if next.cancelled {
			continue
		}
		v.now = next.fireAt
		if next.interval > 0 {
			// Reschedule before invoking so the callback observes a
			// consistent pending set. The interval is strictly positive,
			// so the next fire time always moves forward.
			next.fireAt += next.interval
			next.order = v.seq
			v.seq++
			heap.Push(&v.pending, next)
		}
		v.mu.Unlock()
		next.fn()
		v.mu.Lock()
	}
	v.now = target
	v.mu.Unlock()
}

// Pending returns the number of scheduled callbacks still outstanding.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, e := range v.pending {
		if !e.cancelled {
			n++
		}
	}
	return n
}

func (v *Virtual) push(fireAt time.Duration, interval time.Duration, fn func()) *virtualJob {
	e := &virtualJob{
		clock:    v,
		fireAt:   fireAt,
		interval: interval,
		order:    v.seq,
		fn:       fn,
	}
	v.seq++
	heap.Push(&v.pending, e)
	return e
}

type virtualJob struct {
	clock     *Virtual
	fireAt    time.Duration
	interval  time.Duration
	order     uint64
	fn        func()
	cancelled bool
}

func (j *virtualJob) Cancel() {
	j.clock.mu.Lock()
	defer j.clock.mu.Unlock()
	j.cancelled = true
}

// pendingQueue is a min-heap ordered by (fireAt, registration order).
type pendingQueue []*virtualJob

func (q pendingQueue) Len() int { return len(q) }

func (q pendingQueue) Less(i, j int) bool {
	if q[i].fireAt != q[j].fireAt {
		return q[i].fireAt < q[j].fireAt
	}
	return q[i].order < q[j].order
}

func (q pendingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pendingQueue) Push(x any) { *q = append(*q, x.(*virtualJob)) }

func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
