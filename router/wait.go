package router

import (
	"time"

	"github.com/kbukum/flowtest/signal"
)

// WaitForCondition blocks until cond holds or the timeout elapses,
// reporting whether cond held. cond is evaluated under the router's
// lock, so it sees a consistent view of the recorded buffers. The
// wakeup channel is captured under the same lock as the check; an
// append between check and sleep cannot be missed.
func (r *Router) WaitForCondition(timeout time.Duration, cond func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		r.mu.Lock()
		if cond() {
			r.mu.Unlock()
			return true
		}
		changed := r.changed
		r.mu.Unlock()

		select {
		case <-changed:
		case <-deadline.C:
			r.mu.Lock()
			ok := cond()
			r.mu.Unlock()
			return ok
		}
	}
}

// WaitForActivity blocks until any signal is recorded anywhere, or the
// timeout elapses, reporting whether activity happened.
func (r *Router) WaitForActivity(timeout time.Duration) bool {
	r.mu.Lock()
	changed := r.changed
	r.mu.Unlock()

	select {
	case <-changed:
		return true
	case <-time.After(timeout):
		return false
	}
}

// WaitForPublished waits until at least count signals have flowed into
// the declared publisher topics, reporting whether that happened within
// the timeout. A count of zero waits for the next recorded signal, on
// any topic or block.
func (r *Router) WaitForPublished(count int, timeout time.Duration) bool {
	if count <= 0 {
		return r.WaitForActivity(timeout)
	}
	return r.WaitForCondition(timeout, func() bool {
		return len(r.publishedLog) >= count
	})
}

// WaitForPublishedTo waits until at least count signals have flowed into
// one specific topic. A count of zero waits for the next recorded
// signal.
func (r *Router) WaitForPublishedTo(topic string, count int, timeout time.Duration) bool {
	if count <= 0 {
		return r.WaitForActivity(timeout)
	}
	return r.WaitForCondition(timeout, func() bool {
		return len(r.topicSignals[topic]) >= count
	})
}

// WaitForProcessed waits until the block has had at least count signals
// delivered to it. A count of zero waits for the next recorded signal.
func (r *Router) WaitForProcessed(blockID string, count int, timeout time.Duration) bool {
	if count <= 0 {
		return r.WaitForActivity(timeout)
	}
	return r.WaitForCondition(timeout, func() bool {
		return len(r.processed[blockID]) >= count
	})
}

// WaitForProcessedOnInput waits until the block has had at least count
// signals delivered to one of its inputs. A count of zero waits for the
// next recorded signal.
func (r *Router) WaitForProcessedOnInput(blockID, input string, count int, timeout time.Duration) bool {
	if count <= 0 {
		return r.WaitForActivity(timeout)
	}
	return r.WaitForCondition(timeout, func() bool {
		return len(r.processedInput[blockID][input]) >= count
	})
}

// PublishedSignals returns, in order, every signal that flowed into the
// declared publisher topics.
func (r *Router) PublishedSignals() []*signal.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*signal.Signal, len(r.publishedLog))
	copy(out, r.publishedLog)
	return out
}

// TopicSignals returns every signal published to topic, in order.
func (r *Router) TopicSignals(topic string) []*signal.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	sigs := r.topicSignals[topic]
	out := make([]*signal.Signal, len(sigs))
	copy(out, sigs)
	return out
}

// ProcessedSignals returns every signal delivered to the block, in order.
func (r *Router) ProcessedSignals(blockID string) []*signal.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	sigs := r.processed[blockID]
	out := make([]*signal.Signal, len(sigs))
	copy(out, sigs)
	return out
}

// ProcessedSignalsOnInput returns every signal delivered to one of the
// block's inputs, in order.
func (r *Router) ProcessedSignalsOnInput(blockID, input string) []*signal.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	sigs := r.processedInput[blockID][input]
	out := make([]*signal.Signal, len(sigs))
	copy(out, sigs)
	return out
}
