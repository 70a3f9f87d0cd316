package harness

import (
	"time"

	"github.com/kbukum/flowtest/errors"
	"github.com/kbukum/flowtest/signal"
)

// WaitForPublishedSignals blocks until the service has published at
// least count signals or the timeout elapses, reporting whether the
// count was reached. A timeout is not an error; assertions check the
// outcome separately. Count zero waits for the next recorded signal.
func (h *Harness) WaitForPublishedSignals(count int) bool {
	return h.WaitForPublishedSignalsWithin(count, h.timeout)
}

// WaitForPublishedSignalsWithin is WaitForPublishedSignals with an
// explicit timeout.
func (h *Harness) WaitForPublishedSignalsWithin(count int, timeout time.Duration) bool {
	return h.router.WaitForPublished(count, timeout)
}

// WaitForPublishedSignalsTo blocks until at least count signals have
// been published to one topic, reporting whether the count was reached.
func (h *Harness) WaitForPublishedSignalsTo(topic string, count int) bool {
	return h.router.WaitForPublishedTo(topic, count, h.timeout)
}

// WaitForProcessedSignals blocks until the referenced block has had at
// least count signals delivered to it, reporting whether the count was
// reached. An unknown or ambiguous reference is an error.
func (h *Harness) WaitForProcessedSignals(ref string, count int) (bool, error) {
	inst, err := h.graph.Resolve(ref)
	if err != nil {
		return false, err
	}
	return h.router.WaitForProcessed(inst.ID, count, h.timeout), nil
}

// WaitForProcessedSignalsOnInput is WaitForProcessedSignals scoped to
// one of the block's inputs.
func (h *Harness) WaitForProcessedSignalsOnInput(ref, input string, count int) (bool, error) {
	inst, err := h.graph.Resolve(ref)
	if err != nil {
		return false, err
	}
	return h.router.WaitForProcessedOnInput(inst.ID, input, count, h.timeout), nil
}

// PublishedSignals returns, in order, every signal the service has
// published to its declared publisher topics.
func (h *Harness) PublishedSignals() []*signal.Signal {
	return h.router.PublishedSignals()
}

// TopicSignals returns every signal published to one topic, in order.
func (h *Harness) TopicSignals(topic string) []*signal.Signal {
	return h.router.TopicSignals(topic)
}

// ProcessedSignals returns every signal delivered to the referenced
// block, in order.
func (h *Harness) ProcessedSignals(ref string) ([]*signal.Signal, error) {
	inst, err := h.graph.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return h.router.ProcessedSignals(inst.ID), nil
}

// ProcessedSignalsOnInput returns every signal delivered to one of the
// referenced block's inputs, in order.
func (h *Harness) ProcessedSignalsOnInput(ref, input string) ([]*signal.Signal, error) {
	inst, err := h.graph.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return h.router.ProcessedSignalsOnInput(inst.ID, input), nil
}

// AssertNumSignalsPublished checks the exact number of signals the
// service has published so far.
func (h *Harness) AssertNumSignalsPublished(count int) error {
	got := h.router.PublishedSignals()
	if len(got) != count {
		return errors.CountMismatch("published signals", count, len(got))
	}
	return nil
}

// AssertNumSignalsPublishedTo checks the exact number of signals
// published to one topic so far.
func (h *Harness) AssertNumSignalsPublishedTo(topic string, count int) error {
	got := h.router.TopicSignals(topic)
	if len(got) != count {
		return errors.CountMismatch("signals published to "+topic, count, len(got))
	}
	return nil
}

// AssertNumSignalsProcessed checks the exact number of signals
// delivered to the referenced block so far.
func (h *Harness) AssertNumSignalsProcessed(ref string, count int) error {
	got, err := h.ProcessedSignals(ref)
	if err != nil {
		return err
	}
	if len(got) != count {
		return errors.CountMismatch("signals processed by "+ref, count, len(got))
	}
	return nil
}

// AssertNumSignalsProcessedOnInput checks the exact number of signals
// delivered to one of the referenced block's inputs so far.
func (h *Harness) AssertNumSignalsProcessedOnInput(ref, input string, count int) error {
	got, err := h.ProcessedSignalsOnInput(ref, input)
	if err != nil {
		return err
	}
	if len(got) != count {
		return errors.CountMismatch("signals processed by "+ref+" on input "+input, count, len(got))
	}
	return nil
}

// AssertSignalPublished checks that some published signal carries
// exactly the given attributes. The match is full structural equality;
// extra attributes on the actual signal do not match. A failure reports
// the full published buffer.
func (h *Harness) AssertSignalPublished(attrs map[string]any) error {
	published := h.router.PublishedSignals()
	for _, sig := range published {
		if sig.EqualAttributes(attrs) {
			return nil
		}
	}
	return errors.Assertion("no published signal equals %s, actual buffer: %s",
		signal.New(attrs), signal.Format(published))
}

// AssertSignalPublishedTo is AssertSignalPublished scoped to one topic's
// buffer.
func (h *Harness) AssertSignalPublishedTo(topic string, attrs map[string]any) error {
	published := h.router.TopicSignals(topic)
	for _, sig := range published {
		if sig.EqualAttributes(attrs) {
			return nil
		}
	}
	return errors.Assertion("no signal on topic %s equals %s, actual buffer: %s",
		topic, signal.New(attrs), signal.Format(published))
}
