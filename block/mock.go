package block

import (
	"context"
	"sync"

	"github.com/kbukum/flowtest/signal"
)

// ProcessFunc replaces a block's signal processing.
type ProcessFunc func(ctx context.Context, signals []*signal.Signal, inputID string) error

// OverrideProcess wraps a block so that fn handles its signals while the
// block's configured lifecycle (Configure, Start, Stop) stays intact.
func OverrideProcess(inner Block, fn ProcessFunc) Block {
	return &processOverride{inner: inner, fn: fn}
}

type processOverride struct {
	inner Block
	fn    ProcessFunc
}

func (o *processOverride) ID() string   { return o.inner.ID() }
func (o *processOverride) Name() string { return o.inner.Name() }

func (o *processOverride) Configure(bctx Context) error    { return o.inner.Configure(bctx) }
func (o *processOverride) Start(ctx context.Context) error { return o.inner.Start(ctx) }
func (o *processOverride) Stop(ctx context.Context) error  { return o.inner.Stop(ctx) }

func (o *processOverride) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	return o.fn(ctx, signals, inputID)
}

// SetIdentity forwards identity assignment to the wrapped block when it
// supports it.
func (o *processOverride) SetIdentity(id, name string) {
	if setter, ok := o.inner.(interface{ SetIdentity(id, name string) }); ok {
		setter.SetIdentity(id, name)
	}
}

// Unwrap returns the wrapped block, so capability checks (topic
// subscriber/publisher, commander) still see the real implementation.
func (o *processOverride) Unwrap() Block { return o.inner }

// Mock is a full block substitute that records every processing call.
// Tests can plug behavior in through the On* hooks.
type Mock struct {
	Base
	mu        sync.Mutex
	processed [][]*signal.Signal
	inputs    []string

	OnConfigure func(bctx Context) error
	OnStart     func(ctx context.Context) error
	OnStop      func(ctx context.Context) error
	OnProcess   ProcessFunc
}

func (m *Mock) Configure(bctx Context) error {
	if err := m.Base.Configure(bctx); err != nil {
		return err
	}
	if m.OnConfigure != nil {
		return m.OnConfigure(bctx)
	}
	return nil
}

func (m *Mock) Start(ctx context.Context) error {
	if m.OnStart != nil {
		return m.OnStart(ctx)
	}
	return nil
}

func (m *Mock) Stop(ctx context.Context) error {
	if m.OnStop != nil {
		return m.OnStop(ctx)
	}
	return nil
}

func (m *Mock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	m.mu.Lock()
	m.processed = append(m.processed, signals)
	m.inputs = append(m.inputs, inputID)
	m.mu.Unlock()
	if m.OnProcess != nil {
		return m.OnProcess(ctx, signals, inputID)
	}
	return nil
}

// ProcessedCalls returns every batch of signals the mock has received.
func (m *Mock) ProcessedCalls() [][]*signal.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*signal.Signal, len(m.processed))
	copy(out, m.processed)
	return out
}

// Unwrap resolves capability interfaces through OverrideProcess wrappers.
func Unwrap(b Block) Block {
	for {
		w, ok := b.(interface{ Unwrap() Block })
		if !ok {
			return b
		}
		b = w.Unwrap()
	}
}

// AsTopicSubscriber reports the subscribed topic of b, looking through
// wrappers.
func AsTopicSubscriber(b Block) (string, bool) {
	if ts, ok := Unwrap(b).(TopicSubscriber); ok {
		return ts.SubscribedTopic(), true
	}
	return "", false
}

// AsTopicPublisher reports the published topic of b, looking through
// wrappers.
func AsTopicPublisher(b Block) (string, bool) {
	if tp, ok := Unwrap(b).(TopicPublisher); ok {
		return tp.PublishedTopic(), true
	}
	return "", false
}

// AsCommander resolves the Commander capability of b, looking through
// wrappers.
func AsCommander(b Block) (Commander, bool) {
	c, ok := Unwrap(b).(Commander)
	return c, ok
}
