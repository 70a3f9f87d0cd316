package block

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/flowtest/clock"
	"github.com/kbukum/flowtest/errors"
	"github.com/kbukum/flowtest/signal"
	"github.com/kbukum/flowtest/util"
)

// Built-in block type names.
const (
	TypeSubscriber        = "subscriber"
	TypePublisher         = "publisher"
	TypePassthrough       = "passthrough"
	TypeIntervalSimulator = "interval_simulator"
	TypeCounter           = "counter"
)

// SubscriberBlock bridges a pub/sub topic into the graph: whatever
// arrives on its configured topic is re-emitted on the default terminal.
type SubscriberBlock struct {
	Base
	topic string
}

func (b *SubscriberBlock) Configure(bctx Context) error {
	if err := b.Base.Configure(bctx); err != nil {
		return err
	}
	b.topic = b.ConfigString("topic", "")
	if b.topic == "" {
		return errors.Configuration("subscriber block %q requires a topic", b.Name())
	}
	return nil
}

func (b *SubscriberBlock) SubscribedTopic() string { return b.topic }

func (b *SubscriberBlock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	b.Notify(signals, DefaultTerminal)
	return nil
}

// PublisherBlock bridges the graph onto a pub/sub topic: every signal it
// processes is published to its configured topic.
type PublisherBlock struct {
	Base
	topic string
}

func (b *PublisherBlock) Configure(bctx Context) error {
	if err := b.Base.Configure(bctx); err != nil {
		return err
	}
	b.topic = b.ConfigString("topic", "")
	if b.topic == "" {
		return errors.Configuration("publisher block %q requires a topic", b.Name())
	}
	return nil
}

func (b *PublisherBlock) PublishedTopic() string { return b.topic }

func (b *PublisherBlock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	return b.Publish(b.topic, signals)
}

// PassthroughBlock re-emits everything it processes, unchanged.
type PassthroughBlock struct {
	Base
}

func (b *PassthroughBlock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	b.Notify(signals, DefaultTerminal)
	return nil
}

// IntervalSimulator emits a configured signal every interval. The
// interval comes from config key "interval" (seconds or a duration
// string); the payload from config key "attributes".
type IntervalSimulator struct {
	Base
	interval  time.Duration
	attrs     map[string]any
	job       clock.Job
	emitCount int
	mu        sync.Mutex
}

func (b *IntervalSimulator) Configure(bctx Context) error {
	if err := b.Base.Configure(bctx); err != nil {
		return err
	}
	raw, ok := b.ConfigValue("interval")
	if !ok {
		return errors.Configuration("interval_simulator block %q requires an interval", b.Name())
	}
	interval, err := util.ParseDuration(raw)
	if err != nil {
		return errors.Configuration("interval_simulator block %q: %v", b.Name(), err)
	}
	if interval <= 0 {
		return errors.Configuration("interval_simulator block %q: interval must be positive", b.Name())
	}
	b.interval = interval
	if attrs, ok := b.ConfigValue("attributes"); ok {
		m, ok := attrs.(map[string]any)
		if !ok {
			return errors.Configuration("interval_simulator block %q: attributes must be a mapping", b.Name())
		}
		b.attrs = m
	} else {
		b.attrs = map[string]any{"sim": nil}
	}
	return nil
}

func (b *IntervalSimulator) Start(ctx context.Context) error {
	b.job = b.Context().Scheduler.Repeat(b.interval, b.emit)
	return nil
}

func (b *IntervalSimulator) Stop(ctx context.Context) error {
	if b.job != nil {
		b.job.Cancel()
	}
	return nil
}

func (b *IntervalSimulator) emit() {
	b.mu.Lock()
	b.emitCount++
	b.mu.Unlock()
	b.Notify([]*signal.Signal{signal.New(b.attrs)}, DefaultTerminal)
}

// EmitCount returns how many times the simulator has fired.
func (b *IntervalSimulator) EmitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emitCount
}

// CounterBlock counts the signals it processes and emits a running total
// as {"count": n}. It exposes a "reset" command.
type CounterBlock struct {
	Base
	mu    sync.Mutex
	total int
}

func (b *CounterBlock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	b.mu.Lock()
	b.total += len(signals)
	total := b.total
	b.mu.Unlock()
	b.Notify([]*signal.Signal{signal.New(map[string]any{"count": total})}, DefaultTerminal)
	return nil
}

// Total returns the number of signals counted so far.
func (b *CounterBlock) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *CounterBlock) Commands() []string { return []string{"reset"} }

func (b *CounterBlock) Command(name string, args map[string]any) error {
	switch name {
	case "reset":
		b.mu.Lock()
		b.total = 0
		b.mu.Unlock()
		return nil
	default:
		return errors.NotFound("command", name).
			WithDetail("available", b.Commands())
	}
}
