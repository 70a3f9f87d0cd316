package block

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/flowtest/clock"
	flowerrors "github.com/kbukum/flowtest/errors"
	"github.com/kbukum/flowtest/signal"
)

// --- test seams ---

type recordingNotifier struct {
	fromIDs   []string
	terminals []string
	batches   [][]*signal.Signal
}

func (n *recordingNotifier) NotifySignals(fromID string, signals []*signal.Signal, terminal string) {
	n.fromIDs = append(n.fromIDs, fromID)
	n.terminals = append(n.terminals, terminal)
	n.batches = append(n.batches, signals)
}

type recordingPublisher struct {
	topics  []string
	batches [][]*signal.Signal
}

func (p *recordingPublisher) PublishSignals(topic string, signals []*signal.Signal) error {
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, signals)
	return nil
}

func configure(t *testing.T, b Block, id, name string, cfg map[string]any, bctx Context) {
	t.Helper()
	if setter, ok := b.(interface{ SetIdentity(id, name string) }); ok {
		setter.SetIdentity(id, name)
	}
	bctx.Config = cfg
	if err := b.Configure(bctx); err != nil {
		t.Fatalf("configure %s: %v", name, err)
	}
}

// --- registry ---

func TestRegistryNewUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.New("nope")
	if !flowerrors.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestBuiltinRegistryTypes(t *testing.T) {
	r := Builtin()
	for _, typ := range []string{TypeSubscriber, TypePublisher, TypePassthrough, TypeIntervalSimulator, TypeCounter} {
		if _, err := r.New(typ); err != nil {
			t.Fatalf("builtin type %s missing: %v", typ, err)
		}
	}
}

// --- built-in blocks ---

func TestSubscriberReEmits(t *testing.T) {
	n := &recordingNotifier{}
	b := &SubscriberBlock{}
	configure(t, b, "sub-1", "sub", map[string]any{"topic": "topic1"}, Context{Notifier: n})

	if b.SubscribedTopic() != "topic1" {
		t.Fatalf("unexpected topic: %s", b.SubscribedTopic())
	}

	sigs := []*signal.Signal{signal.New(map[string]any{"data": "x"})}
	if err := b.ProcessSignals(context.Background(), sigs, DefaultTerminal); err != nil {
		t.Fatal(err)
	}
	if len(n.batches) != 1 || n.fromIDs[0] != "sub-1" || n.terminals[0] != DefaultTerminal {
		t.Fatalf("subscriber did not re-emit: %+v", n)
	}
}

func TestSubscriberRequiresTopic(t *testing.T) {
	b := &SubscriberBlock{}
	b.SetIdentity("sub-1", "sub")
	err := b.Configure(Context{Config: map[string]any{}})
	if !flowerrors.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPublisherPublishes(t *testing.T) {
	p := &recordingPublisher{}
	b := &PublisherBlock{}
	configure(t, b, "pub-1", "pub", map[string]any{"topic": "topic3"}, Context{Publisher: p})

	sigs := []*signal.Signal{signal.New(map[string]any{"data": "x"})}
	if err := b.ProcessSignals(context.Background(), sigs, DefaultTerminal); err != nil {
		t.Fatal(err)
	}
	if len(p.topics) != 1 || p.topics[0] != "topic3" {
		t.Fatalf("publisher did not publish: %+v", p)
	}
}

func TestPassthrough(t *testing.T) {
	n := &recordingNotifier{}
	b := &PassthroughBlock{}
	configure(t, b, "pass-1", "pass", nil, Context{Notifier: n})

	in := []*signal.Signal{signal.New(map[string]any{"data": "x"})}
	if err := b.ProcessSignals(context.Background(), in, "in"); err != nil {
		t.Fatal(err)
	}
	if len(n.batches) != 1 || !n.batches[0][0].Equal(in[0]) {
		t.Fatal("passthrough altered or dropped signals")
	}
}

func TestIntervalSimulatorOnVirtualClock(t *testing.T) {
	n := &recordingNotifier{}
	v := clock.NewVirtual()
	b := &IntervalSimulator{}
	configure(t, b, "sim-1", "sim", map[string]any{
		"interval":   5,
		"attributes": map[string]any{"tick": true},
	}, Context{Notifier: n, Scheduler: v})

	if err := b.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer b.Stop(context.Background())

	v.JumpAhead(4 * time.Second)
	if b.EmitCount() != 0 {
		t.Fatal("simulator fired before its interval")
	}
	v.JumpAhead(time.Second)
	if b.EmitCount() != 1 {
		t.Fatalf("expected exactly one emission, got %d", b.EmitCount())
	}
	if v, _ := n.batches[0][0].Get("tick"); v != true {
		t.Fatalf("unexpected payload: %v", n.batches[0][0])
	}

	v.JumpAhead(10 * time.Second)
	if b.EmitCount() != 3 {
		t.Fatalf("expected three emissions after 15s, got %d", b.EmitCount())
	}
}

func TestIntervalSimulatorConfigErrors(t *testing.T) {
	for _, cfg := range []map[string]any{
		{},
		{"interval": "bogus"},
		{"interval": -1},
		{"interval": 5, "attributes": "not-a-map"},
	} {
		b := &IntervalSimulator{}
		b.SetIdentity("sim-1", "sim")
		if err := b.Configure(Context{Config: cfg}); !flowerrors.IsConfiguration(err) {
			t.Fatalf("config %v: expected configuration error, got %v", cfg, err)
		}
	}
}

func TestCounterCountsAndResets(t *testing.T) {
	n := &recordingNotifier{}
	b := &CounterBlock{}
	configure(t, b, "count-1", "count", nil, Context{Notifier: n})

	sigs := []*signal.Signal{
		signal.New(map[string]any{"n": 1}),
		signal.New(map[string]any{"n": 2}),
	}
	if err := b.ProcessSignals(context.Background(), sigs, DefaultTerminal); err != nil {
		t.Fatal(err)
	}
	if b.Total() != 2 {
		t.Fatalf("expected total 2, got %d", b.Total())
	}
	if v, _ := n.batches[0][0].Get("count"); v != 2 {
		t.Fatalf("unexpected emitted count: %v", v)
	}

	if err := b.Command("reset", nil); err != nil {
		t.Fatal(err)
	}
	if b.Total() != 0 {
		t.Fatal("reset did not clear the counter")
	}

	err := b.Command("explode", nil)
	if !flowerrors.IsNotFound(err) {
		t.Fatalf("expected not-found for unknown command, got %v", err)
	}
}

// --- mocks ---

func TestOverrideProcessKeepsLifecycle(t *testing.T) {
	started := false
	inner := &Mock{OnStart: func(ctx context.Context) error { started = true; return nil }}
	var got []*signal.Signal
	wrapped := OverrideProcess(inner, func(ctx context.Context, signals []*signal.Signal, inputID string) error {
		got = signals
		return nil
	})

	if setter, ok := wrapped.(interface{ SetIdentity(id, name string) }); ok {
		setter.SetIdentity("m-1", "mocked")
	}
	if err := wrapped.Configure(Context{}); err != nil {
		t.Fatal(err)
	}
	if err := wrapped.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !started {
		t.Fatal("lifecycle did not reach the wrapped block")
	}
	if wrapped.ID() != "m-1" {
		t.Fatalf("identity did not reach the wrapped block: %s", wrapped.ID())
	}

	sigs := []*signal.Signal{signal.New(map[string]any{"data": "x"})}
	if err := wrapped.ProcessSignals(context.Background(), sigs, DefaultTerminal); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatal("override did not receive the signals")
	}
	if calls := inner.ProcessedCalls(); len(calls) != 0 {
		t.Fatal("wrapped block's own processing should not run")
	}
}

func TestUnwrapResolvesCapabilities(t *testing.T) {
	sub := &SubscriberBlock{}
	configure(t, sub, "sub-1", "sub", map[string]any{"topic": "topic1"}, Context{})

	wrapped := OverrideProcess(sub, func(ctx context.Context, signals []*signal.Signal, inputID string) error {
		return nil
	})
	topic, ok := AsTopicSubscriber(wrapped)
	if !ok || topic != "topic1" {
		t.Fatalf("capability lost through wrapper: %q %v", topic, ok)
	}
}

func TestMockRecordsErrors(t *testing.T) {
	wantErr := errors.New("processing failed")
	m := &Mock{OnProcess: func(ctx context.Context, signals []*signal.Signal, inputID string) error {
		return wantErr
	}}
	err := m.ProcessSignals(context.Background(), []*signal.Signal{signal.New(nil)}, "in")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if len(m.ProcessedCalls()) != 1 {
		t.Fatal("mock did not record the call")
	}
}
