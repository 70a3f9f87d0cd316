package router

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/flowtest/block"
	flowerrors "github.com/kbukum/flowtest/errors"
	"github.com/kbukum/flowtest/signal"
)

// echoBlock re-emits whatever it processes on its default terminal.
type echoBlock struct {
	block.Base
}

func (b *echoBlock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	b.Notify(signals, block.DefaultTerminal)
	return nil
}

// sinkBlock swallows signals.
type sinkBlock struct {
	block.Base
}

func (b *sinkBlock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	return nil
}

// publishBlock forwards everything it processes onto a topic.
type publishBlock struct {
	block.Base
	topic string
}

func (b *publishBlock) PublishedTopic() string { return b.topic }

func (b *publishBlock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	return b.Publish(b.topic, signals)
}

type rejectingValidator struct{}

func (rejectingValidator) Validate(topic string, sig *signal.Signal) error {
	return flowerrors.SchemaValidation(topic, nil)
}

func newBlock[B block.Block](b B, id, name string, bctx block.Context) B {
	if setter, ok := any(b).(interface{ SetIdentity(id, name string) }); ok {
		setter.SetIdentity(id, name)
	}
	if err := b.Configure(bctx); err != nil {
		panic(err)
	}
	return b
}

func startRouter(t *testing.T, r *Router) {
	t.Helper()
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Stop(context.Background()) })
}

func TestSynchronousChainDelivery(t *testing.T) {
	r := New(Config{Synchronous: true})
	bctx := block.Context{Notifier: r, Publisher: r}

	echo := newBlock(&echoBlock{}, "b1", "echo", bctx)
	sink := newBlock(&sinkBlock{}, "b2", "sink", bctx)

	r.Configure(map[string]map[string][]Receiver{
		"b1": {block.DefaultTerminal: {{BlockID: "b2", Input: "in"}}},
		"b2": {},
	}, map[string]block.Block{"b1": echo, "b2": sink})
	startRouter(t, r)

	sigs := []*signal.Signal{
		signal.New(map[string]any{"n": 1}),
		signal.New(map[string]any{"n": 2}),
	}
	r.NotifySignals("b1", sigs, block.DefaultTerminal)

	got := r.ProcessedSignals("b2")
	if len(got) != 2 {
		t.Fatalf("expected 2 processed signals, got %d", len(got))
	}
	if v, _ := got[0].Get("n"); v != 1 {
		t.Fatalf("order lost: %v", got[0])
	}
	onInput := r.ProcessedSignalsOnInput("b2", "in")
	if len(onInput) != 2 {
		t.Fatalf("per-input buffer missing signals: %d", len(onInput))
	}
}

func TestUnknownTerminalFallsBackToDefault(t *testing.T) {
	r := New(Config{Synchronous: true})
	bctx := block.Context{Notifier: r}
	sink := newBlock(&sinkBlock{}, "b2", "sink", bctx)

	r.Configure(map[string]map[string][]Receiver{
		"b1": {block.DefaultTerminal: {{BlockID: "b2", Input: "in"}}},
	}, map[string]block.Block{"b2": sink})
	startRouter(t, r)

	r.NotifySignals("b1", []*signal.Signal{signal.New(nil)}, "side")
	if len(r.ProcessedSignals("b2")) != 1 {
		t.Fatal("signal on unnamed terminal was not routed to default")
	}
}

func TestNotifyFromUnknownBlockIsDropped(t *testing.T) {
	r := New(Config{Synchronous: true})
	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{})
	startRouter(t, r)

	r.NotifySignals("ghost", []*signal.Signal{signal.New(nil)}, block.DefaultTerminal)
	if len(r.PublishedSignals()) != 0 {
		t.Fatal("unexpected recording for unknown source")
	}
}

func TestReceiversGetIndependentCopies(t *testing.T) {
	r := New(Config{Synchronous: true})
	bctx := block.Context{Notifier: r}
	a := newBlock(&sinkBlock{}, "a", "a", bctx)
	b := newBlock(&sinkBlock{}, "b", "b", bctx)

	r.Configure(map[string]map[string][]Receiver{
		"src": {block.DefaultTerminal: {
			{BlockID: "a", Input: "in"},
			{BlockID: "b", Input: "in"},
		}},
	}, map[string]block.Block{"a": a, "b": b})
	startRouter(t, r)

	orig := signal.New(map[string]any{"data": "x"})
	r.NotifySignals("src", []*signal.Signal{orig}, block.DefaultTerminal)

	gotA := r.ProcessedSignals("a")
	gotB := r.ProcessedSignals("b")
	if gotA[0] == gotB[0] || gotA[0] == orig {
		t.Fatal("receivers share a signal instance")
	}
	if !gotA[0].EqualAttributes(map[string]any{"data": "x"}) {
		t.Fatalf("copy diverged from original: %v", gotA[0])
	}
}

func TestPublishRecordsAndDelivers(t *testing.T) {
	r := New(Config{Synchronous: true})
	bctx := block.Context{Notifier: r}
	sub := newBlock(&sinkBlock{}, "sub", "sub", bctx)

	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{"sub": sub})
	r.Subscribe("topic1", "sub")
	r.DeclarePublisherTopic("topic3")
	startRouter(t, r)

	if err := r.PublishSignals("topic1", []*signal.Signal{signal.New(map[string]any{"v": 1})}); err != nil {
		t.Fatal(err)
	}
	if len(r.ProcessedSignals("sub")) != 1 {
		t.Fatal("subscriber did not receive the published signal")
	}
	if len(r.TopicSignals("topic1")) != 1 {
		t.Fatal("topic buffer missing the published signal")
	}
	// topic1 is not a declared publisher topic, so the published union
	// stays empty.
	if len(r.PublishedSignals()) != 0 {
		t.Fatal("subscription topic leaked into the published union")
	}

	if err := r.PublishSignals("topic3", []*signal.Signal{signal.New(map[string]any{"v": 2})}); err != nil {
		t.Fatal(err)
	}
	if len(r.PublishedSignals()) != 1 {
		t.Fatal("declared publisher topic missing from the published union")
	}
}

func TestPublishToUnknownTopicStillRecords(t *testing.T) {
	r := New(Config{Synchronous: true})
	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{})
	startRouter(t, r)

	if err := r.PublishSignals("nobody-listens", []*signal.Signal{signal.New(nil)}); err != nil {
		t.Fatal(err)
	}
	if len(r.TopicSignals("nobody-listens")) != 1 {
		t.Fatal("publish to unsubscribed topic was not recorded")
	}
}

func TestValidatorRejectsPublish(t *testing.T) {
	r := New(Config{Synchronous: true, Validator: rejectingValidator{}})
	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{})
	startRouter(t, r)

	err := r.PublishSignals("topic1", []*signal.Signal{signal.New(nil)})
	if !flowerrors.IsSchemaValidation(err) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
	if len(r.TopicSignals("topic1")) != 0 {
		t.Fatal("rejected signal was recorded")
	}
	// The caller got the error, so nothing is retained for teardown.
	if len(r.SchemaViolations()) != 0 {
		t.Fatal("injected publish left a retained violation")
	}
}

func TestBlockPublishRetainsSchemaViolation(t *testing.T) {
	r := New(Config{Synchronous: true, Validator: rejectingValidator{}})
	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{})
	startRouter(t, r)

	err := r.BlockPublisher().PublishSignals("topic3", []*signal.Signal{signal.New(nil)})
	if !flowerrors.IsSchemaValidation(err) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
	bad := r.SchemaViolations()
	if !flowerrors.IsSchemaValidation(bad["topic3"]) {
		t.Fatalf("violation from the block path was not retained: %v", bad)
	}
	if len(r.TopicSignals("topic3")) != 0 {
		t.Fatal("rejected signal was recorded")
	}
}

func TestAsyncInjectionBeforeStartIsRecordedOnly(t *testing.T) {
	r := New(Config{})
	bctx := block.Context{Notifier: r}
	sink := newBlock(&sinkBlock{}, "b2", "sink", bctx)

	r.Configure(map[string]map[string][]Receiver{
		"b1": {block.DefaultTerminal: {{BlockID: "b2", Input: "in"}}},
	}, map[string]block.Block{"b2": sink})
	r.Subscribe("topic1", "b2")

	// No workers are running yet; both injections must record without
	// panicking, and the deliveries are dropped.
	if err := r.PublishSignals("topic1", []*signal.Signal{signal.New(nil)}); err != nil {
		t.Fatal(err)
	}
	r.NotifySignals("b1", []*signal.Signal{signal.New(nil)}, block.DefaultTerminal)

	if len(r.TopicSignals("topic1")) != 1 {
		t.Fatal("pre-start publish was not recorded")
	}
	if len(r.ProcessedSignals("b2")) != 2 {
		t.Fatal("pre-start deliveries were not recorded")
	}

	startRouter(t, r)
	if err := r.PublishSignals("topic1", []*signal.Signal{signal.New(nil)}); err != nil {
		t.Fatal(err)
	}
	if !r.WaitForProcessed("b2", 3, 5*time.Second) {
		t.Fatal("post-start delivery never arrived")
	}
}

func TestWaitSatisfiedImmediately(t *testing.T) {
	r := New(Config{Synchronous: true})
	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{})
	r.DeclarePublisherTopic("out")
	startRouter(t, r)

	if err := r.PublishSignals("out", []*signal.Signal{signal.New(nil)}); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if !r.WaitForPublished(1, 5*time.Second) {
		t.Fatal("wait should be satisfied")
	}
	if time.Since(start) > time.Second {
		t.Fatal("satisfied wait blocked")
	}
}

func TestWaitTimesOutReturningFalse(t *testing.T) {
	r := New(Config{Synchronous: true})
	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{})
	startRouter(t, r)

	if r.WaitForPublished(1, 20*time.Millisecond) {
		t.Fatal("wait reported a signal that never arrived")
	}
}

func TestWaitCountZeroWaitsForNextActivity(t *testing.T) {
	r := New(Config{Synchronous: true})
	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{})
	startRouter(t, r)

	if r.WaitForPublished(0, 20*time.Millisecond) {
		t.Fatal("count zero should wait for activity, not return immediately")
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		r.PublishSignals("anything", []*signal.Signal{signal.New(nil)})
	}()
	if !r.WaitForPublished(0, 5*time.Second) {
		t.Fatal("count zero missed the next recorded signal")
	}
}

func TestWaitWakesPromptly(t *testing.T) {
	r := New(Config{Synchronous: true})
	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{})
	r.DeclarePublisherTopic("out")
	startRouter(t, r)

	go func() {
		time.Sleep(30 * time.Millisecond)
		r.PublishSignals("out", []*signal.Signal{signal.New(nil)})
	}()

	start := time.Now()
	if !r.WaitForPublished(1, 5*time.Second) {
		t.Fatal("wait missed the publish")
	}
	if time.Since(start) > time.Second {
		t.Fatal("wait did not wake promptly on publish")
	}
}

func TestAsynchronousDelivery(t *testing.T) {
	r := New(Config{})
	bctx := block.Context{Notifier: r, Publisher: r}

	echo := newBlock(&echoBlock{}, "b1", "echo", bctx)
	pub := newBlock(&publishBlock{topic: "out"}, "b2", "pub", bctx)

	r.Configure(map[string]map[string][]Receiver{
		"b1": {block.DefaultTerminal: {{BlockID: "b2", Input: "in"}}},
		"b2": {},
	}, map[string]block.Block{"b1": echo, "b2": pub})
	r.Subscribe("in-topic", "b1")
	r.DeclarePublisherTopic("out")
	startRouter(t, r)

	if err := r.PublishSignals("in-topic", []*signal.Signal{signal.New(map[string]any{"v": 1})}); err != nil {
		t.Fatal(err)
	}
	if !r.WaitForPublishedTo("out", 1, 5*time.Second) {
		t.Fatal("published signal never reached topic out")
	}
	if !r.WaitForProcessed("b2", 1, 5*time.Second) {
		t.Fatal("signal never delivered to b2")
	}
	if !r.WaitForProcessedOnInput("b2", "in", 1, 5*time.Second) {
		t.Fatal("signal never recorded on b2 input in")
	}
}

func TestStopDropsLateDeliveries(t *testing.T) {
	r := New(Config{Synchronous: true})
	bctx := block.Context{Notifier: r}
	sink := newBlock(&sinkBlock{}, "b2", "sink", bctx)
	r.Configure(map[string]map[string][]Receiver{}, map[string]block.Block{"b2": sink})
	r.Subscribe("topic1", "b2")
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := r.PublishSignals("topic1", []*signal.Signal{signal.New(nil)}); err != nil {
		t.Fatal(err)
	}
}
