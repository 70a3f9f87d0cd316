package block

import (
	"context"

	"github.com/kbukum/flowtest/clock"
	"github.com/kbukum/flowtest/logger"
	"github.com/kbukum/flowtest/signal"
)

// DefaultTerminal is the output terminal used when a block does not name
// one, and the input id used when a connection does not name one.
const DefaultTerminal = "default"

// Block is a single signal-processing unit with configured inputs and
// outputs. Implementations embed Base for identity and lifecycle
// plumbing and override what they need.
type Block interface {
	// ID returns the stable, unique identity of the block instance.
	ID() string
	// Name returns the human label. Names need not be unique.
	Name() string
	// Configure hands the block its merged configuration and seams.
	// Called exactly once, before Start.
	Configure(bctx Context) error
	// Start begins any self-driven behavior (timers, generators).
	Start(ctx context.Context) error
	// Stop ends self-driven behavior and releases resources.
	Stop(ctx context.Context) error
	// ProcessSignals handles signals delivered to the named input.
	ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error
}

// Notifier is the seam through which blocks emit signals from an output
// terminal into the graph. In tests this is the intercepting router.
type Notifier interface {
	NotifySignals(fromID string, signals []*signal.Signal, terminal string)
}

// Publisher is the seam through which blocks publish to a pub/sub topic.
type Publisher interface {
	PublishSignals(topic string, signals []*signal.Signal) error
}

// TopicSubscriber is implemented by blocks that consume a pub/sub topic.
// The loader registers them with the router before the graph starts.
type TopicSubscriber interface {
	SubscribedTopic() string
}

// TopicPublisher is implemented by blocks that emit onto a pub/sub topic.
type TopicPublisher interface {
	PublishedTopic() string
}

// Commander is optionally implemented by blocks exposing named commands
// invokable from tests.
type Commander interface {
	// Command invokes the named command with the given arguments.
	Command(name string, args map[string]any) error
	// Commands lists the available command names.
	Commands() []string
}

// Context carries everything a block needs at configure time.
type Context struct {
	// Config is the merged block configuration, with overrides applied
	// and environment variables substituted.
	Config map[string]any
	// Notifier receives signals the block emits from its terminals.
	Notifier Notifier
	// Publisher receives signals the block publishes to topics.
	Publisher Publisher
	// Scheduler is the block's only legitimate source of time.
	Scheduler clock.Scheduler
	// Persisted is state seeded by the test for this block, or nil.
	Persisted any
	// Log is scoped to the owning service.
	Log *logger.Logger
}

// Base provides identity, context plumbing, and no-op lifecycle for
// block implementations.
type Base struct {
	id   string
	name string
	bctx Context
}

// SetIdentity assigns the block's id and name. Called by the loader
// before Configure.
func (b *Base) SetIdentity(id, name string) {
	b.id = id
	b.name = name
}

func (b *Base) ID() string   { return b.id }
func (b *Base) Name() string { return b.name }

// Configure stores the block context. Implementations that override
// Configure should call through to Base.Configure first.
func (b *Base) Configure(bctx Context) error {
	b.bctx = bctx
	return nil
}

func (b *Base) Start(ctx context.Context) error { return nil }
func (b *Base) Stop(ctx context.Context) error  { return nil }

// ProcessSignals discards the signals. Source-only blocks keep this.
func (b *Base) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	return nil
}

// Context returns the block context handed to Configure.
func (b *Base) Context() Context { return b.bctx }

// Notify emits signals from the named terminal through the graph.
func (b *Base) Notify(signals []*signal.Signal, terminal string) {
	if b.bctx.Notifier != nil {
		b.bctx.Notifier.NotifySignals(b.id, signals, terminal)
	}
}

// Publish emits signals onto a topic through the publish seam.
func (b *Base) Publish(topic string, signals []*signal.Signal) error {
	if b.bctx.Publisher == nil {
		return nil
	}
	return b.bctx.Publisher.PublishSignals(topic, signals)
}

// ConfigString reads a string config value with a default.
func (b *Base) ConfigString(key, def string) string {
	if v, ok := b.bctx.Config[key].(string); ok {
		return v
	}
	return def
}

// ConfigValue reads a raw config value.
func (b *Base) ConfigValue(key string) (any, bool) {
	v, ok := b.bctx.Config[key]
	return v, ok
}
