package router

import (
	"context"
	"sync"

	"github.com/kbukum/flowtest/block"
	"github.com/kbukum/flowtest/logger"
	"github.com/kbukum/flowtest/signal"
)

// Receiver is one end of a block connection: signals emitted from a
// terminal are delivered to the receiver block's input.
type Receiver struct {
	BlockID string
	Input   string
}

// SignalValidator checks signals flowing into a topic. The schema
// validator adapter implements it; a nil validator accepts everything.
type SignalValidator interface {
	Validate(topic string, sig *signal.Signal) error
}

// Config configures a Router.
type Config struct {
	// Synchronous makes delivery happen inline on the calling
	// goroutine; otherwise each block gets its own worker.
	Synchronous bool
	// Validator checks signals flowing into topics, if set.
	Validator SignalValidator
	// Log defaults to a silent logger.
	Log *logger.Logger
}

// Router routes signals between blocks and records everything it sees.
type Router struct {
	synchronous bool
	validator   SignalValidator
	log         *logger.Logger

	mu sync.Mutex
	// wiring, fixed after Configure
	execution   map[string]map[string][]Receiver // block id -> terminal -> receivers
	blocks      map[string]block.Block           // by id
	subscribers map[string][]string              // topic -> subscriber block ids
	pubTopics   map[string]bool                  // declared publisher topics

	// recorded buffers, append-only within a test
	topicSignals   map[string][]*signal.Signal
	publishedLog   []*signal.Signal
	processed      map[string][]*signal.Signal
	processedInput map[string]map[string][]*signal.Signal

	// invalidTopics holds the first schema failure per topic for
	// publishes originating inside the graph.
	invalidTopics map[string]error

	// changed is closed and replaced on every append; waiters capture
	// it under mu so a check and its wakeup registration are atomic.
	changed chan struct{}

	ctx     context.Context
	workers map[string]*worker
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New creates a router. Wiring is supplied afterward via Configure.
func New(cfg Config) *Router {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Router{
		synchronous:    cfg.Synchronous,
		validator:      cfg.Validator,
		log:            log.WithComponent("router"),
		execution:      make(map[string]map[string][]Receiver),
		blocks:         make(map[string]block.Block),
		subscribers:    make(map[string][]string),
		pubTopics:      make(map[string]bool),
		topicSignals:   make(map[string][]*signal.Signal),
		processed:      make(map[string][]*signal.Signal),
		processedInput: make(map[string]map[string][]*signal.Signal),
		invalidTopics:  make(map[string]error),
		changed:        make(chan struct{}),
		workers:        make(map[string]*worker),
		ctx:            context.Background(),
	}
}

// Configure installs the graph wiring. Must be called before Start.
func (r *Router) Configure(execution map[string]map[string][]Receiver, blocks map[string]block.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execution = execution
	r.blocks = blocks
}

// Subscribe wires a block to receive everything published to topic.
func (r *Router) Subscribe(topic, blockID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[topic] = append(r.subscribers[topic], blockID)
}

// HasSubscribers reports whether any block is wired to the topic.
func (r *Router) HasSubscribers(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers[topic]) > 0
}

// DeclarePublisherTopic marks a topic as part of the service's published
// output. Waits and assertions without an explicit topic consult the
// union of declared publisher topics.
func (r *Router) DeclarePublisherTopic(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pubTopics[topic] = true
}

// Start makes the router live. In asynchronous mode it launches one
// worker goroutine per block.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	r.ctx = ctx
	if !r.synchronous {
		for id, b := range r.blocks {
			w := newWorker(b, r.log)
			r.workers[id] = w
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				w.run(ctx)
			}()
		}
	}
	r.started = true
	return nil
}

// Stop shuts down delivery. In asynchronous mode it drains and joins
// the block workers. Deliveries after Stop are dropped.
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	workers := r.workers
	r.mu.Unlock()

	for _, w := range workers {
		w.close()
	}
	r.wg.Wait()
	return nil
}

// NotifySignals injects signals as if emitted from the given block's
// named terminal, forwarding them through the graph's connections. Each
// receiver gets its own deep copy. Signals are recorded as processed by
// each receiver before delivery, so a wait observing the buffer never
// lags behind the graph.
func (r *Router) NotifySignals(fromID string, signals []*signal.Signal, terminal string) {
	if len(signals) == 0 {
		return
	}
	r.mu.Lock()
	terminals, ok := r.execution[fromID]
	if !ok {
		r.mu.Unlock()
		r.log.Warn("notify from unknown block", logger.Fields(logger.FieldBlockID, fromID))
		return
	}
	receivers, ok := terminals[terminal]
	if !ok {
		receivers = terminals[block.DefaultTerminal]
	}
	type delivery struct {
		to     block.Block
		worker *worker
		sigs   []*signal.Signal
		input  string
	}
	deliveries := make([]delivery, 0, len(receivers))
	for _, recv := range receivers {
		to, ok := r.blocks[recv.BlockID]
		if !ok {
			continue
		}
		cloned := cloneAll(signals)
		r.recordProcessedLocked(recv.BlockID, recv.Input, cloned)
		deliveries = append(deliveries, delivery{
			to:     to,
			worker: r.workers[recv.BlockID],
			sigs:   cloned,
			input:  recv.Input,
		})
	}
	r.broadcastLocked()
	stopped := r.stopped
	ctx := r.ctx
	r.mu.Unlock()

	if stopped {
		return
	}
	for _, d := range deliveries {
		r.log.Debug("signals forwarded", logger.Fields(
			logger.FieldBlockID, fromID,
			logger.FieldTerminal, terminal,
			logger.FieldInput, d.input,
			logger.FieldCount, len(d.sigs),
		))
		if r.synchronous {
			r.process(ctx, d.to, d.sigs, d.input)
		} else if d.worker == nil {
			// Recorded, but no worker is running to take delivery yet.
			r.log.Warn("delivery before start dropped", logger.Fields(
				logger.FieldBlock, d.to.Name(),
			))
		} else {
			d.worker.enqueue(d.sigs, d.input)
		}
	}
}

// PublishSignals injects signals onto a topic as if a publisher had
// emitted them, validating them against the topic schema, recording
// them, and delivering to every subscriber wired to the topic. A topic
// with no subscribers still records, so assertions on it remain
// possible. This is the test injection path: a schema failure is
// returned to the caller and not retained.
func (r *Router) PublishSignals(topic string, signals []*signal.Signal) error {
	return r.publish(topic, signals, false)
}

// BlockPublisher returns the publish seam handed to blocks. Schema
// failures on this path are retained and reported by SchemaViolations,
// since the offending block has nobody to return the error to.
func (r *Router) BlockPublisher() block.Publisher { return blockPublisher{r} }

type blockPublisher struct{ r *Router }

func (p blockPublisher) PublishSignals(topic string, signals []*signal.Signal) error {
	return p.r.publish(topic, signals, true)
}

// SchemaViolations reports the topics that received schema-invalid
// signals from inside the graph, with the first failure per topic.
func (r *Router) SchemaViolations() map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]error, len(r.invalidTopics))
	for topic, err := range r.invalidTopics {
		out[topic] = err
	}
	return out
}

func (r *Router) publish(topic string, signals []*signal.Signal, retain bool) error {
	if r.validator != nil {
		for _, sig := range signals {
			if err := r.validator.Validate(topic, sig); err != nil {
				if retain {
					r.mu.Lock()
					if _, seen := r.invalidTopics[topic]; !seen {
						r.invalidTopics[topic] = err
					}
					r.mu.Unlock()
					r.log.Error("schema validation failed", logger.Fields(
						logger.FieldTopic, topic,
						logger.FieldError, err.Error(),
					))
				}
				return err
			}
		}
	}

	r.mu.Lock()
	r.topicSignals[topic] = append(r.topicSignals[topic], signals...)
	if r.pubTopics[topic] {
		r.publishedLog = append(r.publishedLog, signals...)
	}
	type delivery struct {
		to     block.Block
		worker *worker
		sigs   []*signal.Signal
	}
	subs := r.subscribers[topic]
	deliveries := make([]delivery, 0, len(subs))
	for _, id := range subs {
		to, ok := r.blocks[id]
		if !ok {
			continue
		}
		cloned := cloneAll(signals)
		r.recordProcessedLocked(id, block.DefaultTerminal, cloned)
		deliveries = append(deliveries, delivery{
			to:     to,
			worker: r.workers[id],
			sigs:   cloned,
		})
	}
	r.broadcastLocked()
	stopped := r.stopped
	ctx := r.ctx
	r.mu.Unlock()

	r.log.Debug("signals published", logger.Fields(
		logger.FieldTopic, topic,
		logger.FieldCount, len(signals),
	))

	if stopped {
		return nil
	}
	for _, d := range deliveries {
		if r.synchronous {
			r.process(ctx, d.to, d.sigs, block.DefaultTerminal)
		} else if d.worker == nil {
			r.log.Warn("delivery before start dropped", logger.Fields(
				logger.FieldBlock, d.to.Name(),
			))
		} else {
			d.worker.enqueue(d.sigs, block.DefaultTerminal)
		}
	}
	return nil
}

func (r *Router) process(ctx context.Context, b block.Block, sigs []*signal.Signal, input string) {
	if err := b.ProcessSignals(ctx, sigs, input); err != nil {
		r.log.Error("block processing failed", logger.Fields(
			logger.FieldBlock, b.Name(),
			logger.FieldError, err.Error(),
		))
	}
}

func (r *Router) recordProcessedLocked(blockID, input string, sigs []*signal.Signal) {
	r.processed[blockID] = append(r.processed[blockID], sigs...)
	inputs, ok := r.processedInput[blockID]
	if !ok {
		inputs = make(map[string][]*signal.Signal)
		r.processedInput[blockID] = inputs
	}
	inputs[input] = append(inputs[input], sigs...)
}

func (r *Router) broadcastLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func cloneAll(signals []*signal.Signal) []*signal.Signal {
	out := make([]*signal.Signal, len(signals))
	for i, s := range signals {
		out[i] = s.Clone()
	}
	return out
}
