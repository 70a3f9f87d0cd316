// Package harness is the entry point for functional service tests: it
// loads a service definition, runs its block graph against an
// intercepting router and a virtual clock, and exposes publish, wait,
// and assertion primitives.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/kbukum/flowtest/block"
	"github.com/kbukum/flowtest/clock"
	"github.com/kbukum/flowtest/errors"
	"github.com/kbukum/flowtest/logger"
	"github.com/kbukum/flowtest/router"
	"github.com/kbukum/flowtest/schema"
	"github.com/kbukum/flowtest/service"
	"github.com/kbukum/flowtest/signal"
	"github.com/kbukum/flowtest/util"
)

// DefaultTimeout bounds waits that do not specify their own timeout.
const DefaultTimeout = 2 * time.Second

// Config describes the service under test and the test's adjustments
// to it.
type Config struct {
	// Service names the definition to load from the store.
	Service string
	// Definition supplies the service directly, bypassing the store
	// lookup. Block definitions are still resolved through the store.
	Definition *service.ServiceDef

	// ProjectRoot locates definition files and the topic schema
	// manifest. Ignored when Store is set, except for schema discovery.
	ProjectRoot string
	// Store resolves definitions. Defaults to a file store rooted at
	// ProjectRoot.
	Store service.Store
	// Registry supplies block implementations. Defaults to the
	// built-in registry.
	Registry *block.Registry

	// Asynchronous runs each block on its own goroutine. The default
	// is synchronous inline delivery with a fully deterministic order.
	Asynchronous bool
	// ManualStart leaves the graph stopped until Start is called.
	ManualStart bool

	// EnvVars are substituted into block configurations and schema
	// topic keys.
	EnvVars map[string]string
	// EnvFile loads additional variables from a dotenv file. Explicit
	// EnvVars win on conflict.
	EnvFile string

	// BlockOverrides overlays per-block configuration, keyed by name.
	BlockOverrides map[string]map[string]any
	// MockBlocks replaces whole block implementations, keyed by name.
	MockBlocks map[string]block.Block
	// ProcessOverrides replaces a block's processing while keeping its
	// lifecycle, keyed by name.
	ProcessOverrides map[string]block.ProcessFunc
	// PersistedState seeds per-block persisted state, keyed by name.
	PersistedState map[string]any

	// PublisherTopics declares extra topics that count as service
	// output, beyond those contributed by publisher blocks.
	PublisherTopics []string
	// SubscriberTopics declares the topics the test intends to inject
	// into. Construction fails fast when a declared topic has no
	// subscribing block, catching wiring typos before any publish.
	SubscriberTopics []string

	// Timeout bounds waits. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Trace wraps blocks with span creation around processing.
	Trace bool
	// Log defaults to the environment-configured logger.
	Log *logger.Logger
}

// Harness drives one service instance through a test.
type Harness struct {
	cfg     Config
	log     *logger.Logger
	graph   *service.Graph
	router  *router.Router
	virtual *clock.Virtual
	timeout time.Duration
	started bool
}

// New builds a harness for the configured service. Unless ManualStart
// is set, the graph is already running when New returns.
func New(cfg Config) (*Harness, error) {
	log := cfg.Log
	if log == nil {
		log = logger.NewFromEnv("flowtest")
	}

	envVars, err := resolveEnvVars(cfg)
	if err != nil {
		return nil, err
	}

	store := cfg.Store
	if store == nil {
		if cfg.ProjectRoot == "" {
			return nil, errors.Configuration("harness requires a store or a project root")
		}
		store = service.NewFileStore(cfg.ProjectRoot)
	}

	def := cfg.Definition
	if def == nil {
		if cfg.Service == "" {
			return nil, errors.Configuration("harness requires a service name or definition")
		}
		def, err = store.Service(cfg.Service)
		if err != nil {
			return nil, err
		}
	}

	var validator *schema.Validator
	if cfg.ProjectRoot != "" {
		validator, err = schema.Discover(cfg.ProjectRoot, envVars, log)
		if err != nil {
			return nil, err
		}
	}

	routerCfg := router.Config{
		Synchronous: !cfg.Asynchronous,
		Log:         log,
	}
	if validator != nil {
		routerCfg.Validator = validator
	}
	r := router.New(routerCfg)

	// Synchronous tests drive time explicitly through the virtual
	// clock; asynchronous tests run on real time.
	var scheduler clock.Scheduler
	var virtual *clock.Virtual
	if cfg.Asynchronous {
		scheduler = clock.System{}
	} else {
		virtual = clock.NewVirtual()
		scheduler = virtual
	}

	graph, err := service.Build(def, store, service.Options{
		Registry:         cfg.Registry,
		Router:           r,
		Scheduler:        scheduler,
		Log:              log,
		EnvVars:          envVars,
		BlockOverrides:   cfg.BlockOverrides,
		MockBlocks:       cfg.MockBlocks,
		ProcessOverrides: cfg.ProcessOverrides,
		PersistedState:   cfg.PersistedState,
		Trace:            cfg.Trace,
	})
	if err != nil {
		return nil, err
	}
	for _, topic := range cfg.PublisherTopics {
		r.DeclarePublisherTopic(topic)
	}
	for _, topic := range cfg.SubscriberTopics {
		if !r.HasSubscribers(topic) {
			return nil, errors.Configuration("declared subscriber topic %q has no subscribing block", topic)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	h := &Harness{
		cfg:     cfg,
		log:     log.WithFields(map[string]any{logger.FieldService: graph.Name}),
		graph:   graph,
		router:  r,
		virtual: virtual,
		timeout: timeout,
	}
	if !cfg.ManualStart {
		if err := h.Start(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func resolveEnvVars(cfg Config) (map[string]string, error) {
	vars := map[string]string{}
	if cfg.EnvFile != "" {
		fromFile, err := EnvVarsFromFile(cfg.EnvFile)
		if err != nil {
			return nil, err
		}
		for k, v := range fromFile {
			vars[k] = v
		}
	}
	for k, v := range cfg.EnvVars {
		vars[k] = v
	}
	return vars, nil
}

// EnvVarsFromFile reads variables from a dotenv file without touching
// the process environment.
func EnvVarsFromFile(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Configuration("read env file %s: %v", path, err)
	}
	return vars, nil
}

// Start starts the service graph. Safe to call once after ManualStart.
func (h *Harness) Start() error {
	if h.started {
		return nil
	}
	if err := h.graph.Start(context.Background()); err != nil {
		return err
	}
	h.started = true
	h.log.Debug("service started")
	return nil
}

// Stop stops the service graph and surfaces schema violations that
// blocks caused during the test, since those have no other way to reach
// the test. Safe to call repeatedly.
func (h *Harness) Stop() error {
	if !h.started {
		return nil
	}
	h.started = false
	err := h.graph.Stop(context.Background())
	h.log.Debug("service stopped")
	if bad := h.router.SchemaViolations(); len(bad) > 0 {
		topics := util.Keys(bad)
		verr := errors.New(errors.CodeSchemaValidation,
			fmt.Sprintf("invalid signals reached topics %v during the test", topics),
		).WithCause(bad[topics[0]])
		if err == nil {
			err = verr
		}
	}
	return err
}

// Router exposes the intercepting router for advanced assertions.
func (h *Harness) Router() *router.Router { return h.router }

// ServiceName returns the name of the service under test.
func (h *Harness) ServiceName() string { return h.graph.Name }

// Block resolves a block instance by id or unique name.
func (h *Harness) Block(ref string) (block.Block, error) {
	inst, err := h.graph.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return inst.Block, nil
}

// BlockID resolves a block reference to its unique id.
func (h *Harness) BlockID(ref string) (string, error) {
	inst, err := h.graph.Resolve(ref)
	if err != nil {
		return "", err
	}
	return inst.ID, nil
}

// PublishSignals injects signals onto a topic, as if published by an
// external service. Signals are schema-validated before delivery.
func (h *Harness) PublishSignals(topic string, signals ...*signal.Signal) error {
	return h.router.PublishSignals(topic, signals)
}

// NotifySignals injects signals as if emitted from the referenced
// block's terminal. An unknown or ambiguous reference is an error.
func (h *Harness) NotifySignals(ref string, signals []*signal.Signal, terminal string) error {
	inst, err := h.graph.Resolve(ref)
	if err != nil {
		return err
	}
	if terminal == "" {
		terminal = block.DefaultTerminal
	}
	h.router.NotifySignals(inst.ID, signals, terminal)
	return nil
}

// JumpAhead advances the virtual clock, firing every timer that falls
// due, in order. Only meaningful with synchronous delivery, where timer
// side effects complete before JumpAhead returns.
func (h *Harness) JumpAhead(d time.Duration) error {
	if h.cfg.Asynchronous {
		return errors.Configuration("JumpAhead requires synchronous mode")
	}
	h.virtual.JumpAhead(d)
	return nil
}

// CommandBlock invokes a named command on the referenced block.
func (h *Harness) CommandBlock(ref, command string, args map[string]any) error {
	inst, err := h.graph.Resolve(ref)
	if err != nil {
		return err
	}
	cmd, ok := block.AsCommander(inst.Block)
	if !ok {
		return errors.NotFound("command interface on block", ref)
	}
	return cmd.Command(command, args)
}
