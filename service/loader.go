package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/kbukum/flowtest/block"
	"github.com/kbukum/flowtest/clock"
	"github.com/kbukum/flowtest/errors"
	"github.com/kbukum/flowtest/logger"
	"github.com/kbukum/flowtest/router"
	"github.com/kbukum/flowtest/util"
)

// Options controls how a service definition becomes a runnable graph.
type Options struct {
	// Registry supplies block implementations by type name. Defaults to
	// the built-in registry.
	Registry *block.Registry
	// Router intercepts and records every signal. Required.
	Router *router.Router
	// Scheduler is handed to blocks as their only source of time.
	// Required.
	Scheduler clock.Scheduler
	// Log defaults to a silent logger.
	Log *logger.Logger

	// EnvVars are substituted into block configurations wherever a
	// string contains a [[ NAME ]] reference.
	EnvVars map[string]string
	// BlockOverrides overlays per-block configuration, keyed by block
	// name. Overrides merge additively onto the stored definition.
	BlockOverrides map[string]map[string]any
	// MockBlocks replaces whole block implementations, keyed by block
	// name. The replacement still gets the merged configuration.
	MockBlocks map[string]block.Block
	// ProcessOverrides replaces a block's signal processing while
	// keeping its configured lifecycle, keyed by block name.
	ProcessOverrides map[string]block.ProcessFunc
	// PersistedState seeds per-block persisted state, keyed by block
	// name.
	PersistedState map[string]any

	// Trace wraps every block with span creation around processing.
	Trace bool
}

// Instance is one running block in a graph.
type Instance struct {
	ID    string
	Name  string
	Block block.Block
}

// Graph is a built, configured service: its block instances in
// definition order plus the router wiring between them.
type Graph struct {
	Name      string
	Instances []*Instance
	Router    *router.Router

	byID   map[string]*Instance
	byName map[string][]*Instance
	log    *logger.Logger
}

// Build turns a service definition into a configured graph. Blocks are
// instantiated, mocked and overridden as requested, configured with
// their merged and variable-expanded configs, and wired into the
// router. Build does not start anything.
func Build(def *ServiceDef, store Store, opts Options) (*Graph, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if opts.Router == nil {
		return nil, errors.Configuration("loader requires a router")
	}
	if opts.Scheduler == nil {
		return nil, errors.Configuration("loader requires a scheduler")
	}
	registry := opts.Registry
	if registry == nil {
		registry = block.Builtin()
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithFields(map[string]any{logger.FieldService: def.Name})

	g := &Graph{
		Name:   def.Name,
		Router: opts.Router,
		byID:   make(map[string]*Instance),
		byName: make(map[string][]*Instance),
		log:    log,
	}

	// Mappings instantiate shared definitions under service-local
	// aliases. Everything else referenced in the execution wiring is
	// looked up in the store directly.
	overlays := make(map[string]*MappingDef, len(def.Mappings))
	for i := range def.Mappings {
		m := &def.Mappings[i]
		if _, dup := overlays[m.Name]; dup {
			return nil, errors.Configuration("duplicate mapping name %q in service %q", m.Name, def.Name)
		}
		overlays[m.Name] = m
	}

	order := instantiationOrder(def, overlays)
	if err := checkAdjustmentKeys(def.Name, order, opts); err != nil {
		return nil, err
	}
	instances := make(map[string]*Instance, len(order))
	configs := make(map[string]map[string]any, len(order))

	for _, name := range order {
		blockDef, cfg, err := resolveDefinition(name, store, overlays)
		if err != nil {
			return nil, err
		}
		if override, ok := opts.BlockOverrides[name]; ok {
			cfg = MergeConfig(cfg, override)
		}
		cfg, _ = util.ExpandVars(cfg, opts.EnvVars).(map[string]any)

		b, err := makeBlock(name, blockDef, registry, opts)
		if err != nil {
			return nil, err
		}

		id := blockDef.ID
		if id == "" {
			id = uuid.NewString()
		}
		if setter, ok := b.(interface{ SetIdentity(id, name string) }); ok {
			setter.SetIdentity(id, name)
		}
		if b.ID() != id {
			return nil, errors.Configuration("block %q does not accept identity assignment", name)
		}

		inst := &Instance{ID: id, Name: name, Block: b}
		instances[name] = inst
		configs[name] = cfg
		g.Instances = append(g.Instances, inst)
		g.byID[id] = inst
		g.byName[name] = append(g.byName[name], inst)
	}

	execution, err := buildWiring(def, instances)
	if err != nil {
		return nil, err
	}
	blocksByID := make(map[string]block.Block, len(g.Instances))
	for _, inst := range g.Instances {
		blocksByID[inst.ID] = inst.Block
	}
	opts.Router.Configure(execution, blocksByID)

	for _, inst := range g.Instances {
		bctx := block.Context{
			Config:    configs[inst.Name],
			Notifier:  opts.Router,
			Publisher: opts.Router.BlockPublisher(),
			Scheduler: opts.Scheduler,
			Persisted: opts.PersistedState[inst.Name],
			Log:       log.WithFields(map[string]any{logger.FieldBlock: inst.Name}),
		}
		if err := inst.Block.Configure(bctx); err != nil {
			return nil, errors.Configuration("configure block %q: %v", inst.Name, err).WithCause(err)
		}
	}

	// Topic seams register after Configure, since blocks read their
	// topic from config, but before anything starts, so no published
	// signal can slip past the recorder.
	for _, inst := range g.Instances {
		if topic, ok := block.AsTopicSubscriber(inst.Block); ok && topic != "" {
			opts.Router.Subscribe(topic, inst.ID)
		}
		if topic, ok := block.AsTopicPublisher(inst.Block); ok && topic != "" {
			opts.Router.DeclarePublisherTopic(topic)
		}
	}

	return g, nil
}

// checkAdjustmentKeys rejects override, mock, process-override and
// persisted-state keys that match no block in the service, so a typo'd
// adjustment fails the build instead of silently testing the real block.
func checkAdjustmentKeys(serviceName string, order []string, opts Options) error {
	known := make(map[string]bool, len(order))
	for _, name := range order {
		known[name] = true
	}
	keyed := []struct {
		what string
		keys []string
	}{
		{"block override", util.Keys(opts.BlockOverrides)},
		{"mock block", util.Keys(opts.MockBlocks)},
		{"process override", util.Keys(opts.ProcessOverrides)},
		{"persisted state", util.Keys(opts.PersistedState)},
	}
	for _, k := range keyed {
		for _, name := range k.keys {
			if !known[name] {
				return errors.Configuration("%s for %q matches no block in service %q", k.what, name, serviceName)
			}
		}
	}
	return nil
}

func resolveDefinition(name string, store Store, overlays map[string]*MappingDef) (*BlockDef, map[string]any, error) {
	if m, ok := overlays[name]; ok {
		base, err := store.Block(m.Block)
		if err != nil {
			return nil, nil, err
		}
		return base, MergeConfig(base.Config, m.Config), nil
	}
	base, err := store.Block(name)
	if err != nil {
		return nil, nil, err
	}
	return base, MergeConfig(base.Config, nil), nil
}

func makeBlock(name string, def *BlockDef, registry *block.Registry, opts Options) (block.Block, error) {
	var b block.Block
	if mock, ok := opts.MockBlocks[name]; ok {
		b = mock
	} else {
		made, err := registry.New(def.Type)
		if err != nil {
			return nil, err
		}
		b = made
	}
	if fn, ok := opts.ProcessOverrides[name]; ok {
		b = block.OverrideProcess(b, fn)
	}
	if opts.Trace {
		b = block.WithTracing(b)
	}
	if opts.Log != nil {
		b = block.WithLogging(b, opts.Log)
	}
	return b, nil
}

// instantiationOrder lists every block name the service touches, in a
// stable order: execution entries first, then their receivers, then
// mappings not otherwise referenced.
func instantiationOrder(def *ServiceDef, overlays map[string]*MappingDef) []string {
	seen := make(map[string]bool)
	var order []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	for _, e := range def.Execution {
		add(e.Block)
	}
	for _, e := range def.Execution {
		for _, receivers := range e.Receivers {
			for _, r := range receivers {
				add(r.Block)
			}
		}
	}
	for _, m := range def.Mappings {
		add(m.Name)
	}
	return order
}

func buildWiring(def *ServiceDef, instances map[string]*Instance) (map[string]map[string][]router.Receiver, error) {
	execution := make(map[string]map[string][]router.Receiver, len(instances))
	for _, inst := range instances {
		execution[inst.ID] = make(map[string][]router.Receiver)
	}
	for _, e := range def.Execution {
		from, ok := instances[e.Block]
		if !ok {
			return nil, errors.NotFound("block", e.Block)
		}
		for terminal, receivers := range e.Receivers {
			if terminal == "" {
				terminal = block.DefaultTerminal
			}
			for _, r := range receivers {
				to, ok := instances[r.Block]
				if !ok {
					return nil, errors.NotFound("block", r.Block)
				}
				input := r.Input
				if input == "" {
					input = block.DefaultTerminal
				}
				execution[from.ID][terminal] = append(execution[from.ID][terminal], router.Receiver{
					BlockID: to.ID,
					Input:   input,
				})
			}
		}
	}
	return execution, nil
}

// Resolve finds a block instance by reference: exact id match first,
// then unique name match. Multiple instances sharing the name is an
// error the caller must disambiguate with an id.
func (g *Graph) Resolve(ref string) (*Instance, error) {
	if inst, ok := g.byID[ref]; ok {
		return inst, nil
	}
	matches := g.byName[ref]
	switch len(matches) {
	case 0:
		return nil, errors.NotFound("block", ref)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, inst := range matches {
			ids[i] = inst.ID
		}
		return nil, errors.AmbiguousBlock(ref, ids)
	}
}

// Start starts the router, then the blocks in definition order.
func (g *Graph) Start(ctx context.Context) error {
	if err := g.Router.Start(ctx); err != nil {
		return err
	}
	for _, inst := range g.Instances {
		if err := inst.Block.Start(ctx); err != nil {
			return errors.Configuration("start block %q: %v", inst.Name, err).WithCause(err)
		}
		g.log.Debug("block started", logger.Fields(
			logger.FieldBlock, inst.Name,
			logger.FieldBlockID, inst.ID,
		))
	}
	return nil
}

// Stop stops the blocks in reverse order, then the router. The first
// error is returned but every block still gets its Stop call.
func (g *Graph) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(g.Instances) - 1; i >= 0; i-- {
		inst := g.Instances[i]
		if err := inst.Block.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := g.Router.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
