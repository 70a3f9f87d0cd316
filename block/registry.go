package block

import (
	"sync"

	"github.com/kbukum/flowtest/errors"
	"github.com/kbukum/flowtest/util"
)

// Factory builds a fresh, unconfigured block instance.
type Factory func() Block

// Registry provides named block-type lookup for graph construction.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Builtin returns a registry preloaded with the built-in block types.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(TypeSubscriber, func() Block { return &SubscriberBlock{} })
	r.Register(TypePublisher, func() Block { return &PublisherBlock{} })
	r.Register(TypePassthrough, func() Block { return &PassthroughBlock{} })
	r.Register(TypeIntervalSimulator, func() Block { return &IntervalSimulator{} })
	r.Register(TypeCounter, func() Block { return &CounterBlock{} })
	return r
}

// Register adds a block type to the registry.
func (r *Registry) Register(typeName string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = f
}

// New instantiates a block of the given type.
func (r *Registry) New(typeName string) (Block, error) {
	r.mu.RLock()
	f, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("block type", typeName).
			WithDetail("available", r.Types())
	}
	return f(), nil
}

// Types returns the sorted names of all registered block types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return util.Keys(r.factories)
}
