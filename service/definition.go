// Package service loads declarative service definitions and builds
// runnable block graphs from them.
package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/kbukum/flowtest/errors"
)

var validate = validator.New()

// BlockDef declares a reusable block configuration. Blocks are shared
// across services; a service pulls them in through its execution
// entries and mappings.
type BlockDef struct {
	// ID pins the instance identity. Usually empty; the loader assigns
	// a fresh unique id per instantiation.
	ID string `mapstructure:"id" json:"id" yaml:"id"`
	// Name labels the block. Names need not be unique across a graph.
	Name string `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	// Type names the registered block implementation.
	Type string `mapstructure:"type" json:"type" yaml:"type" validate:"required"`
	// Config is the block's base configuration.
	Config map[string]any `mapstructure:"config" json:"config" yaml:"config"`
}

// ReceiverDef is the receiving end of a connection.
type ReceiverDef struct {
	// Block references the receiving block by name.
	Block string `mapstructure:"block" json:"block" yaml:"block" validate:"required"`
	// Input names the receiver's input. Empty means the default input.
	Input string `mapstructure:"input" json:"input" yaml:"input"`
}

// ExecutionDef wires one block's output terminals to receivers.
type ExecutionDef struct {
	// Block references the emitting block by name.
	Block string `mapstructure:"block" json:"block" yaml:"block" validate:"required"`
	// Receivers maps terminal names to the connections fed from them.
	Receivers map[string][]ReceiverDef `mapstructure:"receivers" json:"receivers" yaml:"receivers" validate:"dive,dive"`
}

// MappingDef instantiates a shared block definition under a
// service-local alias, optionally overlaying extra configuration.
type MappingDef struct {
	// Name is the alias the instance carries inside this service.
	Name string `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	// Block names the underlying shared block definition.
	Block string `mapstructure:"block" json:"block" yaml:"block" validate:"required"`
	// Config is overlaid on the underlying definition's config.
	Config map[string]any `mapstructure:"config" json:"config" yaml:"config"`
}

// ServiceDef declares a service: which blocks it runs and how signals
// flow between them.
type ServiceDef struct {
	Name      string         `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	Execution []ExecutionDef `mapstructure:"execution" json:"execution" yaml:"execution" validate:"dive"`
	Mappings  []MappingDef   `mapstructure:"mappings" json:"mappings" yaml:"mappings" validate:"dive"`
}

// Validate checks structural completeness of the definition.
func (d *ServiceDef) Validate() error {
	if err := validate.Struct(d); err != nil {
		return errors.Configuration("invalid service definition %q: %v", d.Name, err)
	}
	return nil
}

// Validate checks structural completeness of the definition.
func (d *BlockDef) Validate() error {
	if err := validate.Struct(d); err != nil {
		return errors.Configuration("invalid block definition %q: %v", d.Name, err)
	}
	return nil
}
