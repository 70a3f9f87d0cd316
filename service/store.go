package service

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/kbukum/flowtest/errors"
)

// Store resolves service and block definitions by name.
type Store interface {
	// Service returns the named service definition.
	Service(name string) (*ServiceDef, error)
	// Block returns the named shared block definition.
	Block(name string) (*BlockDef, error)
}

// MemoryStore holds definitions registered directly from test code.
type MemoryStore struct {
	services map[string]*ServiceDef
	blocks   map[string]*BlockDef
}

// NewMemoryStore builds a store from literal definitions.
func NewMemoryStore(services []*ServiceDef, blocks []*BlockDef) (*MemoryStore, error) {
	s := &MemoryStore{
		services: make(map[string]*ServiceDef, len(services)),
		blocks:   make(map[string]*BlockDef, len(blocks)),
	}
	for _, svc := range services {
		if err := svc.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.services[svc.Name]; dup {
			return nil, errors.Configuration("duplicate service definition %q", svc.Name)
		}
		s.services[svc.Name] = svc
	}
	for _, b := range blocks {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.blocks[b.Name]; dup {
			return nil, errors.Configuration("duplicate block definition %q", b.Name)
		}
		s.blocks[b.Name] = b
	}
	return s, nil
}

func (s *MemoryStore) Service(name string) (*ServiceDef, error) {
	svc, ok := s.services[name]
	if !ok {
		return nil, errors.NotFound("service", name)
	}
	return svc, nil
}

func (s *MemoryStore) Block(name string) (*BlockDef, error) {
	b, ok := s.blocks[name]
	if !ok {
		return nil, errors.NotFound("block", name)
	}
	return b, nil
}

// FileStore loads definitions from a project tree: service definitions
// under {root}/etc/services and shared block definitions under
// {root}/etc/blocks, one file per definition, in YAML or JSON.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at a project directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Service(name string) (*ServiceDef, error) {
	var def ServiceDef
	if err := s.load(filepath.Join(s.root, "etc", "services"), name, &def); err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = name
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *FileStore) Block(name string) (*BlockDef, error) {
	var def BlockDef
	if err := s.load(filepath.Join(s.root, "etc", "blocks"), name, &def); err != nil {
		return nil, err
	}
	if def.Name == "" {
		def.Name = name
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *FileStore) load(dir, name string, out any) error {
	path, ok := findDefinitionFile(dir, name)
	if !ok {
		return errors.NotFound("definition", name)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Configuration("read definition %s: %v", path, err)
	}
	if err := v.Unmarshal(out); err != nil {
		return errors.Configuration("decode definition %s: %v", path, err)
	}
	return nil
}

func findDefinitionFile(dir, name string) (string, bool) {
	for _, ext := range []string{".yml", ".yaml", ".json"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}
