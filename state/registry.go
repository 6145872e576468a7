package state

import (
	"fmt"
	"sort"
	"sync"
)

// BackendType names a registered KVStore implementation.
type BackendType string

const (
	MemDBBackend   BackendType = "memdb"
	LevelDBBackend BackendType = "goleveldb"
	BadgerBackend  BackendType = "badger"
	SQLiteBackend  BackendType = "sqlite"
)

// Options configures a backend.
type Options struct {
	// Dir is the data directory. Ignored by in-memory backends.
	Dir string
	// Name is the database name inside Dir.
	Name string
	// InMemory asks persistent backends to keep data in memory when they can.
	InMemory bool
}

// Constructor opens a backend.
type Constructor func(opts Options) (KVStore, error)

// Registry maps backend types to their constructors.
type Registry interface {
	Register(bt BackendType, constructor Constructor) error
	Open(bt BackendType, opts Options) (KVStore, error)
	ListRegistered() []BackendType
}

type registry struct {
	mu       sync.RWMutex
	backends map[BackendType]Constructor
}

var defaultRegistry Registry = &registry{
	backends: make(map[BackendType]Constructor),
}

// GetRegistry returns the global Registry instance.
func GetRegistry() Registry {
	return defaultRegistry
}

func (r *registry) Register(bt BackendType, constructor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[bt]; exists {
		return fmt.Errorf("backend type %s already registered", bt)
	}
	r.backends[bt] = constructor
	return nil
}

func (r *registry) Open(bt BackendType, opts Options) (KVStore, error) {
	r.mu.RLock()
	constructor, exists := r.backends[bt]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("backend type %s not registered", bt)
	}
	if opts.Name == "" {
		opts.Name = "state"
	}
	kv, err := constructor(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", bt, err)
	}
	return kv, nil
}

func (r *registry) ListRegistered() []BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]BackendType, 0, len(r.backends))
	for bt := range r.backends {
		types = append(types, bt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Register adds a backend to the global registry.
func Register(bt BackendType, constructor Constructor) error {
	return GetRegistry().Register(bt, constructor)
}

// MustRegister is Register for package init functions.
func MustRegister(bt BackendType, constructor Constructor) {
	if err := Register(bt, constructor); err != nil {
		panic(err)
	}
}

// Open opens a backend from the global registry.
func Open(bt BackendType, opts Options) (KVStore, error) {
	return GetRegistry().Open(bt, opts)
}

// ListRegistered returns the registered backend types in sorted order.
func ListRegistered() []BackendType {
	return GetRegistry().ListRegistered()
}
