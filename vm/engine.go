// Package vm dispatches contract invocations. An Engine owns the committed
// state, the WebAssembly runtime and the code repository, and moves every
// invocation through Idle, Dispatching, Executing and then Committed or
// Reverted.
package vm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/govm-net/abihost/api"
	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/metrics"
	"github.com/govm-net/abihost/repository"
	"github.com/govm-net/abihost/security"
	"github.com/govm-net/abihost/state"
	"github.com/govm-net/abihost/types"
	"github.com/govm-net/abihost/wasm"
)

const eventTopic = "contract:event"

// Config represents engine configuration
type Config struct {
	Limits    security.Limits // Per-invocation resource limits
	CodeDir   string          // WASM code repository directory, WASM deploys are disabled when empty
	CacheSize int             // Compiled module cache size
}

// DefaultConfig returns default limits without a code repository.
func DefaultConfig() Config {
	return Config{
		Limits:    security.DefaultLimits(),
		CacheSize: 64,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records engine activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine is responsible for contract deployment and execution
type Engine struct {
	config  Config
	kv      state.KVStore
	ledger  *state.Ledger
	runtime *wasm.Runtime
	code    *repository.Manager
	logger  *zap.Logger
	metrics *metrics.Metrics
	bus     evbus.Bus
	blocks  *security.BlockLimiter
	paused  atomic.Bool

	locks     sync.Map // contract core.Address -> *sync.Mutex
	deployers sync.Map // creator core.Address -> *sync.Mutex
	phases    sync.Map // core.Address -> types.Phase

	subMu sync.Mutex
	subs  map[string]struct{}

	mu     sync.RWMutex
	closed bool
}

var _ api.VM = (*Engine)(nil)

// NewEngine creates an engine over kv. The engine takes ownership of kv and
// closes it in Close.
func NewEngine(ctx context.Context, kv state.KVStore, config Config, opts ...Option) (*Engine, error) {
	if err := validateConfig(kv, config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		config: config,
		kv:     kv,
		ledger: state.NewLedger(kv),
		logger: zap.NewNop(),
		bus:    evbus.New(),
		blocks: security.NewBlockLimiter(config.Limits),
		subs:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	rt, err := wasm.NewRuntime(ctx, wasm.Config{
		MaxMemoryPages: config.Limits.MaxMemoryPages,
		CacheSize:      config.CacheSize,
	}, e.logger.Named("wasm"))
	if err != nil {
		return nil, fmt.Errorf("failed to create wasm runtime: %w", err)
	}
	e.runtime = rt

	if config.CodeDir != "" {
		code, err := repository.NewManager(config.CodeDir, e.logger.Named("repository"))
		if err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("failed to create code manager: %w", err)
		}
		e.code = code
	}

	height, err := e.ledger.Height()
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	e.metrics.BlockHeight(height)
	return e, nil
}

// validateConfig validates the configuration
func validateConfig(kv state.KVStore, config Config) error {
	if kv == nil {
		return errors.New("state store is nil")
	}
	if config.CacheSize < 0 {
		return fmt.Errorf("invalid cache size: %d", config.CacheSize)
	}
	return config.Limits.Validate()
}

// Ledger returns the committed state the engine runs against.
func (e *Engine) Ledger() *state.Ledger {
	return e.ledger
}

// acquire guards an operation against a concurrent Close.
func (e *Engine) acquire() (func(), error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, core.ErrClosed
	}
	return e.mu.RUnlock, nil
}

// lockFor serializes invocations of one instance. Entries are only created for
// deployed contracts and are kept after Remove so a stale holder can never
// run beside a new one.
func (e *Engine) lockFor(addr core.Address) *sync.Mutex {
	l, _ := e.locks.LoadOrStore(addr, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// deployerLock serializes deploys from one creator so each reads a distinct
// nonce.
func (e *Engine) deployerLock(creator core.Address) *sync.Mutex {
	l, _ := e.deployers.LoadOrStore(creator, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Pause rejects every Invoke and Deploy with ErrPaused until Resume. Queries
// and operator calls such as Fund and AdvanceBlock still run. Invocations
// already executing finish normally.
func (e *Engine) Pause() {
	if !e.paused.Swap(true) {
		e.logger.Warn("engine paused")
	}
}

// Resume lifts a Pause.
func (e *Engine) Resume() {
	if e.paused.Swap(false) {
		e.logger.Info("engine resumed")
	}
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// Phase returns the dispatcher state of the instance at addr.
func (e *Engine) Phase(addr core.Address) types.Phase {
	if p, ok := e.phases.Load(addr); ok {
		return p.(types.Phase)
	}
	return types.PhaseIdle
}

// AdvanceBlock moves the chain to height. Heights never decrease.
func (e *Engine) AdvanceBlock(height uint64) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := e.ledger.SetHeight(height); err != nil {
		return err
	}
	e.metrics.BlockHeight(height)
	e.logger.Debug("block advanced", zap.Uint64("height", height))
	return nil
}

// BlockHeight returns the committed chain height.
func (e *Engine) BlockHeight() (uint64, error) {
	release, err := e.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return e.ledger.Height()
}

// Fund credits amount to addr outside of any invocation.
func (e *Engine) Fund(addr core.Address, amount uint64) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	if addr.IsZero() {
		return fmt.Errorf("%w: cannot fund the zero address", core.ErrInvalidAddress)
	}
	if err := e.ledger.Credit(addr, amount); err != nil {
		return fmt.Errorf("failed to fund %s: %w", addr, err)
	}
	e.logger.Info("address funded", zap.Stringer("address", addr), zap.Uint64("amount", amount))
	return nil
}

// Balance returns the committed balance of addr.
func (e *Engine) Balance(addr core.Address) (uint64, error) {
	release, err := e.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return e.ledger.Balance(addr)
}

// Events returns the committed events of a contract in sequence order.
func (e *Engine) Events(contract core.Address) ([]types.Event, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.ledger.Events(contract)
}

// Subscribe calls fn for every event committed after it returns. fn runs on
// the committing goroutine after the instance is unlocked and must not call
// Subscribe or the returned unsubscribe func.
func (e *Engine) Subscribe(fn func(types.Event)) (func(), error) {
	if fn == nil {
		return nil, errors.New("event handler is nil")
	}
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	// One topic per subscription. The bus matches handlers by code pointer,
	// so closures from one literal cannot share a topic.
	topic := eventTopic + ":" + uuid.NewString()
	if err := e.bus.Subscribe(topic, fn); err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	e.subMu.Lock()
	e.subs[topic] = struct{}{}
	e.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, topic)
			e.subMu.Unlock()
			e.bus.Unsubscribe(topic, fn)
		})
	}, nil
}

func (e *Engine) publish(events []types.Event) {
	if len(events) == 0 {
		return
	}
	e.subMu.Lock()
	topics := make([]string, 0, len(e.subs))
	for topic := range e.subs {
		topics = append(topics, topic)
	}
	e.subMu.Unlock()

	for _, ev := range events {
		for _, topic := range topics {
			e.bus.Publish(topic, ev)
		}
	}
}

// Contract returns the info of a deployed contract.
func (e *Engine) Contract(addr core.Address) (*types.ContractInfo, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.ledger.Contract(addr)
}

// Contracts lists every deployed contract.
func (e *Engine) Contracts() ([]types.ContractInfo, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.ledger.Contracts()
}

// EntryPoints returns the exported entry points of the contract at addr.
func (e *Engine) EntryPoints(ctx context.Context, addr core.Address) ([]string, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	info, err := e.ledger.Contract(addr)
	if err != nil {
		return nil, err
	}
	prog, err := e.resolve(ctx, info)
	if err != nil {
		return nil, err
	}
	return prog.EntryPoints(), nil
}

// Remove deletes a contract's info, storage and events. Its balance stays with
// the address.
func (e *Engine) Remove(addr core.Address) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	lock := e.lockFor(addr)
	lock.Lock()
	defer lock.Unlock()

	if err := e.ledger.RemoveContract(addr); err != nil {
		return err
	}
	e.logger.Info("contract removed", zap.Stringer("contract", addr))
	return nil
}

// Close waits for running invocations and releases the runtime and the state
// store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return multierr.Combine(
		e.runtime.Close(context.Background()),
		e.kv.Close(),
	)
}
