// Package native runs contracts compiled into the host binary through the
// same ABI as wasm contracts: named entry points over scalar arguments, a
// bounds-checked linear memory and the host surface.
package native

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/host"
	"github.com/govm-net/abihost/memory"
)

// Func is the body of an entry point. args are the lowered scalar arguments;
// byte arguments arrive as pointers into c.Memory.
type Func func(c *Context, args []uint64) (uint64, error)

// Entry is one exported entry point.
type Entry struct {
	Arity int
	Fn    Func
}

// Program is a native contract: a name and its exported entry points.
type Program struct {
	Name    string
	Entries map[string]Entry
}

// EntryPoints returns the exported names in sorted order.
func (p *Program) EntryPoints() []string {
	names := make([]string, 0, len(p.Entries))
	for name := range p.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Arity returns the argument count of an entry point.
func (p *Program) Arity(entry string) (int, bool) {
	e, ok := p.Entries[entry]
	return e.Arity, ok
}

// Context is what an entry point runs against.
type Context struct {
	host.Surface
	Memory memory.Accessor
	Logger *zap.Logger
}

// Instance is one invocation's execution of a Program.
type Instance struct {
	program *Program
	ctx     *Context
	alloc   *memory.Allocator
}

// Instantiate creates fresh linear memory of the given size for one invocation.
func (p *Program) Instantiate(s host.Surface, pages uint32, logger *zap.Logger) (*Instance, error) {
	mem, err := memory.NewLinear(pages)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instance{
		program: p,
		ctx:     &Context{Surface: s, Memory: mem, Logger: logger.With(zap.String("program", p.Name))},
		alloc:   memory.NewAllocator(mem),
	}, nil
}

// Stage copies data into the instance memory and returns its pointer.
func (i *Instance) Stage(_ context.Context, data []byte) (uint32, error) {
	return i.alloc.Stage(data)
}

// Call runs an entry point. A panic inside the program is converted into a
// core.ErrTrap error.
func (i *Instance) Call(ctx context.Context, entry string, args []uint64) (ret uint64, err error) {
	e, ok := i.program.Entries[entry]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", core.ErrUnknownEntryPoint, i.program.Name, entry)
	}
	if len(args) != e.Arity {
		return 0, fmt.Errorf("%w: %s expects %d, got %d", core.ErrArityMismatch, entry, e.Arity, len(args))
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrAborted, err)
	}

	defer func() {
		if r := recover(); r != nil {
			i.ctx.Logger.Error("native program panicked", zap.String("entry", entry), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			ret, err = 0, fmt.Errorf("%w: %v", core.ErrTrap, r)
		}
	}()
	return e.Fn(i.ctx, args)
}

// Close releases the instance. Native instances hold no external resources.
func (i *Instance) Close(context.Context) error {
	return nil
}

var (
	programsMu sync.RWMutex
	programs   = make(map[string]*Program)
)

// Register makes a program deployable by name.
func Register(p *Program) error {
	programsMu.Lock()
	defer programsMu.Unlock()

	if _, exists := programs[p.Name]; exists {
		return fmt.Errorf("program %s already registered", p.Name)
	}
	programs[p.Name] = p
	return nil
}

// MustRegister is Register for package init functions.
func MustRegister(p *Program) {
	if err := Register(p); err != nil {
		panic(err)
	}
}

// Lookup returns a registered program.
func Lookup(name string) (*Program, error) {
	programsMu.RLock()
	defer programsMu.RUnlock()

	p, ok := programs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownProgram, name)
	}
	return p, nil
}

// Registered returns the names of every registered program.
func Registered() []string {
	programsMu.RLock()
	defer programsMu.RUnlock()

	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
