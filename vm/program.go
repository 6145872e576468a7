package vm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/govm-net/abihost/host"
	"github.com/govm-net/abihost/native"
	"github.com/govm-net/abihost/types"
	"github.com/govm-net/abihost/wasm"
)

// program is a deployed program independent of how it executes.
type program interface {
	Kind() types.ProgramKind
	EntryPoints() []string
	Arity(entry string) (int, bool)
	instantiate(ctx context.Context, s host.Surface) (instance, error)
}

// instance is one invocation's running copy of a program.
type instance interface {
	Stage(ctx context.Context, data []byte) (uint32, error)
	Call(ctx context.Context, entry string, args []uint64) (uint64, error)
	Close(ctx context.Context) error
}

type nativeProgram struct {
	*native.Program
	pages  uint32
	logger *zap.Logger
}

func (p nativeProgram) Kind() types.ProgramKind {
	return types.KindNative
}

func (p nativeProgram) instantiate(_ context.Context, s host.Surface) (instance, error) {
	inst, err := p.Instantiate(s, p.pages, p.logger)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

type wasmProgram struct {
	*wasm.Program
}

func (p wasmProgram) Kind() types.ProgramKind {
	return types.KindWasm
}

func (p wasmProgram) instantiate(ctx context.Context, s host.Surface) (instance, error) {
	inst, err := p.Instantiate(ctx, s)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (e *Engine) nativeProgram(p *native.Program) program {
	return nativeProgram{Program: p, pages: e.config.Limits.MemoryPages, logger: e.logger.Named("native")}
}

// resolve finds the executable program behind a contract.
func (e *Engine) resolve(ctx context.Context, info *types.ContractInfo) (program, error) {
	switch info.Kind {
	case types.KindNative:
		p, err := native.Lookup(info.Program)
		if err != nil {
			return nil, err
		}
		return e.nativeProgram(p), nil
	case types.KindWasm:
		if p, ok := e.runtime.Cached(info.CodeHash); ok {
			return wasmProgram{p}, nil
		}
		if e.code == nil {
			return nil, errors.New("no code repository configured")
		}
		cc, err := e.code.GetCode(info.CodeHash)
		if err != nil {
			return nil, fmt.Errorf("failed to load code of %s: %w", info.Address, err)
		}
		p, err := e.runtime.Compile(ctx, cc.Code)
		if err != nil {
			return nil, err
		}
		return wasmProgram{p}, nil
	}
	return nil, fmt.Errorf("unknown program kind %q", info.Kind)
}
