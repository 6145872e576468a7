package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/host"
	"github.com/govm-net/abihost/memory"
)

// Instance is one invocation's module instance.
type Instance struct {
	program *Program
	module  api.Module
	surface host.Surface
}

// Memory returns the instance's linear memory.
func (i *Instance) Memory() memory.Accessor {
	return memory.NewWazero(i.module.Memory())
}

// Stage asks the module to allocate len(data) bytes and copies data there.
func (i *Instance) Stage(ctx context.Context, data []byte) (uint32, error) {
	alloc := i.module.ExportedFunction(AllocateExport)
	if alloc == nil {
		return 0, fmt.Errorf("%w: module does not export %s", core.ErrTrap, AllocateExport)
	}
	res, err := alloc.Call(host.WithSurface(ctx, i.surface), uint64(len(data)))
	if err != nil {
		return 0, classify(fmt.Errorf("failed to allocate memory: %w", err))
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("%w: %s returned no pointer", core.ErrTrap, AllocateExport)
	}
	ptr := api.DecodeU32(res[0])
	if err := i.Memory().Write(ptr, data); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Call runs an exported entry point with scalar arguments.
func (i *Instance) Call(ctx context.Context, entry string, args []uint64) (uint64, error) {
	def, ok := i.program.entries[entry]
	if !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrUnknownEntryPoint, entry)
	}
	if len(args) != len(def.ParamTypes()) {
		return 0, fmt.Errorf("%w: %s expects %d, got %d", core.ErrArityMismatch, entry, len(def.ParamTypes()), len(args))
	}

	res, err := i.module.ExportedFunction(entry).Call(host.WithSurface(ctx, i.surface), args...)
	if err != nil {
		return 0, classify(err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	if rt := def.ResultTypes(); rt[0] == api.ValueTypeI32 || rt[0] == api.ValueTypeF32 {
		return uint64(api.DecodeU32(res[0])), nil
	}
	return res[0], nil
}

func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
