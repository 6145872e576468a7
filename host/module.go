package host

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/memory"
	"github.com/govm-net/abihost/types"
)

type envKey struct{}

// WithSurface attaches the surface of the current invocation to ctx. The env
// module is shared by every instance of a runtime and resolves its surface
// from the call context.
func WithSurface(ctx context.Context, s Surface) context.Context {
	return context.WithValue(ctx, envKey{}, s)
}

// SurfaceFrom returns the surface attached by WithSurface.
func SurfaceFrom(ctx context.Context) (Surface, bool) {
	s, ok := ctx.Value(envKey{}).(Surface)
	return s, ok
}

// fail aborts the running wasm call. wazero recovers the panic and returns err
// from the exported function call.
func fail(err error) {
	panic(err)
}

func surface(ctx context.Context) Surface {
	s, ok := SurfaceFrom(ctx)
	if !ok {
		fail(fmt.Errorf("host function called outside of an invocation"))
	}
	return s
}

func mem(m api.Module) memory.Accessor {
	return memory.NewWazero(m.Memory())
}

func must(err error) {
	if err != nil {
		fail(err)
	}
}

// NewModule defines the "env" host module on r. It must be instantiated once
// per runtime before any contract module.
func NewModule(r wazero.Runtime) wazero.HostModuleBuilder {
	b := r.NewHostModuleBuilder(types.HostModule)

	b.NewFunctionBuilder().
		WithParameterNames("out_ptr").
		WithFunc(func(ctx context.Context, m api.Module, outPtr uint32) {
			must(memory.WriteAddress(mem(m), outPtr, surface(ctx).Caller()))
		}).
		Export(string(types.HostGetCaller))

	b.NewFunctionBuilder().
		WithParameterNames("out_ptr").
		WithFunc(func(ctx context.Context, m api.Module, outPtr uint32) {
			must(memory.WriteAddress(mem(m), outPtr, surface(ctx).ContractAddress()))
		}).
		Export(string(types.HostGetContractAddress))

	b.NewFunctionBuilder().
		WithResultNames("height").
		WithFunc(func(ctx context.Context) uint64 {
			return surface(ctx).BlockHeight()
		}).
		Export(string(types.HostGetBlockHeight))

	b.NewFunctionBuilder().
		WithParameterNames("addr_ptr").
		WithResultNames("balance").
		WithFunc(func(ctx context.Context, m api.Module, addrPtr uint32) uint64 {
			addr, err := memory.ReadAddress(mem(m), addrPtr)
			must(err)
			bal, err := surface(ctx).Balance(addr)
			must(err)
			return bal
		}).
		Export(string(types.HostGetBalance))

	b.NewFunctionBuilder().
		WithParameterNames("to_ptr", "amount").
		WithResultNames("ok").
		WithFunc(func(ctx context.Context, m api.Module, toPtr uint32, amount uint64) uint32 {
			to, err := memory.ReadAddress(mem(m), toPtr)
			must(err)
			ok, err := surface(ctx).Transfer(to, amount)
			must(err)
			return uint32(core.Status(ok))
		}).
		Export(string(types.HostTransfer))

	b.NewFunctionBuilder().
		WithParameterNames("ptr", "len").
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			payload, err := mem(m).Read(ptr, length)
			must(err)
			must(surface(ctx).EmitEvent(payload))
		}).
		Export(string(types.HostEmitEvent))

	b.NewFunctionBuilder().
		WithParameterNames("key_ptr", "key_len", "out_ptr", "out_cap").
		WithResultNames("len").
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, keyLen, outPtr, outCap uint32) int32 {
			acc := mem(m)
			key, err := acc.Read(keyPtr, keyLen)
			must(err)
			value, ok, err := surface(ctx).StorageRead(key)
			must(err)
			if !ok {
				return -1
			}
			if uint64(len(value)) <= uint64(outCap) {
				must(acc.Write(outPtr, value))
			}
			return int32(len(value))
		}).
		Export(string(types.HostStorageRead))

	b.NewFunctionBuilder().
		WithParameterNames("key_ptr", "key_len", "val_ptr", "val_len").
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, keyLen, valPtr, valLen uint32) {
			acc := mem(m)
			key, err := acc.Read(keyPtr, keyLen)
			must(err)
			value, err := acc.Read(valPtr, valLen)
			must(err)
			must(surface(ctx).StorageWrite(key, value))
		}).
		Export(string(types.HostStorageWrite))

	b.NewFunctionBuilder().
		WithParameterNames("key_ptr", "key_len").
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, keyLen uint32) {
			key, err := mem(m).Read(keyPtr, keyLen)
			must(err)
			must(surface(ctx).StorageDelete(key))
		}).
		Export(string(types.HostStorageDelete))

	return b
}
