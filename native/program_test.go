package native

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/host"
	"github.com/govm-net/abihost/memory"
	"github.com/govm-net/abihost/security"
	"github.com/govm-net/abihost/state"
	_ "github.com/govm-net/abihost/state/cmtdb"
)

var testProgram = &Program{
	Name: "echo",
	Entries: map[string]Entry{
		"sum": {Arity: 2, Fn: func(_ *Context, args []uint64) (uint64, error) {
			return args[0] + args[1], nil
		}},
		"owner_byte": {Arity: 1, Fn: func(c *Context, args []uint64) (uint64, error) {
			addr, err := c.ReadAddressArg(args[0])
			if err != nil {
				return 0, err
			}
			return uint64(addr[0]), nil
		}},
		"cells": {Arity: 0, Fn: func(c *Context, _ []uint64) (uint64, error) {
			if err := c.StoreUint64("n", 41); err != nil {
				return 0, err
			}
			if err := c.StoreBool("flag", true); err != nil {
				return 0, err
			}
			n, err := c.LoadUint64("n")
			if err != nil {
				return 0, err
			}
			flag, err := c.LoadBool("flag")
			if err != nil || !flag {
				return 0, err
			}
			return n + 1, nil
		}},
		"boom": {Arity: 0, Fn: func(*Context, []uint64) (uint64, error) {
			var m map[string]int
			m["x"] = 1
			return 0, nil
		}},
	},
}

func newInstance(t *testing.T) *Instance {
	t.Helper()
	kv, err := state.Open(state.MemDBBackend, state.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	env := host.NewEnv(context.Background(), host.Invocation{Contract: core.Address{1}}, state.NewLedger(kv).Begin(), security.NewMeter(security.DefaultLimits()), nil)
	inst, err := testProgram.Instantiate(env, 1, nil)
	require.NoError(t, err)
	return inst
}

func TestInstanceCall(t *testing.T) {
	inst := newInstance(t)
	ctx := context.Background()

	v, err := inst.Call(ctx, "sum", []uint64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)

	_, err = inst.Call(ctx, "sum", []uint64{2})
	assert.ErrorIs(t, err, core.ErrArityMismatch)

	_, err = inst.Call(ctx, "missing", nil)
	assert.ErrorIs(t, err, core.ErrUnknownEntryPoint)

	v, err = inst.Call(ctx, "cells", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)
}

func TestInstanceStagedPointer(t *testing.T) {
	inst := newInstance(t)
	ctx := context.Background()

	ptr, err := inst.Stage(ctx, core.Address{0x7f}.Bytes())
	require.NoError(t, err)
	v, err := inst.Call(ctx, "owner_byte", []uint64{uint64(ptr)})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7f), v)

	_, err = inst.Call(ctx, "owner_byte", []uint64{memory.PageSize - 4})
	assert.ErrorIs(t, err, core.ErrOutOfBoundsAccess)
	_, err = inst.Call(ctx, "owner_byte", []uint64{1 << 40})
	assert.ErrorIs(t, err, core.ErrOutOfBoundsAccess)
}

func TestInstancePanicIsTrap(t *testing.T) {
	inst := newInstance(t)
	_, err := inst.Call(context.Background(), "boom", nil)
	assert.ErrorIs(t, err, core.ErrTrap)
	assert.True(t, core.IsFatal(err))
}

func TestInstanceCancelled(t *testing.T) {
	inst := newInstance(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := inst.Call(ctx, "sum", []uint64{1, 1})
	assert.ErrorIs(t, err, core.ErrAborted)
}

func TestRegistry(t *testing.T) {
	p := &Program{Name: "registry-test", Entries: map[string]Entry{"b": {}, "a": {}}}
	require.NoError(t, Register(p))
	assert.Error(t, Register(p))

	got, err := Lookup("registry-test")
	require.NoError(t, err)
	assert.Same(t, p, got)
	assert.Equal(t, []string{"a", "b"}, got.EntryPoints())
	assert.Contains(t, Registered(), "registry-test")

	_, err = Lookup("nope")
	assert.ErrorIs(t, err, core.ErrUnknownProgram)
}
