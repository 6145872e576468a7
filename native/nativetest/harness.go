// Package nativetest runs native programs against an in-memory ledger without
// an engine. Each Call commits on success and discards on error, like a real
// invocation.
package nativetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/host"
	"github.com/govm-net/abihost/native"
	"github.com/govm-net/abihost/security"
	"github.com/govm-net/abihost/state"
	_ "github.com/govm-net/abihost/state/cmtdb"
	"github.com/govm-net/abihost/types"
)

// Harness holds one deployed instance of a program.
type Harness struct {
	t        *testing.T
	program  *native.Program
	Ledger   *state.Ledger
	Contract core.Address
	Height   uint64
	Limits   security.Limits
}

// New returns a harness over a fresh memdb ledger.
func New(t *testing.T, p *native.Program) *Harness {
	t.Helper()
	kv, err := state.Open(state.MemDBBackend, state.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	return &Harness{
		t:        t,
		program:  p,
		Ledger:   state.NewLedger(kv),
		Contract: core.ContractAddress(core.Address{0xde}, []byte(p.Name), 0),
		Limits:   security.DefaultLimits(),
	}
}

// Call invokes entry as caller at the harness height.
func (h *Harness) Call(caller core.Address, entry string, args ...types.Arg) (uint64, error) {
	h.t.Helper()

	overlay := h.Ledger.Begin()
	env := host.NewEnv(context.Background(), host.Invocation{
		ID:       h.t.Name(),
		Caller:   caller,
		Contract: h.Contract,
		Height:   h.Height,
	}, overlay, security.NewMeter(h.Limits), nil)

	inst, err := h.program.Instantiate(env, h.Limits.MemoryPages, nil)
	require.NoError(h.t, err)

	lowered, err := types.Lower(context.Background(), inst, args)
	require.NoError(h.t, err)

	ret, err := inst.Call(context.Background(), entry, lowered)
	if err != nil {
		overlay.Discard()
		return 0, err
	}
	_, err = overlay.Commit()
	require.NoError(h.t, err)
	return ret, nil
}

// MustCall is Call that fails the test on error.
func (h *Harness) MustCall(caller core.Address, entry string, args ...types.Arg) uint64 {
	h.t.Helper()
	ret, err := h.Call(caller, entry, args...)
	require.NoError(h.t, err)
	return ret
}

// Events returns the committed events of the instance.
func (h *Harness) Events() []types.Event {
	h.t.Helper()
	events, err := h.Ledger.Events(h.Contract)
	require.NoError(h.t, err)
	return events
}

// Balance returns a committed balance.
func (h *Harness) Balance(addr core.Address) uint64 {
	h.t.Helper()
	bal, err := h.Ledger.Balance(addr)
	require.NoError(h.t, err)
	return bal
}
