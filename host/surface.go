// Package host implements the functions a running contract may call: caller
// and block information, balance transfers, events and namespaced storage.
package host

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/security"
	"github.com/govm-net/abihost/state"
	"github.com/govm-net/abihost/types"
)

// Surface is the host-function surface seen by one invocation.
//
// A non-nil error from any method is fatal and reverts the invocation. Business
// outcomes are reported through return values: Transfer reports false for an
// insufficient balance or a malformed target and never fails for those reasons.
type Surface interface {
	Caller() core.Address
	ContractAddress() core.Address
	BlockHeight() uint64
	Balance(addr core.Address) (uint64, error)
	Transfer(to core.Address, amount uint64) (bool, error)
	EmitEvent(payload []byte) error
	StorageRead(key []byte) ([]byte, bool, error)
	StorageWrite(key, value []byte) error
	StorageDelete(key []byte) error
}

// Invocation identifies the call an Env serves.
type Invocation struct {
	ID       string
	Caller   core.Address
	Contract core.Address
	Height   uint64
}

// Env is the Surface of one invocation. It writes only to its overlay and
// charges every storage and event operation to its meter.
type Env struct {
	ctx     context.Context
	inv     Invocation
	overlay *state.Overlay
	store   *state.Store
	meter   *security.Meter
	logger  *zap.Logger
}

var _ Surface = (*Env)(nil)

// NewEnv binds an invocation to its overlay and meter. ctx cancellation makes
// every later host call fail with core.ErrAborted.
func NewEnv(ctx context.Context, inv Invocation, overlay *state.Overlay, meter *security.Meter, logger *zap.Logger) *Env {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Env{
		ctx:     ctx,
		inv:     inv,
		overlay: overlay,
		store:   state.NewStore(overlay, inv.Contract),
		meter:   meter,
		logger:  logger.With(zap.String("invocation", inv.ID), zap.Stringer("contract", inv.Contract)),
	}
}

// Meter returns the invocation's resource meter.
func (e *Env) Meter() *security.Meter {
	return e.meter
}

// Logger returns a logger annotated with the invocation.
func (e *Env) Logger() *zap.Logger {
	return e.logger
}

func (e *Env) Caller() core.Address {
	return e.inv.Caller
}

func (e *Env) ContractAddress() core.Address {
	return e.inv.Contract
}

func (e *Env) BlockHeight() uint64 {
	return e.inv.Height
}

func (e *Env) Balance(addr core.Address) (uint64, error) {
	if err := e.checkAborted(); err != nil {
		return 0, err
	}
	return e.overlay.Balance(addr)
}

func (e *Env) Transfer(to core.Address, amount uint64) (bool, error) {
	if err := e.checkAborted(); err != nil {
		return false, err
	}
	ok, err := e.overlay.Transfer(e.inv.Contract, to, amount)
	if err != nil {
		return false, err
	}
	if !ok {
		e.logger.Debug("transfer rejected", zap.Stringer("to", to), zap.Uint64("amount", amount))
	}
	return ok, nil
}

func (e *Env) EmitEvent(payload []byte) error {
	if err := e.checkAborted(); err != nil {
		return err
	}
	if err := e.meter.Event(len(payload)); err != nil {
		return err
	}
	e.overlay.AddEvent(types.Event{
		Contract:     e.inv.Contract,
		BlockHeight:  e.inv.Height,
		InvocationID: e.inv.ID,
		Payload:      payload,
	})
	return nil
}

func (e *Env) StorageRead(key []byte) ([]byte, bool, error) {
	if err := e.checkAborted(); err != nil {
		return nil, false, err
	}
	if err := e.meter.StorageOp(len(key), 0); err != nil {
		return nil, false, err
	}
	return e.store.Read(key)
}

func (e *Env) StorageWrite(key, value []byte) error {
	if err := e.checkAborted(); err != nil {
		return err
	}
	if err := e.meter.StorageOp(len(key), len(value)); err != nil {
		return err
	}
	e.store.Write(key, value)
	return nil
}

func (e *Env) StorageDelete(key []byte) error {
	if err := e.checkAborted(); err != nil {
		return err
	}
	if err := e.meter.StorageOp(len(key), 0); err != nil {
		return err
	}
	e.store.Delete(key)
	return nil
}

func (e *Env) checkAborted() error {
	if err := e.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrAborted, err)
	}
	return nil
}
