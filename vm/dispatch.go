package vm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/host"
	"github.com/govm-net/abihost/security"
	"github.com/govm-net/abihost/state"
	"github.com/govm-net/abihost/types"
)

// InitEntryPoint is run by Deploy when constructor arguments are given.
const InitEntryPoint = "init"

// Invoke runs an entry point. Its storage, balance and event effects are
// committed together when the program returns normally and discarded on any
// fault. A reverted invocation returns its Result together with the error.
func (e *Engine) Invoke(ctx context.Context, call types.Call) (*types.Result, error) {
	return e.dispatch(ctx, call, true)
}

// Query runs an entry point and discards its effects. The result reports the
// events the call would have emitted, without sequence numbers.
func (e *Engine) Query(ctx context.Context, call types.Call) (*types.Result, error) {
	return e.dispatch(ctx, call, false)
}

func (e *Engine) dispatch(ctx context.Context, call types.Call, commit bool) (*types.Result, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := e.dispatchLocked(ctx, call, commit)
	if err == nil && commit {
		e.publish(res.Events)
	}
	return res, err
}

func (e *Engine) dispatchLocked(ctx context.Context, call types.Call, commit bool) (*types.Result, error) {
	res := &types.Result{
		ID:         uuid.NewString(),
		Contract:   call.Contract,
		EntryPoint: call.EntryPoint,
		Phase:      types.PhaseIdle,
		ReadOnly:   !commit,
	}

	// Unknown addresses are refused before a lock entry exists for them.
	if _, err := e.ledger.Contract(call.Contract); err != nil {
		return e.reject(res, err)
	}

	lock := e.lockFor(call.Contract)
	lock.Lock()
	defer lock.Unlock()
	defer e.idle(res)

	e.transition(res, types.PhaseDispatching)
	if commit && e.paused.Load() {
		return e.revert(res, core.ErrPaused)
	}
	// reloaded under the lock, a Remove may have won the race
	info, err := e.ledger.Contract(call.Contract)
	if err != nil {
		return e.revert(res, err)
	}
	prog, err := e.resolve(ctx, info)
	if err != nil {
		return e.revert(res, err)
	}
	if err := checkEntry(prog, call); err != nil {
		return e.revert(res, err)
	}
	if res.BlockHeight, err = e.ledger.Height(); err != nil {
		return e.revert(res, err)
	}
	if commit {
		if err := e.blocks.Call(res.BlockHeight); err != nil {
			return e.revert(res, err)
		}
	}

	done := e.metrics.Begin(prog.Kind())
	overlay := e.ledger.Begin()
	ret, err := e.execute(ctx, res, call, prog, overlay)
	if err != nil {
		overlay.Discard()
		done(call.EntryPoint, types.PhaseReverted, res.StorageOps, 0)
		return e.revert(res, err)
	}
	res.Value = ret

	if !commit {
		res.Events = overlay.Events()
		overlay.Discard()
		e.transition(res, types.PhaseCommitted)
		done(call.EntryPoint, types.PhaseCommitted, res.StorageOps, 0)
		return res, nil
	}

	events, err := overlay.Commit()
	if err != nil {
		done(call.EntryPoint, types.PhaseReverted, res.StorageOps, 0)
		return e.revert(res, fmt.Errorf("failed to commit: %w", err))
	}
	res.Events = events
	e.transition(res, types.PhaseCommitted)
	done(call.EntryPoint, types.PhaseCommitted, res.StorageOps, len(events))
	e.logger.Debug("invocation committed",
		zap.String("invocation", res.ID),
		zap.Stringer("contract", call.Contract),
		zap.String("entry_point", call.EntryPoint),
		zap.Uint64("value", ret),
		zap.Int("events", len(events)))
	return res, nil
}

// checkEntry resolves the entry point and its arity.
func checkEntry(prog program, call types.Call) error {
	arity, ok := prog.Arity(call.EntryPoint)
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrUnknownEntryPoint, call.EntryPoint)
	}
	if len(call.Args) != arity {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", core.ErrArityMismatch, call.EntryPoint, arity, len(call.Args))
	}
	return nil
}

// execute runs one entry point against overlay. The caller commits or
// discards overlay.
func (e *Engine) execute(ctx context.Context, res *types.Result, call types.Call, prog program, overlay *state.Overlay) (uint64, error) {
	e.transition(res, types.PhaseExecuting)

	ctx, cancel := context.WithTimeout(ctx, e.config.Limits.MaxExecutionTime)
	defer cancel()

	meter := security.NewMeter(e.config.Limits)
	defer func() { res.StorageOps = meter.StorageOps() }()

	env := host.NewEnv(ctx, host.Invocation{
		ID:       res.ID,
		Caller:   call.Caller,
		Contract: call.Contract,
		Height:   res.BlockHeight,
	}, overlay, meter, e.logger)

	inst, err := prog.instantiate(ctx, env)
	if err != nil {
		return 0, err
	}
	defer inst.Close(context.Background())

	args, err := types.Lower(ctx, inst, call.Args)
	if err != nil {
		return 0, err
	}
	ret, err := inst.Call(ctx, call.EntryPoint, args)
	if err != nil {
		return 0, err
	}
	// A program that outlives its deadline without calling the host is
	// still aborted.
	if cerr := ctx.Err(); cerr != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrAborted, cerr)
	}
	return ret, nil
}

func (e *Engine) transition(res *types.Result, phase types.Phase) {
	res.Phase = phase
	e.phases.Store(res.Contract, phase)
	e.metrics.Phase(phase)
	e.logger.Debug("phase transition",
		zap.String("invocation", res.ID),
		zap.Stringer("contract", res.Contract),
		zap.String("phase", string(phase)))
}

// idle returns the instance to Idle. res keeps its final phase.
func (e *Engine) idle(res *types.Result) {
	e.phases.Delete(res.Contract)
	e.metrics.Phase(types.PhaseIdle)
	e.logger.Debug("phase transition",
		zap.String("invocation", res.ID),
		zap.Stringer("contract", res.Contract),
		zap.String("phase", string(types.PhaseIdle)))
}

func (e *Engine) revert(res *types.Result, err error) (*types.Result, error) {
	dispatching := res.Phase == types.PhaseDispatching
	e.transition(res, types.PhaseReverted)
	return e.fail(res, err, dispatching)
}

// reject refuses a call for an address with no instance. The phase map is
// left alone.
func (e *Engine) reject(res *types.Result, err error) (*types.Result, error) {
	res.Phase = types.PhaseReverted
	e.metrics.Phase(types.PhaseReverted)
	return e.fail(res, err, true)
}

func (e *Engine) fail(res *types.Result, err error, rejected bool) (*types.Result, error) {
	res.Error = err.Error()
	fields := []zap.Field{
		zap.String("invocation", res.ID),
		zap.Stringer("contract", res.Contract),
		zap.String("entry_point", res.EntryPoint),
		zap.Error(err),
	}
	if rejected {
		e.logger.Debug("invocation rejected", fields...)
	} else {
		e.logger.Info("invocation reverted", fields...)
	}
	return res, fmt.Errorf("invocation %s reverted: %w", res.ID, err)
}
