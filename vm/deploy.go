package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/govm-net/abihost/api"
	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/native"
	"github.com/govm-net/abihost/state"
	"github.com/govm-net/abihost/types"
)

// Deploy creates a contract instance. Native programs are referenced by name,
// WASM code is validated, compiled and stored in the code repository. The
// address is derived from the creator, the code identity and the creator's
// nonce. When InitArgs is non-nil, init runs in the same commit as the deploy
// and a failing init leaves no contract behind.
func (e *Engine) Deploy(ctx context.Context, req types.DeployRequest) (core.Address, error) {
	release, err := e.acquire()
	if err != nil {
		return core.ZeroAddress, err
	}
	defer release()

	if e.paused.Load() {
		return core.ZeroAddress, core.ErrPaused
	}
	prog, identity, info, err := e.prepare(ctx, req)
	if err != nil {
		return core.ZeroAddress, err
	}

	info, events, err := e.place(ctx, req, prog, identity, info)
	if err != nil {
		return core.ZeroAddress, err
	}

	e.metrics.Deployed(info.Kind)
	e.logger.Info("contract deployed",
		zap.Stringer("contract", info.Address),
		zap.Stringer("creator", info.Creator),
		zap.String("kind", string(info.Kind)),
		zap.Uint64("height", info.DeployHeight))
	e.publish(events)
	return info.Address, nil
}

// prepare validates a deploy request and returns the program and its identity
// bytes for address derivation.
func (e *Engine) prepare(ctx context.Context, req types.DeployRequest) (program, []byte, types.ContractInfo, error) {
	info := types.ContractInfo{Creator: req.Creator, Kind: req.Kind}

	switch req.Kind {
	case types.KindNative:
		p, err := native.Lookup(req.Program)
		if err != nil {
			return nil, nil, info, err
		}
		info.Program = p.Name
		return e.nativeProgram(p), []byte(p.Name), info, nil

	case types.KindWasm:
		if e.code == nil {
			return nil, nil, info, errors.New("wasm deployment requires a code directory")
		}
		if err := e.config.Limits.CheckCodeSize(len(req.Code)); err != nil {
			return nil, nil, info, err
		}
		p, err := e.runtime.Compile(ctx, req.Code)
		if err != nil {
			return nil, nil, info, fmt.Errorf("contract validation failed: %w", err)
		}
		hash, err := e.code.RegisterCode(req.Code, p.EntryPoints())
		if err != nil {
			return nil, nil, info, fmt.Errorf("failed to save contract code: %w", err)
		}
		info.CodeHash = hash
		return wasmProgram{p}, req.Code, info, nil
	}
	return nil, nil, info, fmt.Errorf("unknown program kind %q", req.Kind)
}

// place assigns the contract its address and installs it. Nonce read, address
// derivation and install are one step per creator.
func (e *Engine) place(ctx context.Context, req types.DeployRequest, prog program, identity []byte, info types.ContractInfo) (types.ContractInfo, []types.Event, error) {
	deployer := e.deployerLock(req.Creator)
	deployer.Lock()
	defer deployer.Unlock()

	var err error
	if info.DeployHeight, err = e.ledger.Height(); err != nil {
		return info, nil, err
	}
	if err := e.blocks.Deploy(info.DeployHeight); err != nil {
		return info, nil, err
	}

	overlay := e.ledger.Begin()
	nonce, err := overlay.NextNonce(req.Creator)
	if err != nil {
		overlay.Discard()
		return info, nil, err
	}
	info.Address = api.DefaultContractAddressGenerator(req.Creator, identity, nonce)

	events, err := e.install(ctx, overlay, prog, info, req.InitArgs)
	return info, events, err
}

// install records info in overlay, runs init when args is non-nil and
// commits. overlay is discarded on any error.
func (e *Engine) install(ctx context.Context, overlay *state.Overlay, prog program, info types.ContractInfo, args []types.Arg) ([]types.Event, error) {
	lock := e.lockFor(info.Address)
	lock.Lock()
	defer lock.Unlock()

	exists, err := overlay.HasContract(info.Address)
	if err == nil && exists {
		err = fmt.Errorf("%w: %s", core.ErrContractExists, info.Address)
	}
	if err == nil {
		err = overlay.PutContract(info)
	}
	if err == nil && args != nil {
		err = e.construct(ctx, overlay, prog, info, args)
	}
	if err != nil {
		overlay.Discard()
		return nil, err
	}

	events, err := overlay.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit deployment: %w", err)
	}
	return events, nil
}

// construct runs init as the creator inside the deploy overlay.
func (e *Engine) construct(ctx context.Context, overlay *state.Overlay, prog program, info types.ContractInfo, args []types.Arg) error {
	call := types.Call{
		Contract:   info.Address,
		Caller:     info.Creator,
		EntryPoint: InitEntryPoint,
		Args:       args,
	}
	res := &types.Result{
		ID:          uuid.NewString(),
		Contract:    info.Address,
		EntryPoint:  InitEntryPoint,
		BlockHeight: info.DeployHeight,
		Phase:       types.PhaseIdle,
	}
	defer e.idle(res)

	e.transition(res, types.PhaseDispatching)
	if err := checkEntry(prog, call); err != nil {
		_, err = e.revert(res, err)
		return err
	}

	done := e.metrics.Begin(prog.Kind())
	ret, err := e.execute(ctx, res, call, prog, overlay)
	if err == nil && ret != core.StatusSuccess {
		err = core.ErrInitFailed
	}
	if err != nil {
		done(InitEntryPoint, types.PhaseReverted, res.StorageOps, 0)
		_, err = e.revert(res, err)
		return fmt.Errorf("failed to initialize %s: %w", info.Address, err)
	}
	e.transition(res, types.PhaseCommitted)
	done(InitEntryPoint, types.PhaseCommitted, res.StorageOps, len(overlay.Events()))
	return nil
}
