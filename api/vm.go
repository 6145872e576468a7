// Package api provides the interface between a host chain and the contract
// runtime. It is not used by contracts themselves.
package api

import (
	"context"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/types"
)

// VM deploys contract instances and dispatches invocations against them
type VM interface {
	// Deploy creates a new instance of a native program or WASM module
	Deploy(ctx context.Context, req types.DeployRequest) (core.Address, error)

	// Invoke runs an entry point and commits its effects when it returns normally
	Invoke(ctx context.Context, call types.Call) (*types.Result, error)

	// Query runs an entry point and always discards its effects
	Query(ctx context.Context, call types.Call) (*types.Result, error)

	AdvanceBlock(height uint64) error
	BlockHeight() (uint64, error)

	// Fund credits an address outside of any invocation
	Fund(addr core.Address, amount uint64) error
	Balance(addr core.Address) (uint64, error)

	Events(contract core.Address) ([]types.Event, error)

	// Subscribe registers fn for every event committed after the call
	Subscribe(fn func(types.Event)) (unsubscribe func(), err error)

	Contract(addr core.Address) (*types.ContractInfo, error)
	Contracts() ([]types.ContractInfo, error)
	EntryPoints(ctx context.Context, addr core.Address) ([]string, error)
	Remove(addr core.Address) error

	Close() error
}

// DefaultContractAddressGenerator derives the address of the nonce-th contract
// a creator deploys from the given code identity.
func DefaultContractAddressGenerator(creator core.Address, identity []byte, nonce uint64) core.Address {
	return core.ContractAddress(creator, identity, nonce)
}
