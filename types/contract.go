package types

import "github.com/govm-net/abihost/core"

// ProgramKind distinguishes how a contract's code is executed.
type ProgramKind string

const (
	// KindNative is a program compiled into the host binary.
	KindNative ProgramKind = "native"
	// KindWasm is a WebAssembly module executed by wazero.
	KindWasm ProgramKind = "wasm"
)

// ContractInfo describes a deployed contract instance.
type ContractInfo struct {
	Address      core.Address `json:"address"`
	Creator      core.Address `json:"creator"`
	Kind         ProgramKind  `json:"kind"`
	Program      string       `json:"program,omitempty"`
	CodeHash     core.Hash    `json:"code_hash"`
	DeployHeight uint64       `json:"deploy_height"`
}

// DeployRequest deploys a native program by name or a wasm module by code.
type DeployRequest struct {
	Creator core.Address
	Kind    ProgramKind
	Program string
	Code    []byte
	// InitArgs, when non-nil, runs the "init" entry point as part of the deploy.
	InitArgs []Arg
}

// Event is a payload a contract emitted during a committed invocation.
type Event struct {
	Contract     core.Address `json:"contract"`
	BlockHeight  uint64       `json:"block_height"`
	InvocationID string       `json:"invocation_id"`
	Sequence     uint64       `json:"sequence"`
	Payload      []byte       `json:"payload"`
}
