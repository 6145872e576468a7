// Package types contains the request, result and event types exchanged between
// the host engine, its programs and its callers.
package types

// HostFunction identifies a function a running contract may import from the
// host. The names are the exports of the wasm "env" module and must not change.
type HostFunction string

const (
	// HostGetCaller writes the invoking account's address to guest memory.
	HostGetCaller HostFunction = "get_caller"
	// HostGetContractAddress writes the executing contract's address.
	HostGetContractAddress HostFunction = "get_contract_address"
	// HostGetBlockHeight returns the height of the executing block.
	HostGetBlockHeight HostFunction = "get_block_height"
	// HostGetBalance returns the native balance of an address.
	HostGetBalance HostFunction = "get_balance"
	// HostTransfer moves native units from the contract to a recipient.
	HostTransfer HostFunction = "transfer"
	// HostEmitEvent appends a payload to the invocation's event log.
	HostEmitEvent HostFunction = "emit_event"
	// HostStorageRead reads a cell from the contract's namespace.
	HostStorageRead HostFunction = "storage_read"
	// HostStorageWrite writes a cell in the contract's namespace.
	HostStorageWrite HostFunction = "storage_write"
	// HostStorageDelete removes a cell from the contract's namespace.
	HostStorageDelete HostFunction = "storage_delete"
)

// HostModule is the import module name wasm contracts link against.
const HostModule = "env"

// AllHostFunctions lists every host function in a stable order.
var AllHostFunctions = []HostFunction{
	HostGetCaller,
	HostGetContractAddress,
	HostGetBlockHeight,
	HostGetBalance,
	HostTransfer,
	HostEmitEvent,
	HostStorageRead,
	HostStorageWrite,
	HostStorageDelete,
}
