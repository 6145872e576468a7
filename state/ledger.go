package state

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"sync"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/types"
)

// Ledger owns the committed state in a KVStore. Commits, credits and height
// changes are serialized by one lock; reads go straight to the backend.
type Ledger struct {
	kv KVStore
	mu sync.Mutex
}

// NewLedger wraps kv.
func NewLedger(kv KVStore) *Ledger {
	return &Ledger{kv: kv}
}

// KV returns the underlying backend.
func (l *Ledger) KV() KVStore {
	return l.kv
}

// Begin starts a new overlay over the committed state.
func (l *Ledger) Begin() *Overlay {
	return newOverlay(l)
}

// Balance returns the committed balance of addr.
func (l *Ledger) Balance(addr core.Address) (uint64, error) {
	raw, err := l.kv.Get(BalanceKey(addr))
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return decodeUint64(raw), nil
}

// Credit adds amount to addr outside of any invocation.
func (l *Ledger) Credit(addr core.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal, err := l.Balance(addr)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(bal, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: balance of %s", core.ErrArithmeticOverflow, addr)
	}
	batch := &Batch{}
	batch.Set(BalanceKey(addr), encodeUint64(sum))
	return l.kv.Apply(batch)
}

// Height returns the committed chain height.
func (l *Ledger) Height() (uint64, error) {
	raw, err := l.kv.Get(HeightKey())
	if err != nil {
		return 0, fmt.Errorf("failed to read height: %w", err)
	}
	return decodeUint64(raw), nil
}

// SetHeight moves the chain height forward. Lower heights are rejected.
func (l *Ledger) SetHeight(height uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.Height()
	if err != nil {
		return err
	}
	if height < current {
		return fmt.Errorf("%w: %d < %d", core.ErrHeightRegression, height, current)
	}
	batch := &Batch{}
	batch.Set(HeightKey(), encodeUint64(height))
	return l.kv.Apply(batch)
}

// Contract loads the committed info of a deployed contract.
func (l *Ledger) Contract(addr core.Address) (*types.ContractInfo, error) {
	raw, ok, err := get(l.kv, ContractKey(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to read contract: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownContract, addr)
	}
	var info types.ContractInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contract info: %w", err)
	}
	return &info, nil
}

// Contracts lists every deployed contract in address order.
func (l *Ledger) Contracts() ([]types.ContractInfo, error) {
	var (
		out    []types.ContractInfo
		decErr error
	)
	err := l.kv.Iterate([]byte{prefixContract}, func(_, value []byte) bool {
		var info types.ContractInfo
		if decErr = json.Unmarshal(value, &info); decErr != nil {
			return false
		}
		out = append(out, info)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decErr != nil {
		return nil, fmt.Errorf("failed to unmarshal contract info: %w", decErr)
	}
	return out, nil
}

// Events returns the committed events of a contract in sequence order.
func (l *Ledger) Events(contract core.Address) ([]types.Event, error) {
	var (
		out    []types.Event
		decErr error
	)
	err := l.kv.Iterate(EventPrefix(contract), func(_, value []byte) bool {
		var ev types.Event
		if decErr = json.Unmarshal(value, &ev); decErr != nil {
			return false
		}
		out = append(out, ev)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decErr != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", decErr)
	}
	return out, nil
}

// RemoveContract deletes a contract's info, storage cells and events. Its
// balance is left in place.
func (l *Ledger) RemoveContract(addr core.Address) error {
	if _, err := l.Contract(addr); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	batch := &Batch{}
	for _, prefix := range [][]byte{StoragePrefix(addr), EventPrefix(addr)} {
		err := l.kv.Iterate(prefix, func(key, _ []byte) bool {
			batch.Delete(cloneBytes(key))
			return true
		})
		if err != nil {
			return err
		}
	}
	batch.Delete(EventSeqKey(addr))
	batch.Delete(ContractKey(addr))
	return l.kv.Apply(batch)
}

// PutContract buffers the info of a newly deployed contract.
func (o *Overlay) PutContract(info types.ContractInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal contract info: %w", err)
	}
	o.Write(ContractKey(info.Address), data)
	return nil
}

// HasContract reports whether addr is deployed, including deploys buffered in o.
func (o *Overlay) HasContract(addr core.Address) (bool, error) {
	_, ok, err := o.Read(ContractKey(addr))
	return ok, err
}

// NextNonce returns the creator's deploy nonce and buffers its increment.
func (o *Overlay) NextNonce(creator core.Address) (uint64, error) {
	raw, _, err := o.Read(NonceKey(creator))
	if err != nil {
		return 0, err
	}
	nonce := decodeUint64(raw)
	o.Write(NonceKey(creator), encodeUint64(nonce+1))
	return nonce, nil
}
