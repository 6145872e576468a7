package state

import (
	"github.com/govm-net/abihost/core"
)

// Store is one contract's view of its storage namespace. Keys are relative to
// the namespace, so a Store cannot reach another contract's cells.
type Store struct {
	contract core.Address
	overlay  *Overlay
}

// NewStore scopes o to contract.
func NewStore(o *Overlay, contract core.Address) *Store {
	return &Store{contract: contract, overlay: o}
}

func (s *Store) Contract() core.Address {
	return s.contract
}

func (s *Store) Read(key []byte) ([]byte, bool, error) {
	return s.overlay.Read(StorageKey(s.contract, key))
}

func (s *Store) Write(key, value []byte) {
	s.overlay.Write(StorageKey(s.contract, key), value)
}

func (s *Store) Delete(key []byte) {
	s.overlay.Delete(StorageKey(s.contract, key))
}
