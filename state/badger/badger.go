// Package badger provides a state backend on BadgerDB v3.
package badger

import (
	"errors"
	"fmt"
	"path/filepath"

	badgerdb "github.com/dgraph-io/badger/v3"

	"github.com/govm-net/abihost/state"
)

func init() {
	state.MustRegister(state.BadgerBackend, func(opts state.Options) (state.KVStore, error) {
		return Open(opts)
	})
}

// Store is a state.KVStore backed by BadgerDB.
type Store struct {
	db *badgerdb.DB
}

var _ state.KVStore = (*Store)(nil)

// Open opens or creates a badger database under opts.Dir/opts.Name.
func Open(opts state.Options) (*Store, error) {
	var bopts badgerdb.Options
	if opts.InMemory {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badgerdb.DefaultOptions(filepath.Join(opts.Dir, opts.Name))
	}
	db, err := badgerdb.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	return value, err
}

func (s *Store) Has(key []byte) (bool, error) {
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(item.KeyCopy(nil), value) {
				return nil
			}
		}
		return nil
	})
}

func (s *Store) Apply(batch *state.Batch) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		for _, op := range batch.Ops() {
			var err error
			if op.Delete {
				err = txn.Delete(op.Key)
			} else {
				err = txn.Set(op.Key, op.Value)
			}
			if err != nil {
				return fmt.Errorf("failed to apply batch op: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
