// Package cmtdb provides state backends on top of cometbft-db: an in-memory
// btree (memdb) and an on-disk goleveldb database.
package cmtdb

import (
	"fmt"
	"os"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/govm-net/abihost/state"
)

func init() {
	state.MustRegister(state.MemDBBackend, func(state.Options) (state.KVStore, error) {
		return Wrap(dbm.NewMemDB()), nil
	})
	state.MustRegister(state.LevelDBBackend, func(opts state.Options) (state.KVStore, error) {
		if opts.InMemory {
			return Wrap(dbm.NewMemDB()), nil
		}
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
		db, err := dbm.NewGoLevelDB(opts.Name, opts.Dir)
		if err != nil {
			return nil, err
		}
		return Wrap(db), nil
	})
}

// Store adapts a cometbft-db database to state.KVStore.
type Store struct {
	db dbm.DB
}

var _ state.KVStore = (*Store)(nil)

// Wrap returns a KVStore backed by db.
func Wrap(db dbm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(key []byte) ([]byte, error) {
	return s.db.Get(key)
}

func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

func (s *Store) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	start, end := state.PrefixRange(prefix)
	it, err := s.db.Iterator(start, end)
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer it.Close()

	for ; it.Valid(); it.Next() {
		if !fn(copyBytes(it.Key()), copyBytes(it.Value())) {
			break
		}
	}
	return it.Error()
}

func (s *Store) Apply(batch *state.Batch) error {
	b := s.db.NewBatch()
	defer b.Close()

	for _, op := range batch.Ops() {
		var err error
		if op.Delete {
			err = b.Delete(op.Key)
		} else {
			err = b.Set(op.Key, op.Value)
		}
		if err != nil {
			return fmt.Errorf("failed to stage batch op: %w", err)
		}
	}
	return b.WriteSync()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
