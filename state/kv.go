// Package state implements the contract state store: a key-value backend
// abstraction, the per-invocation overlay that buffers writes until commit, and
// the contract-scoped and balance views built on top of it.
package state

// KVStore is the persistence backend. Implementations must apply a Batch
// atomically and iterate keys in ascending byte order.
type KVStore interface {
	// Get returns the value stored at key, or nil when the key is absent.
	// Backends may also return nil for a present empty value; use Has to tell
	// the two apart.
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// Iterate calls fn for every key with the given prefix until fn returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	Apply(batch *Batch) error
	Close() error
}

// Op is a single batched mutation.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Batch is an ordered list of mutations applied as one unit.
type Batch struct {
	ops []Op
}

func (b *Batch) Set(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	b.ops = append(b.ops, Op{Key: key, Value: value})
}

func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, Op{Key: key, Delete: true})
}

func (b *Batch) Ops() []Op {
	return b.ops
}

func (b *Batch) Len() int {
	return len(b.ops)
}

// get resolves the nil-means-absent ambiguity of KVStore.Get.
func get(kv KVStore, key []byte) ([]byte, bool, error) {
	v, err := kv.Get(key)
	if err != nil {
		return nil, false, err
	}
	if v != nil {
		return v, true, nil
	}
	ok, err := kv.Has(key)
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte{}, true, nil
}
