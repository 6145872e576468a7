package state

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/types"
)

// mapStore is a minimal KVStore for package-internal tests.
type mapStore struct {
	data    map[string][]byte
	applies int
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (m *mapStore) Get(key []byte) ([]byte, error) {
	return m.data[string(key)], nil
}

func (m *mapStore) Has(key []byte) (bool, error) {
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *mapStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	var keys []string
	for k := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), m.data[k]) {
			break
		}
	}
	return nil
}

func (m *mapStore) Apply(b *Batch) error {
	m.applies++
	for _, op := range b.Ops() {
		if op.Delete {
			delete(m.data, string(op.Key))
		} else {
			m.data[string(op.Key)] = op.Value
		}
	}
	return nil
}

func (m *mapStore) Close() error { return nil }

var (
	alice    = core.Address{0xa1}
	bob      = core.Address{0xb0}
	contract = core.Address{0xc0}
)

func TestOverlayReadYourWrites(t *testing.T) {
	kv := newMapStore()
	l := NewLedger(kv)
	o := l.Begin()
	s := NewStore(o, contract)

	_, ok, err := s.Read([]byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)

	s.Write([]byte("x"), []byte("1"))
	v, ok, err := s.Read([]byte("x"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	s.Delete([]byte("x"))
	_, ok, err = s.Read([]byte("x"))
	require.NoError(t, err)
	assert.False(t, ok)

	// nothing reached the backend
	assert.Empty(t, kv.data)
}

func TestOverlayCommitIsOneBatch(t *testing.T) {
	kv := newMapStore()
	l := NewLedger(kv)
	o := l.Begin()
	s := NewStore(o, contract)
	s.Write([]byte("a"), []byte("1"))
	s.Write([]byte("b"), []byte{})
	o.AddEvent(types.Event{Contract: contract, Payload: []byte("hi")})

	events, err := o.Commit()
	require.NoError(t, err)
	assert.Equal(t, 1, kv.applies)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(0), events[0].Sequence)

	next := NewStore(l.Begin(), contract)
	v, ok, err := next.Read([]byte("b"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)

	_, err = o.Commit()
	assert.Error(t, err)
}

func TestOverlayDiscard(t *testing.T) {
	kv := newMapStore()
	l := NewLedger(kv)
	require.NoError(t, l.Credit(contract, 10))

	o := l.Begin()
	NewStore(o, contract).Write([]byte("a"), []byte("1"))
	ok, err := o.Transfer(contract, bob, 10)
	require.NoError(t, err)
	require.True(t, ok)
	o.AddEvent(types.Event{Contract: contract})
	o.Discard()

	_, err = o.Commit()
	assert.Error(t, err)

	bal, err := l.Balance(contract)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal)
	events, err := l.Events(contract)
	require.NoError(t, err)
	assert.Empty(t, events)
	_, ok, err = NewStore(l.Begin(), contract).Read([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOverlayTransfer(t *testing.T) {
	l := NewLedger(newMapStore())
	require.NoError(t, l.Credit(contract, 100))
	o := l.Begin()

	ok, err := o.Transfer(contract, core.ZeroAddress, 1)
	require.NoError(t, err)
	assert.False(t, ok, "zero address is a malformed target")

	ok, err = o.Transfer(contract, bob, 101)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = o.Transfer(contract, bob, 60)
	require.NoError(t, err)
	assert.True(t, ok)

	// pending debits count against the balance
	ok, err = o.Transfer(contract, alice, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	bal, err := o.Balance(contract)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), bal)
	bal, err = o.Balance(bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), bal)

	_, err = o.Commit()
	require.NoError(t, err)
	bal, err = l.Balance(bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), bal)
}

func TestStoreNamespaces(t *testing.T) {
	l := NewLedger(newMapStore())
	o := l.Begin()
	NewStore(o, contract).Write([]byte("k"), []byte("mine"))

	_, ok, err := NewStore(o, alice).Read([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerHeight(t *testing.T) {
	l := NewLedger(newMapStore())
	h, err := l.Height()
	require.NoError(t, err)
	assert.Zero(t, h)

	require.NoError(t, l.SetHeight(5))
	require.NoError(t, l.SetHeight(5))
	assert.ErrorIs(t, l.SetHeight(4), core.ErrHeightRegression)
	h, err = l.Height()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h)
}

func TestLedgerContracts(t *testing.T) {
	l := NewLedger(newMapStore())
	_, err := l.Contract(contract)
	assert.ErrorIs(t, err, core.ErrUnknownContract)

	o := l.Begin()
	nonce, err := o.NextNonce(alice)
	require.NoError(t, err)
	assert.Zero(t, nonce)
	nonce, err = o.NextNonce(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)

	require.NoError(t, o.PutContract(types.ContractInfo{Address: contract, Creator: alice, Kind: types.KindNative, Program: "counter"}))
	NewStore(o, contract).Write([]byte("k"), []byte("v"))
	o.AddEvent(types.Event{Contract: contract})
	_, err = o.Commit()
	require.NoError(t, err)

	info, err := l.Contract(contract)
	require.NoError(t, err)
	assert.Equal(t, "counter", info.Program)
	all, err := l.Contracts()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, l.RemoveContract(contract))
	_, err = l.Contract(contract)
	assert.ErrorIs(t, err, core.ErrUnknownContract)
	events, err := l.Events(contract)
	require.NoError(t, err)
	assert.Empty(t, events)
	_, ok, err := NewStore(l.Begin(), contract).Read([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, l.RemoveContract(contract), core.ErrUnknownContract)
}

func TestPrefixRange(t *testing.T) {
	start, end := PrefixRange([]byte{1, 2})
	assert.Equal(t, []byte{1, 2}, start)
	assert.Equal(t, []byte{1, 3}, end)

	_, end = PrefixRange([]byte{1, 0xff})
	assert.Equal(t, []byte{2}, end)

	_, end = PrefixRange([]byte{0xff, 0xff})
	assert.Nil(t, end)

	start, end = PrefixRange(nil)
	assert.Nil(t, start)
	assert.Nil(t, end)
}
