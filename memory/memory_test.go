package memory

import (
	"math"
	"testing"

	"github.com/govm-net/abihost/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) *Linear {
	t.Helper()
	m, err := NewLinear(1)
	require.NoError(t, err)
	return m
}

func TestLinearBounds(t *testing.T) {
	m := newTestMemory(t)
	require.Equal(t, uint32(PageSize), m.Size())

	tests := []struct {
		name    string
		ptr     uint32
		length  uint32
		wantErr bool
	}{
		{"start", 0, 16, false},
		{"whole memory", 0, PageSize, false},
		{"zero length at end", PageSize, 0, false},
		{"last byte", PageSize - 1, 1, false},
		{"one past end", PageSize - 1, 2, true},
		{"pointer past end", PageSize + 1, 0, true},
		{"overflowing sum", math.MaxUint32, 2, true},
		{"huge length", 1, math.MaxUint32, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Read(tt.ptr, tt.length)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrOutOfBoundsAccess)
			var accessErr *AccessError
			require.ErrorAs(t, err, &accessErr)
			assert.Equal(t, "read", accessErr.Op)
			assert.Equal(t, tt.ptr, accessErr.Ptr)
		})
	}
}

func TestLinearReadReturnsCopy(t *testing.T) {
	m := newTestMemory(t)
	require.NoError(t, m.Write(100, []byte("hello")))

	got, err := m.Read(100, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	got[0] = 'j'
	again, err := m.Read(100, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), again)
}

func TestLinearWriteOutOfBounds(t *testing.T) {
	m := newTestMemory(t)
	err := m.Write(PageSize-2, []byte{1, 2, 3})
	assert.ErrorIs(t, err, core.ErrOutOfBoundsAccess)

	// nothing was written
	tail, err := m.Read(PageSize-2, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, tail)
}

func TestTypedHelpers(t *testing.T) {
	m := newTestMemory(t)
	addr := core.Address{1, 2, 3}

	require.NoError(t, WriteAddress(m, 64, addr))
	got, err := ReadAddress(m, 64)
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	require.NoError(t, WriteUint64(m, 8, 0x0102030405060708))
	raw, err := m.Read(8, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, raw)
	v, err := ReadUint64(m, 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v)

	_, err = ReadAddress(m, PageSize-16)
	assert.ErrorIs(t, err, core.ErrOutOfBoundsAccess)
}

func TestNewLinearRejectsZeroPages(t *testing.T) {
	_, err := NewLinear(0)
	assert.Error(t, err)
}

func TestAllocator(t *testing.T) {
	m := newTestMemory(t)
	a := NewAllocator(m)

	p1, err := a.Stage([]byte("abc"))
	require.NoError(t, err)
	assert.NotZero(t, p1)
	assert.Zero(t, p1%alignment)

	p2, err := a.Stage([]byte("defgh"))
	require.NoError(t, err)
	assert.Zero(t, p2%alignment)
	assert.GreaterOrEqual(t, p2, p1+3)

	b, err := m.Read(p1, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)

	_, err = a.Alloc(PageSize)
	assert.ErrorIs(t, err, core.ErrOutOfBoundsAccess)

	a.Reset()
	p3, err := a.Alloc(1)
	require.NoError(t, err)
	assert.Equal(t, p1, p3)
}

func TestWazeroNilMemory(t *testing.T) {
	w := NewWazero(nil)
	assert.Zero(t, w.Size())
	_, err := w.Read(0, 1)
	assert.ErrorIs(t, err, core.ErrOutOfBoundsAccess)
	b, err := w.Read(0, 0)
	require.NoError(t, err)
	assert.Empty(t, b)
	assert.NoError(t, w.Write(0, nil))
}
