package security

import (
	"math"
	"testing"

	"github.com/govm-net/abihost/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeterStorageOps(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxStorageOps = 2
	m := NewMeter(limits)

	require.NoError(t, m.StorageOp(1, 10))
	require.NoError(t, m.StorageOp(1, 0))
	err := m.StorageOp(1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrResourceLimit)
	assert.True(t, core.IsFatal(err))
	assert.Equal(t, uint32(2), m.StorageOps())
}

func TestMeterSizes(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxKeySize = 4
	limits.MaxValueSize = 8
	m := NewMeter(limits)

	tests := []struct {
		name     string
		key, val int
		ok       bool
	}{
		{"fits", 4, 8, true},
		{"empty key", 0, 1, false},
		{"key too large", 5, 1, false},
		{"value too large", 1, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.StorageOp(tt.key, tt.val)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				var limitErr *LimitError
				assert.ErrorAs(t, err, &limitErr)
			}
		})
	}
}

func TestMeterEvents(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxEvents = 1
	limits.MaxEventBytes = 3
	m := NewMeter(limits)

	assert.ErrorIs(t, m.Event(4), core.ErrResourceLimit)
	require.NoError(t, m.Event(3))
	assert.ErrorIs(t, m.Event(1), core.ErrResourceLimit)
	assert.Equal(t, uint32(1), m.Events())
}

func TestLimitsValidate(t *testing.T) {
	require.NoError(t, DefaultLimits().Validate())

	l := DefaultLimits()
	l.MaxMemoryPages = 0
	assert.Error(t, l.Validate())

	l = DefaultLimits()
	l.MaxExecutionTime = 0
	assert.Error(t, l.Validate())

	l = DefaultLimits()
	assert.NoError(t, l.CheckCodeSize(10))
	l.MaxCodeSize = 1
	assert.ErrorIs(t, l.CheckCodeSize(10), core.ErrResourceLimit)
}

func TestLimitsValidateValueSize(t *testing.T) {
	l := DefaultLimits()
	l.MaxValueSize = math.MaxInt32
	require.NoError(t, l.Validate())
	l.MaxValueSize = math.MaxInt32 + 1
	assert.Error(t, l.Validate())
}

func TestBlockLimiter(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxCallsPerBlock = 2
	limits.MaxDeploysPerBlock = 1
	b := NewBlockLimiter(limits)

	require.NoError(t, b.Call(5))
	require.NoError(t, b.Call(5))
	assert.ErrorIs(t, b.Call(5), core.ErrResourceLimit)
	require.NoError(t, b.Deploy(5))
	assert.ErrorIs(t, b.Deploy(5), core.ErrResourceLimit)

	height, calls, deploys := b.Usage()
	assert.Equal(t, uint64(5), height)
	assert.Equal(t, uint32(2), calls)
	assert.Equal(t, uint32(1), deploys)

	// a new height starts from zero
	require.NoError(t, b.Call(6))
	require.NoError(t, b.Deploy(6))
	_, calls, deploys = b.Usage()
	assert.Equal(t, uint32(1), calls)
	assert.Equal(t, uint32(1), deploys)

	limits.MaxCallsPerBlock = 0
	unlimited := NewBlockLimiter(limits)
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.Call(0))
	}
}
