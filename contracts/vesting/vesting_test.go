package vesting

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/native/nativetest"
	"github.com/govm-net/abihost/types"
)

var (
	beneficiary = core.Address{0xbe}
	anyone      = core.Address{0x0a}
)

func setup(t *testing.T, funded uint64) *nativetest.Harness {
	t.Helper()
	h := nativetest.New(t, Program)
	h.Height = 50
	if funded > 0 {
		require.NoError(t, h.Ledger.Credit(h.Contract, funded))
	}
	ret := h.MustCall(anyone, "init", types.AddressArg(beneficiary), types.U64(100), types.U64(50))
	require.Equal(t, core.StatusSuccess, ret)
	return h
}

func TestScenarioReleaseTooEarly(t *testing.T) {
	h := setup(t, 50)
	assert.Equal(t, core.StatusFailure, h.MustCall(anyone, "release"))
	assert.Equal(t, uint64(0), h.MustCall(anyone, "is_released"))
	assert.Equal(t, uint64(50), h.Balance(h.Contract))
	assert.Empty(t, h.Events())
}

func TestScenarioReleaseAtHeight(t *testing.T) {
	h := setup(t, 80)
	h.Height = 100

	assert.Equal(t, core.StatusSuccess, h.MustCall(anyone, "release"))
	assert.Equal(t, uint64(1), h.MustCall(anyone, "is_released"))
	assert.Equal(t, uint64(50), h.Balance(beneficiary))
	assert.Equal(t, uint64(30), h.Balance(h.Contract))

	assert.Equal(t, core.StatusFailure, h.MustCall(anyone, "release"))
	assert.Equal(t, uint64(50), h.Balance(beneficiary))

	events := h.Events()
	require.Len(t, events, 1)
	var payload Released
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, Released{Event: EventTokensReleased, Beneficiary: beneficiary, Amount: 50, Height: 100}, payload)
	assert.Equal(t, uint64(100), events[0].BlockHeight)
}

func TestReleaseTransferFailureLeavesState(t *testing.T) {
	h := setup(t, 10)
	h.Height = 120

	assert.Equal(t, core.StatusFailure, h.MustCall(anyone, "release"))
	assert.Equal(t, uint64(0), h.MustCall(anyone, "is_released"))
	assert.Equal(t, uint64(10), h.Balance(h.Contract))
	assert.Zero(t, h.Balance(beneficiary))
	assert.Empty(t, h.Events())

	// funding later makes the release succeed
	require.NoError(t, h.Ledger.Credit(h.Contract, 40))
	assert.Equal(t, core.StatusSuccess, h.MustCall(anyone, "release"))
}

func TestBlocksUntilRelease(t *testing.T) {
	h := setup(t, 0)

	prev := uint64(1<<63 - 1)
	for _, height := range []uint64{0, 10, 50, 99, 100, 101, 500} {
		h.Height = height
		got := h.MustCall(anyone, "blocks_until_release")
		assert.LessOrEqual(t, got, prev, "height %d", height)
		if height >= 100 {
			assert.Zero(t, got)
		} else {
			assert.Equal(t, 100-height, got)
		}
		prev = got
	}
}

func TestQueries(t *testing.T) {
	h := setup(t, 0)
	assert.Equal(t, uint64(100), h.MustCall(anyone, "get_release_height"))
	assert.Equal(t, uint64(50), h.MustCall(anyone, "get_amount"))
	assert.Equal(t, h.MustCall(anyone, "get_amount"), h.MustCall(anyone, "get_amount"))
	assert.Equal(t, h.MustCall(anyone, "is_released"), h.MustCall(anyone, "is_released"))
}

func TestInitRejections(t *testing.T) {
	h := nativetest.New(t, Program)
	assert.Equal(t, core.StatusFailure, h.MustCall(anyone, "init", types.AddressArg(core.ZeroAddress), types.U64(1), types.U64(1)))
	assert.Equal(t, core.StatusFailure, h.MustCall(anyone, "release"))

	require.Equal(t, core.StatusSuccess, h.MustCall(anyone, "init", types.AddressArg(beneficiary), types.U64(1), types.U64(1)))
	assert.Equal(t, core.StatusFailure, h.MustCall(anyone, "init", types.AddressArg(anyone), types.U64(2), types.U64(2)))
	assert.Equal(t, uint64(1), h.MustCall(anyone, "get_release_height"))

	_, err := h.Call(anyone, "init", types.AddressArg(beneficiary))
	assert.ErrorIs(t, err, core.ErrArityMismatch)
}
