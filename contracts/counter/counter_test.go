package counter

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/native/nativetest"
	"github.com/govm-net/abihost/types"
)

var (
	owner    = core.Address{0x01}
	stranger = core.Address{0x02}
)

func setup(t *testing.T) *nativetest.Harness {
	t.Helper()
	h := nativetest.New(t, Program)
	require.Equal(t, core.StatusSuccess, h.MustCall(owner, "init", types.AddressArg(owner)))
	return h
}

func TestScenarioAddAddDecrement(t *testing.T) {
	h := setup(t)
	assert.Equal(t, uint64(5), h.MustCall(owner, "add", types.U64(5)))
	assert.Equal(t, uint64(8), h.MustCall(owner, "add", types.U64(3)))
	assert.Equal(t, uint64(7), h.MustCall(owner, "decrement"))
	assert.Equal(t, uint64(7), h.MustCall(owner, "get"))
}

func TestCounterMatchesModel(t *testing.T) {
	h := setup(t)
	rng := rand.New(rand.NewSource(1))

	var model uint64
	for i := 0; i < 200; i++ {
		switch rng.Intn(3) {
		case 0:
			model++
			assert.Equal(t, model, h.MustCall(stranger, "increment"))
		case 1:
			n := uint64(rng.Intn(5))
			model += n
			assert.Equal(t, model, h.MustCall(stranger, "add", types.U64(n)))
		case 2:
			if model > 0 {
				model--
			}
			assert.Equal(t, model, h.MustCall(stranger, "decrement"))
		}
		require.Equal(t, model, h.MustCall(stranger, "get"))
	}
}

func TestDecrementFloorsAtZero(t *testing.T) {
	h := setup(t)
	assert.Equal(t, uint64(0), h.MustCall(owner, "decrement"))
	assert.Equal(t, uint64(0), h.MustCall(owner, "get"))
}

func TestReset(t *testing.T) {
	h := setup(t)
	h.MustCall(owner, "add", types.U64(9))

	assert.Equal(t, core.StatusFailure, h.MustCall(stranger, "reset"))
	assert.Equal(t, uint64(9), h.MustCall(owner, "get"))

	assert.Equal(t, core.StatusSuccess, h.MustCall(owner, "reset"))
	assert.Equal(t, uint64(0), h.MustCall(owner, "get"))

	// reset of a zero counter still succeeds
	assert.Equal(t, core.StatusSuccess, h.MustCall(owner, "reset"))
	assert.Equal(t, uint64(0), h.MustCall(owner, "get"))
}

func TestInitOnlyOnce(t *testing.T) {
	h := setup(t)
	h.MustCall(owner, "increment")
	assert.Equal(t, core.StatusFailure, h.MustCall(stranger, "init", types.AddressArg(stranger)))

	// owner unchanged and counter untouched
	assert.Equal(t, uint64(1), h.MustCall(owner, "get"))
	assert.Equal(t, core.StatusFailure, h.MustCall(stranger, "reset"))
}

func TestInitRejectsZeroOwner(t *testing.T) {
	h := nativetest.New(t, Program)
	assert.Equal(t, core.StatusFailure, h.MustCall(owner, "init", types.AddressArg(core.ZeroAddress)))

	// still uninitialized, so a real owner can claim it
	assert.Equal(t, core.StatusSuccess, h.MustCall(owner, "init", types.AddressArg(owner)))
	assert.Equal(t, core.StatusSuccess, h.MustCall(owner, "reset"))
}

func TestAddOverflowReverts(t *testing.T) {
	h := setup(t)
	h.MustCall(owner, "add", types.U64(math.MaxUint64-1))

	_, err := h.Call(owner, "add", types.U64(2))
	assert.ErrorIs(t, err, core.ErrArithmeticOverflow)
	assert.Equal(t, uint64(math.MaxUint64-1), h.MustCall(owner, "get"))

	assert.Equal(t, uint64(math.MaxUint64), h.MustCall(owner, "increment"))
	_, err = h.Call(owner, "increment")
	assert.ErrorIs(t, err, core.ErrArithmeticOverflow)
}

func TestInitOutOfBoundsPointer(t *testing.T) {
	h := nativetest.New(t, Program)
	_, err := h.Call(owner, "init", types.U64(1<<20))
	assert.ErrorIs(t, err, core.ErrOutOfBoundsAccess)

	// nothing was recorded, so init still works
	assert.Equal(t, core.StatusSuccess, h.MustCall(owner, "init", types.AddressArg(owner)))
}

func TestGetIsIdempotent(t *testing.T) {
	h := setup(t)
	h.MustCall(owner, "add", types.U64(4))
	assert.Equal(t, h.MustCall(owner, "get"), h.MustCall(owner, "get"))
}
