package types

import (
	"context"
	"errors"
	"testing"

	"github.com/govm-net/abihost/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArg(t *testing.T) {
	arg, err := ParseArg("42")
	require.NoError(t, err)
	assert.Equal(t, U64(42), arg)

	addr := core.Address{0x09}
	arg, err = ParseArg("0x" + addr.String())
	require.NoError(t, err)
	assert.Equal(t, ArgBytes, arg.Kind)
	assert.Equal(t, addr.Bytes(), arg.Data)

	arg, err = ParseArg("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, arg.Data)

	_, err = ParseArg("-1")
	assert.Error(t, err)
}

func TestResultSucceeded(t *testing.T) {
	var r *Result
	assert.False(t, r.Succeeded())
	assert.True(t, (&Result{Phase: PhaseCommitted, Value: 1}).Succeeded())
	assert.False(t, (&Result{Phase: PhaseCommitted, Value: 0}).Succeeded())
	assert.False(t, (&Result{Phase: PhaseReverted, Value: 1}).Succeeded())
}

type bumpStager struct{ next uint32 }

func (s *bumpStager) Stage(_ context.Context, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, errors.New("empty")
	}
	ptr := s.next
	s.next += uint32(len(data))
	return ptr, nil
}

func TestLower(t *testing.T) {
	s := &bumpStager{next: 16}
	out, err := Lower(context.Background(), s, []Arg{U64(7), Bytes([]byte("abc")), AddressArg(core.Address{1})})
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 16, 19}, out)

	_, err = Lower(context.Background(), s, []Arg{U64(1), Bytes(nil)})
	assert.ErrorContains(t, err, "argument 1")
}
