package types

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/govm-net/abihost/core"
)

// ArgKind tells the dispatcher how to lower an argument to a scalar.
type ArgKind uint8

const (
	// ArgScalar is passed through unchanged.
	ArgScalar ArgKind = iota
	// ArgBytes is staged into linear memory and passed as its pointer.
	ArgBytes
)

// Arg is one entry point argument.
type Arg struct {
	Kind  ArgKind `json:"kind"`
	Value uint64  `json:"value,omitempty"`
	Data  []byte  `json:"data,omitempty"`
}

// U64 returns a scalar argument.
func U64(v uint64) Arg {
	return Arg{Kind: ArgScalar, Value: v}
}

// Bytes returns an argument staged into memory and passed by pointer.
func Bytes(b []byte) Arg {
	return Arg{Kind: ArgBytes, Data: b}
}

// AddressArg stages a 32-byte address and passes its pointer.
func AddressArg(addr core.Address) Arg {
	return Bytes(addr.Bytes())
}

func (a Arg) String() string {
	if a.Kind == ArgBytes {
		return "0x" + hex.EncodeToString(a.Data)
	}
	return strconv.FormatUint(a.Value, 10)
}

// ParseArg parses the CLI form of an argument: a decimal scalar, or 0x-prefixed
// hex bytes.
func ParseArg(s string) (Arg, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		addr, err := core.ParseAddress(s)
		if err == nil {
			return AddressArg(addr), nil
		}
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return Arg{}, fmt.Errorf("invalid bytes argument %q: %w", s, err)
		}
		return Bytes(b), nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Arg{}, fmt.Errorf("invalid scalar argument %q: %w", s, err)
	}
	return U64(v), nil
}

// Stager copies bytes into an instance's linear memory.
type Stager interface {
	Stage(ctx context.Context, data []byte) (uint32, error)
}

// Lower turns typed arguments into entry point scalars, staging byte arguments
// through s and passing their pointers.
func Lower(ctx context.Context, s Stager, args []Arg) ([]uint64, error) {
	out := make([]uint64, len(args))
	for i, arg := range args {
		if arg.Kind != ArgBytes {
			out[i] = arg.Value
			continue
		}
		ptr, err := s.Stage(ctx, arg.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to stage argument %d: %w", i, err)
		}
		out[i] = uint64(ptr)
	}
	return out, nil
}

// Call is a request to invoke one exported entry point.
type Call struct {
	Contract   core.Address `json:"contract"`
	Caller     core.Address `json:"caller"`
	EntryPoint string       `json:"entry_point"`
	Args       []Arg        `json:"args,omitempty"`
}

// Phase is a dispatcher state.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDispatching Phase = "dispatching"
	PhaseExecuting   Phase = "executing"
	PhaseCommitted   Phase = "committed"
	PhaseReverted    Phase = "reverted"
)

// Result is the outcome of an invocation.
type Result struct {
	ID          string       `json:"id"`
	Contract    core.Address `json:"contract"`
	EntryPoint  string       `json:"entry_point"`
	BlockHeight uint64       `json:"block_height"`
	Phase       Phase        `json:"phase"`
	Value       uint64       `json:"value"`
	Events      []Event      `json:"events,omitempty"`
	StorageOps  uint32       `json:"storage_ops"`
	ReadOnly    bool         `json:"read_only,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Succeeded reports whether the invocation committed with a success status.
func (r *Result) Succeeded() bool {
	return r != nil && r.Phase == PhaseCommitted && r.Value == core.StatusSuccess
}
