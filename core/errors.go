package core

import "errors"

// Fatal faults detected by the host while a program is executing. Any of these
// reverts the invocation.
var (
	ErrOutOfBoundsAccess  = errors.New("out of bounds memory access")
	ErrResourceLimit      = errors.New("resource limit exceeded")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrTrap               = errors.New("program trapped")
	ErrAborted            = errors.New("invocation aborted")
)

// Fatal faults detected by the dispatcher before execution starts. State is
// never touched.
var (
	ErrUnknownContract   = errors.New("unknown contract")
	ErrUnknownEntryPoint = errors.New("unknown entry point")
	ErrArityMismatch     = errors.New("argument count mismatch")
	ErrPaused            = errors.New("engine paused")
)

// Business-rule failures. Programs report these with a 0 status code and leave
// state exactly as it was.
var (
	ErrAlreadyReleased     = errors.New("already released")
	ErrTooEarly            = errors.New("release height not reached")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotOwner            = errors.New("caller is not the owner")
	ErrAlreadyInitialized  = errors.New("already initialized")
)

// Host-level errors returned by engine operations that are not invocations.
var (
	ErrInvalidAddress   = errors.New("invalid address")
	ErrHeightRegression = errors.New("block height must not decrease")
	ErrContractExists   = errors.New("contract already exists")
	ErrUnknownProgram   = errors.New("unknown program")
	ErrClosed           = errors.New("engine closed")
	ErrInitFailed       = errors.New("constructor returned failure status")
)

var fatal = []error{
	ErrOutOfBoundsAccess,
	ErrResourceLimit,
	ErrArithmeticOverflow,
	ErrTrap,
	ErrAborted,
	ErrUnknownContract,
	ErrUnknownEntryPoint,
	ErrArityMismatch,
	ErrPaused,
}

// IsFatal reports whether err is a fault that rejects or reverts an invocation.
func IsFatal(err error) bool {
	for _, target := range fatal {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Status codes returned by state-changing entry points.
const (
	StatusFailure uint64 = 0
	StatusSuccess uint64 = 1
)

// Status converts a boolean outcome into a status code.
func Status(ok bool) uint64 {
	if ok {
		return StatusSuccess
	}
	return StatusFailure
}
