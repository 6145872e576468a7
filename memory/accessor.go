// Package memory provides bounds-checked access to a contract's linear memory.
package memory

import (
	"encoding/binary"
	"fmt"

	"github.com/govm-net/abihost/core"
)

// PageSize is the size of one linear memory page.
const PageSize = 65536

// Accessor reads and writes a contract's linear memory. Every access is checked
// against Size; no implementation grows memory implicitly.
type Accessor interface {
	Size() uint32
	Read(ptr, length uint32) ([]byte, error)
	Write(ptr uint32, data []byte) error
}

// AccessError describes a rejected memory access.
type AccessError struct {
	Op     string
	Ptr    uint32
	Length uint64
	Size   uint32
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %s [%d, +%d) exceeds memory size %d", core.ErrOutOfBoundsAccess, e.Op, e.Ptr, e.Length, e.Size)
}

func (e *AccessError) Unwrap() error {
	return core.ErrOutOfBoundsAccess
}

// CheckBounds reports whether [ptr, ptr+length) lies inside a memory of the
// given size. The sum is computed in 64 bits so it cannot wrap.
func CheckBounds(op string, ptr uint32, length uint64, size uint32) error {
	if uint64(ptr)+length > uint64(size) {
		return &AccessError{Op: op, Ptr: ptr, Length: length, Size: size}
	}
	return nil
}

// ReadAddress reads a 32-byte address at ptr.
func ReadAddress(m Accessor, ptr uint32) (core.Address, error) {
	b, err := m.Read(ptr, core.AddressLength)
	if err != nil {
		return core.Address{}, err
	}
	return core.AddressFromBytes(b)
}

// WriteAddress writes addr at ptr.
func WriteAddress(m Accessor, ptr uint32, addr core.Address) error {
	return m.Write(ptr, addr[:])
}

// ReadUint64 reads a little-endian uint64 at ptr.
func ReadUint64(m Accessor, ptr uint32) (uint64, error) {
	b, err := m.Read(ptr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WriteUint64 writes v at ptr in little-endian order.
func WriteUint64(m Accessor, ptr uint32, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return m.Write(ptr, b[:])
}
