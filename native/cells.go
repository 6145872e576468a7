package native

import (
	"encoding/binary"
	"fmt"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/memory"
)

// Typed storage cells. Integers are stored as 8 bytes big-endian, booleans as
// one byte and addresses as their 32 raw bytes.

// LoadUint64 reads an integer cell; absent cells read as zero.
func (c *Context) LoadUint64(key string) (uint64, error) {
	raw, ok, err := c.StorageRead([]byte(key))
	if err != nil || !ok {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("cell %q: expected 8 bytes, got %d", key, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (c *Context) StoreUint64(key string, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return c.StorageWrite([]byte(key), b[:])
}

// LoadBool reads a boolean cell; absent cells read as false.
func (c *Context) LoadBool(key string) (bool, error) {
	raw, ok, err := c.StorageRead([]byte(key))
	if err != nil || !ok {
		return false, err
	}
	return len(raw) == 1 && raw[0] == 1, nil
}

func (c *Context) StoreBool(key string, v bool) error {
	b := []byte{0}
	if v {
		b[0] = 1
	}
	return c.StorageWrite([]byte(key), b)
}

// LoadAddress reads an address cell. ok is false when the cell is absent.
func (c *Context) LoadAddress(key string) (addr core.Address, ok bool, err error) {
	raw, ok, err := c.StorageRead([]byte(key))
	if err != nil || !ok {
		return addr, false, err
	}
	addr, err = core.AddressFromBytes(raw)
	return addr, err == nil, err
}

func (c *Context) StoreAddress(key string, addr core.Address) error {
	return c.StorageWrite([]byte(key), addr[:])
}

// ReadAddressArg copies the 32-byte address a pointer argument refers to.
func (c *Context) ReadAddressArg(ptr uint64) (core.Address, error) {
	if ptr > uint64(^uint32(0)) {
		return core.Address{}, fmt.Errorf("%w: pointer %d exceeds 32 bits", core.ErrOutOfBoundsAccess, ptr)
	}
	return memory.ReadAddress(c.Memory, uint32(ptr))
}
