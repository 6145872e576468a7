package memory

import (
	"github.com/tetratelabs/wazero/api"
)

// Wazero adapts a wazero module memory to Accessor.
type Wazero struct {
	mem api.Memory
}

var _ Accessor = Wazero{}

// NewWazero wraps mem. mem may be nil for modules that do not export memory,
// in which case every non-empty access fails.
func NewWazero(mem api.Memory) Wazero {
	return Wazero{mem: mem}
}

func (w Wazero) Size() uint32 {
	if w.mem == nil {
		return 0
	}
	return w.mem.Size()
}

func (w Wazero) Read(ptr, length uint32) ([]byte, error) {
	if err := CheckBounds("read", ptr, uint64(length), w.Size()); err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	view, ok := w.mem.Read(ptr, length)
	if !ok {
		return nil, &AccessError{Op: "read", Ptr: ptr, Length: uint64(length), Size: w.Size()}
	}
	// Read returns a view into guest memory; copy so later guest writes cannot alias.
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

func (w Wazero) Write(ptr uint32, data []byte) error {
	if err := CheckBounds("write", ptr, uint64(len(data)), w.Size()); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if !w.mem.Write(ptr, data) {
		return &AccessError{Op: "write", Ptr: ptr, Length: uint64(len(data)), Size: w.Size()}
	}
	return nil
}
