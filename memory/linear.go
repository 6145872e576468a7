package memory

import "fmt"

// Linear is a host-owned fixed-size memory used by native programs.
type Linear struct {
	buf []byte
}

var _ Accessor = (*Linear)(nil)

// NewLinear allocates a zeroed memory of the given number of pages.
func NewLinear(pages uint32) (*Linear, error) {
	if pages == 0 {
		return nil, fmt.Errorf("memory must have at least one page")
	}
	if uint64(pages)*PageSize > 1<<32-1 {
		return nil, fmt.Errorf("memory of %d pages exceeds the 32-bit address space", pages)
	}
	return &Linear{buf: make([]byte, int(pages)*PageSize)}, nil
}

func (m *Linear) Size() uint32 {
	return uint32(len(m.buf))
}

func (m *Linear) Read(ptr, length uint32) ([]byte, error) {
	if err := CheckBounds("read", ptr, uint64(length), m.Size()); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.buf[ptr:uint64(ptr)+uint64(length)])
	return out, nil
}

func (m *Linear) Write(ptr uint32, data []byte) error {
	if err := CheckBounds("write", ptr, uint64(len(data)), m.Size()); err != nil {
		return err
	}
	copy(m.buf[ptr:], data)
	return nil
}
