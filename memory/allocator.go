package memory

const alignment = 8

// Allocator is a bump allocator that stages host data into a Linear memory.
// Offset 0 is never handed out so a zero pointer stays distinguishable.
type Allocator struct {
	mem  *Linear
	next uint32
}

// NewAllocator returns an allocator over mem.
func NewAllocator(mem *Linear) *Allocator {
	return &Allocator{mem: mem, next: alignment}
}

// Alloc reserves size bytes and returns their pointer.
func (a *Allocator) Alloc(size uint32) (uint32, error) {
	ptr := a.next
	if err := CheckBounds("alloc", ptr, uint64(size), a.mem.Size()); err != nil {
		return 0, err
	}
	end := uint64(ptr) + uint64(size)
	end = (end + alignment - 1) &^ (alignment - 1)
	if end > uint64(a.mem.Size()) {
		end = uint64(a.mem.Size())
	}
	a.next = uint32(end)
	return ptr, nil
}

// Stage copies data into freshly allocated memory and returns its pointer.
func (a *Allocator) Stage(data []byte) (uint32, error) {
	ptr, err := a.Alloc(uint32(len(data)))
	if err != nil {
		return 0, err
	}
	if err := a.mem.Write(ptr, data); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Reset releases every allocation.
func (a *Allocator) Reset() {
	a.next = alignment
}
