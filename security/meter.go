package security

import "sync"

// Meter 统计单次调用的资源使用，超限时返回 *LimitError
type Meter struct {
	limits Limits

	mu         sync.Mutex
	storageOps uint32
	events     uint32
}

// NewMeter 创建计量器
func NewMeter(limits Limits) *Meter {
	return &Meter{limits: limits}
}

// Limits 返回计量器使用的限制
func (m *Meter) Limits() Limits {
	return m.limits
}

// StorageOp 记录一次存储操作，并检查 key/value 大小
func (m *Meter) StorageOp(keyLen, valueLen int) error {
	if keyLen == 0 {
		return &LimitError{Resource: "empty storage key", Limit: uint64(m.limits.MaxKeySize), Got: 0}
	}
	if uint64(keyLen) > uint64(m.limits.MaxKeySize) {
		return &LimitError{Resource: "storage key size", Limit: uint64(m.limits.MaxKeySize), Got: uint64(keyLen)}
	}
	if uint64(valueLen) > uint64(m.limits.MaxValueSize) {
		return &LimitError{Resource: "storage value size", Limit: uint64(m.limits.MaxValueSize), Got: uint64(valueLen)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storageOps >= m.limits.MaxStorageOps {
		return &LimitError{Resource: "storage operations", Limit: uint64(m.limits.MaxStorageOps), Got: uint64(m.storageOps) + 1}
	}
	m.storageOps++
	return nil
}

// Event 记录一次事件
func (m *Meter) Event(size int) error {
	if uint64(size) > uint64(m.limits.MaxEventBytes) {
		return &LimitError{Resource: "event size", Limit: uint64(m.limits.MaxEventBytes), Got: uint64(size)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events >= m.limits.MaxEvents {
		return &LimitError{Resource: "events", Limit: uint64(m.limits.MaxEvents), Got: uint64(m.events) + 1}
	}
	m.events++
	return nil
}

// StorageOps 已使用的存储操作次数
func (m *Meter) StorageOps() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storageOps
}

// Events 已发出的事件数
func (m *Meter) Events() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

// CheckCodeSize 检查合约代码大小
func (l Limits) CheckCodeSize(size int) error {
	if uint64(size) > uint64(l.MaxCodeSize) {
		return &LimitError{Resource: "code size", Limit: uint64(l.MaxCodeSize), Got: uint64(size)}
	}
	return nil
}
