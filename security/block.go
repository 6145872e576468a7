package security

import "sync"

// BlockLimiter 统计同一区块高度内的调用和部署次数，高度变化时计数清零
type BlockLimiter struct {
	limits Limits

	mu      sync.Mutex
	height  uint64
	calls   uint32
	deploys uint32
}

// NewBlockLimiter 创建区块限制器
func NewBlockLimiter(limits Limits) *BlockLimiter {
	return &BlockLimiter{limits: limits}
}

// Call 记录一次高度为 height 的调用
func (b *BlockLimiter) Call(height uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover(height)
	if b.limits.MaxCallsPerBlock > 0 && b.calls >= b.limits.MaxCallsPerBlock {
		return &LimitError{Resource: "calls per block", Limit: uint64(b.limits.MaxCallsPerBlock), Got: uint64(b.calls) + 1}
	}
	b.calls++
	return nil
}

// Deploy 记录一次高度为 height 的部署
func (b *BlockLimiter) Deploy(height uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover(height)
	if b.limits.MaxDeploysPerBlock > 0 && b.deploys >= b.limits.MaxDeploysPerBlock {
		return &LimitError{Resource: "deploys per block", Limit: uint64(b.limits.MaxDeploysPerBlock), Got: uint64(b.deploys) + 1}
	}
	b.deploys++
	return nil
}

// Usage 返回当前高度已记录的调用和部署次数
func (b *BlockLimiter) Usage() (height uint64, calls, deploys uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.height, b.calls, b.deploys
}

func (b *BlockLimiter) rollover(height uint64) {
	if height != b.height {
		b.height = height
		b.calls = 0
		b.deploys = 0
	}
}
