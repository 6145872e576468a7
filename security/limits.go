// Package security 提供合约执行的资源限制
package security

import (
	"fmt"
	"math"
	"time"

	"github.com/govm-net/abihost/core"
)

// Limits 单次调用的资源上限
type Limits struct {
	MaxStorageOps    uint32        `yaml:"max_storage_ops"`
	MaxEvents        uint32        `yaml:"max_events"`
	MaxEventBytes    uint32        `yaml:"max_event_bytes"`
	MaxKeySize       uint32        `yaml:"max_key_size"`
	MaxValueSize     uint32        `yaml:"max_value_size"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	// MemoryPages 原生合约的线性内存页数
	MemoryPages uint32 `yaml:"memory_pages"`
	// MaxMemoryPages wasm 模块可增长到的最大页数
	MaxMemoryPages uint32 `yaml:"max_memory_pages"`
	MaxCodeSize    uint32 `yaml:"max_code_size"`
	// 每个区块高度内允许的调用和部署次数，0 表示不限制
	MaxCallsPerBlock   uint32 `yaml:"max_calls_per_block"`
	MaxDeploysPerBlock uint32 `yaml:"max_deploys_per_block"`
}

// DefaultLimits 返回默认资源限制
func DefaultLimits() Limits {
	return Limits{
		MaxStorageOps:    1000,
		MaxEvents:        64,
		MaxEventBytes:    4096,
		MaxKeySize:       256,
		MaxValueSize:     64 * 1024,
		MaxExecutionTime: 5 * time.Second,
		MemoryPages:      1,
		MaxMemoryPages:   256,
		MaxCodeSize:      4 * 1024 * 1024,

		MaxCallsPerBlock:   1000,
		MaxDeploysPerBlock: 10,
	}
}

// Validate 检查限制是否可用
func (l Limits) Validate() error {
	switch {
	case l.MaxStorageOps == 0:
		return fmt.Errorf("max_storage_ops must be positive")
	case l.MaxKeySize == 0:
		return fmt.Errorf("max_key_size must be positive")
	case l.MaxValueSize == 0:
		return fmt.Errorf("max_value_size must be positive")
	case l.MaxValueSize > math.MaxInt32:
		// storage_read 以 i32 返回值长度
		return fmt.Errorf("max_value_size (%d) exceeds %d", l.MaxValueSize, math.MaxInt32)
	case l.MaxExecutionTime <= 0:
		return fmt.Errorf("max_execution_time must be positive")
	case l.MemoryPages == 0:
		return fmt.Errorf("memory_pages must be positive")
	case l.MaxMemoryPages < l.MemoryPages:
		return fmt.Errorf("max_memory_pages (%d) is below memory_pages (%d)", l.MaxMemoryPages, l.MemoryPages)
	case l.MaxMemoryPages > 65536:
		return fmt.Errorf("max_memory_pages (%d) exceeds the wasm32 limit", l.MaxMemoryPages)
	case l.MaxCodeSize == 0:
		return fmt.Errorf("max_code_size must be positive")
	}
	return nil
}

// LimitError 超出资源限制
type LimitError struct {
	Resource string
	Limit    uint64
	Got      uint64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s (limit %d, got %d)", core.ErrResourceLimit, e.Resource, e.Limit, e.Got)
}

func (e *LimitError) Unwrap() error {
	return core.ErrResourceLimit
}
