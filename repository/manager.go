// Package repository 按代码哈希保存 wasm 合约代码
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/govm-net/abihost/core"
)

const (
	codeFile     = "code.wasm"
	metadataFile = "metadata.json"
)

// ErrCodeNotFound 代码不存在
var ErrCodeNotFound = errors.New("code not found")

// Manager 代码管理器
type Manager struct {
	rootDir string // 代码根目录
	logger  *zap.Logger
}

// ContractCode 合约代码信息
type ContractCode struct {
	Hash        core.Hash // 代码哈希
	Code        []byte    // wasm 字节码
	EntryPoints []string  // 导出的入口函数
	UpdateTime  time.Time // 最后更新时间
}

// ContractMetadata 合约元数据
type ContractMetadata struct {
	Hash        string    `json:"hash"`         // 代码哈希
	Size        int       `json:"size"`         // 代码大小
	EntryPoints []string  `json:"entry_points"` // 入口函数
	UpdateTime  time.Time `json:"update_time"`  // 更新时间
}

// NewManager 创建代码管理器
func NewManager(rootDir string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// 确保根目录存在
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		logger.Error("failed to create root directory", zap.String("dir", rootDir), zap.Error(err))
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &Manager{
		rootDir: rootDir,
		logger:  logger,
	}, nil
}

// RegisterCode 保存合约代码，相同代码只保存一次
func (m *Manager) RegisterCode(code []byte, entryPoints []string) (core.Hash, error) {
	hash := core.HashBytes(code)
	if m.HasCode(hash) {
		return hash, nil
	}

	dir := m.getCodeDir(hash)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return hash, fmt.Errorf("failed to create code directory: %w", err)
	}

	cc := &ContractCode{
		Hash:        hash,
		Code:        code,
		EntryPoints: entryPoints,
		UpdateTime:  time.Now(),
	}
	if err := m.saveCodeFiles(cc); err != nil {
		// 删除已创建的目录
		os.RemoveAll(dir)
		return hash, fmt.Errorf("failed to save code files: %w", err)
	}
	m.logger.Debug("registered code", zap.Stringer("hash", hash), zap.Int("size", len(code)))
	return hash, nil
}

// HasCode 代码是否存在
func (m *Manager) HasCode(hash core.Hash) bool {
	_, err := os.Stat(filepath.Join(m.getCodeDir(hash), metadataFile))
	return err == nil
}

// GetCode 读取代码并校验哈希
func (m *Manager) GetCode(hash core.Hash) (*ContractCode, error) {
	dir := m.getCodeDir(hash)

	code, err := os.ReadFile(filepath.Join(dir, codeFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read code: %w", err)
	}
	if core.HashBytes(code) != hash {
		return nil, fmt.Errorf("code hash mismatch for %s", hash)
	}

	metadata, err := m.readMetadata(dir)
	if err != nil {
		return nil, err
	}
	return &ContractCode{
		Hash:        hash,
		Code:        code,
		EntryPoints: metadata.EntryPoints,
		UpdateTime:  metadata.UpdateTime,
	}, nil
}

// List 列出所有代码的元数据
func (m *Manager) List() ([]ContractMetadata, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}
	var out []ContractMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metadata, err := m.readMetadata(filepath.Join(m.rootDir, entry.Name()))
		if err != nil {
			m.logger.Warn("skipping code directory", zap.String("dir", entry.Name()), zap.Error(err))
			continue
		}
		out = append(out, *metadata)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}

// getCodeDir 获取代码目录路径
func (m *Manager) getCodeDir(hash core.Hash) string {
	return filepath.Join(m.rootDir, hash.String())
}

// saveCodeFiles 保存代码和元数据
func (m *Manager) saveCodeFiles(cc *ContractCode) error {
	dir := m.getCodeDir(cc.Hash)

	if err := os.WriteFile(filepath.Join(dir, codeFile), cc.Code, 0644); err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}

	metadata := ContractMetadata{
		Hash:        cc.Hash.String(),
		Size:        len(cc.Code),
		EntryPoints: cc.EntryPoints,
		UpdateTime:  cc.UpdateTime,
	}
	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// 元数据最后写入，HasCode 以它为准
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metadataBytes, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

func (m *Manager) readMetadata(dir string) (*ContractMetadata, error) {
	metadataBytes, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var metadata ContractMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &metadata, nil
}
