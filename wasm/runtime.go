// Package wasm 使用 wazero 执行 WebAssembly 合约
package wasm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/host"
	"github.com/govm-net/abihost/types"
)

// AllocateExport 合约导出的内存分配函数，用于写入指针参数
const AllocateExport = "allocate"

// 不作为入口函数暴露的导出
var reservedExports = map[string]struct{}{
	AllocateExport: {},
	"deallocate":   {},
	"_start":       {},
	"_initialize":  {},
}

// Config wasm 运行时配置
type Config struct {
	MaxMemoryPages uint32
	CacheSize      int
}

// Runtime 共享的 wazero 运行时，env 模块只实例化一次
type Runtime struct {
	runtime wazero.Runtime
	env     map[string]api.FunctionDefinition
	cache   *lru.Cache[core.Hash, *Program]
	logger  *zap.Logger
}

// NewRuntime 创建运行时并注册 env 宿主模块
func NewRuntime(ctx context.Context, cfg Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 64
	}
	rcfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MaxMemoryPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MaxMemoryPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rcfg)

	env, err := host.NewModule(r).Instantiate(ctx)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate env module: %w", err)
	}

	cache, err := lru.New[core.Hash, *Program](cfg.CacheSize)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to create module cache: %w", err)
	}
	return &Runtime{runtime: r, env: env.ExportedFunctionDefinitions(), cache: cache, logger: logger}, nil
}

// Compile 编译并校验合约代码。相同代码只编译一次
func (r *Runtime) Compile(ctx context.Context, code []byte) (*Program, error) {
	hash := core.HashBytes(code)
	if p, ok := r.cache.Get(hash); ok {
		return p, nil
	}

	compiled, err := r.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile WebAssembly module: %w", err)
	}
	p, err := newProgram(r, hash, compiled)
	if err != nil {
		compiled.Close(ctx)
		return nil, err
	}
	r.cache.Add(hash, p)
	r.logger.Debug("compiled wasm module", zap.Stringer("hash", hash), zap.Strings("entry_points", p.EntryPoints()))
	return p, nil
}

// Cached 按代码哈希查找已编译的模块
func (r *Runtime) Cached(hash core.Hash) (*Program, bool) {
	return r.cache.Get(hash)
}

// Close 关闭运行时以及所有已编译模块
func (r *Runtime) Close(ctx context.Context) error {
	r.cache.Purge()
	return r.runtime.Close(ctx)
}

// Program 已编译的合约
type Program struct {
	runtime  *Runtime
	hash     core.Hash
	compiled wazero.CompiledModule
	entries  map[string]api.FunctionDefinition
}

func newProgram(r *Runtime, hash core.Hash, compiled wazero.CompiledModule) (*Program, error) {
	// 只允许导入 env 中的宿主函数，且签名必须一致
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		want, ok := r.env[name]
		if module != types.HostModule || !ok {
			return nil, fmt.Errorf("unsupported import %s.%s", module, name)
		}
		if !slices.Equal(def.ParamTypes(), want.ParamTypes()) || !slices.Equal(def.ResultTypes(), want.ResultTypes()) {
			return nil, fmt.Errorf("import %s.%s has signature %s, want %s", module, name, Signature(def), Signature(want))
		}
	}

	entries := make(map[string]api.FunctionDefinition)
	for name, def := range compiled.ExportedFunctions() {
		if _, reserved := reservedExports[name]; reserved {
			continue
		}
		if len(def.ResultTypes()) > 1 {
			return nil, fmt.Errorf("entry point %s returns %d values", name, len(def.ResultTypes()))
		}
		entries[name] = def
	}
	if len(entries) == 0 {
		return nil, errors.New("module exports no entry points")
	}
	return &Program{runtime: r, hash: hash, compiled: compiled, entries: entries}, nil
}

// Signature 以 (i32, i64) -> (i32) 的形式描述函数签名
func Signature(def api.FunctionDefinition) string {
	names := func(ts []api.ValueType) string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = api.ValueTypeName(t)
		}
		return strings.Join(out, ", ")
	}
	return fmt.Sprintf("(%s) -> (%s)", names(def.ParamTypes()), names(def.ResultTypes()))
}

// Hash 代码哈希
func (p *Program) Hash() core.Hash {
	return p.hash
}

// EntryPoints 导出的入口函数
func (p *Program) EntryPoints() []string {
	names := make([]string, 0, len(p.entries))
	for name := range p.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Arity 入口函数参数个数
func (p *Program) Arity(entry string) (int, bool) {
	def, ok := p.entries[entry]
	if !ok {
		return 0, false
	}
	return len(def.ParamTypes()), true
}

// Instantiate 为一次调用创建新的模块实例
func (p *Program) Instantiate(ctx context.Context, s host.Surface) (*Instance, error) {
	ctx = host.WithSurface(ctx, s)
	cfg := wazero.NewModuleConfig().WithName("").WithStartFunctions("_initialize")
	mod, err := p.runtime.runtime.InstantiateModule(ctx, p.compiled, cfg)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to instantiate module: %w", err))
	}
	return &Instance{program: p, module: mod, surface: s}, nil
}

// classify maps a wazero error to the fault taxonomy in core.
func classify(err error) error {
	if err == nil || core.IsFatal(err) {
		return err
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case sys.ExitCodeContextCanceled, sys.ExitCodeDeadlineExceeded:
			return fmt.Errorf("%w: %v", core.ErrAborted, err)
		}
		return fmt.Errorf("%w: %v", core.ErrTrap, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "out of bounds memory access"):
		return fmt.Errorf("%w: %v", core.ErrOutOfBoundsAccess, err)
	case strings.Contains(msg, "integer overflow"):
		return fmt.Errorf("%w: %v", core.ErrArithmeticOverflow, err)
	}
	return fmt.Errorf("%w: %v", core.ErrTrap, err)
}
