package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/repository"
	"github.com/govm-net/abihost/types"
	"github.com/govm-net/abihost/wasm"
)

var (
	inspectFile string
	listCode    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [contract]",
	Short: "Show a deployed contract or the exports and imports of a module file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if inspectFile != "" {
			return inspectModule(cmd.Context(), inspectFile)
		}
		if len(args) != 1 {
			return errors.New("a contract address or --file is required")
		}
		addr, err := core.ParseAddress(args[0])
		if err != nil {
			return err
		}

		engine, err := openEngine(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		info, err := engine.Contract(addr)
		if err != nil {
			return err
		}
		entries, err := engine.EntryPoints(cmd.Context(), addr)
		if err != nil {
			return err
		}
		bal, err := engine.Balance(addr)
		if err != nil {
			return err
		}

		pairs := [][2]string{
			{"address", info.Address.String()},
			{"creator", info.Creator.String()},
			{"kind", string(info.Kind)},
		}
		if info.Kind == types.KindNative {
			pairs = append(pairs, [2]string{"program", info.Program})
		} else {
			pairs = append(pairs, [2]string{"code hash", info.CodeHash.String()})
		}
		pairs = append(pairs,
			[2]string{"deploy height", strconv.FormatUint(info.DeployHeight, 10)},
			[2]string{"balance", strconv.FormatUint(bal, 10)},
			[2]string{"entry points", strings.Join(entries, ", ")},
		)
		return renderKV(pairs)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployed contracts, or the stored wasm modules with --code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listCode {
			return listModules()
		}
		engine, err := openEngine(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		contracts, err := engine.Contracts()
		if err != nil {
			return err
		}
		if len(contracts) == 0 {
			pterm.Info.Println("No contracts")
			return nil
		}
		rows := make([][]string, 0, len(contracts))
		for _, c := range contracts {
			program := c.Program
			if c.Kind == types.KindWasm {
				program = c.CodeHash.String()
			}
			rows = append(rows, []string{c.Address.String(), string(c.Kind), program, strconv.FormatUint(c.DeployHeight, 10)})
		}
		return renderTable([]string{"address", "kind", "program", "deploy height"}, rows)
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFile, "file", "f", "", "WebAssembly module file to inspect without deploying")
	listCmd.Flags().BoolVar(&listCode, "code", false, "List the code repository instead of contracts")
}

// listModules prints the code repository without opening the state backend.
func listModules() error {
	code, err := repository.NewManager(cfg.CodeDir(), logger.Named("repository"))
	if err != nil {
		return err
	}
	modules, err := code.List()
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		pterm.Info.Println("No stored modules")
		return nil
	}
	rows := make([][]string, 0, len(modules))
	for _, m := range modules {
		rows = append(rows, []string{m.Hash, strconv.Itoa(m.Size), strings.Join(m.EntryPoints, ", "), m.UpdateTime.Format(time.RFC3339)})
	}
	return renderTable([]string{"code hash", "size", "entry points", "stored"}, rows)
}

// inspectModule prints the exported and imported functions of a wasm file.
func inspectModule(ctx context.Context, path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read module: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	compiled, err := r.CompileModule(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to compile module: %w", err)
	}

	exports := compiled.ExportedFunctions()
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{"export", "", name, wasm.Signature(exports[name])})
	}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		rows = append(rows, []string{"import", module, name, wasm.Signature(def)})
	}
	for name := range compiled.ExportedMemories() {
		rows = append(rows, []string{"export", "", name, "memory"})
	}

	pterm.Info.Printf("%s: %s\n", path, core.HashBytes(code))
	return renderTable([]string{"direction", "module", "name", "signature"}, rows)
}
