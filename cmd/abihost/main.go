package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/govm-net/abihost/config"
	_ "github.com/govm-net/abihost/contracts/counter"
	_ "github.com/govm-net/abihost/contracts/vesting"
	"github.com/govm-net/abihost/logging"
	"github.com/govm-net/abihost/metrics"
	"github.com/govm-net/abihost/state"
	_ "github.com/govm-net/abihost/state/badger"
	_ "github.com/govm-net/abihost/state/cmtdb"
	_ "github.com/govm-net/abihost/state/sqlite"
	"github.com/govm-net/abihost/vm"
)

var (
	configPath string
	dataDir    string
	backend    string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "abihost",
	Short: "Contract host command line tool",
	Long: `Contract host command line tool for deploying native programs and
WebAssembly modules, invoking their entry points and inspecting state.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.Load(configPath)
		} else {
			cfg = config.Default()
		}
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.Storage.DataDir = dataDir
		}
		if backend != "" {
			cfg.Storage.Backend = state.BackendType(backend)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		logger, err = logging.New(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory, overrides storage.data_dir")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "State backend, overrides storage.backend")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(fundCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(heightCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(serveCmd)
}

// openEngine opens the configured backend and builds an engine over it.
func openEngine(ctx context.Context, m *metrics.Metrics) (*vm.Engine, error) {
	kv, err := state.Open(cfg.Storage.Backend, state.Options{
		Dir:      cfg.StateDir(),
		InMemory: cfg.Storage.Backend == state.MemDBBackend,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}

	engine, err := vm.NewEngine(ctx, kv, vm.Config{
		Limits:    cfg.Limits,
		CodeDir:   cfg.CodeDir(),
		CacheSize: cfg.Wasm.CacheSize,
	}, vm.WithLogger(logger), vm.WithMetrics(m))
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to create VM engine: %w", err)
	}
	return engine, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
