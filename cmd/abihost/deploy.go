package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/types"
)

var (
	deployCreator string
	deployProgram string
	deployFile    string
	deployInit    []string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a contract",
	Long: `Deploy a native program by name or a WebAssembly module from a file.
Constructor arguments are decimal numbers or 0x-prefixed hex bytes.
Example: abihost deploy --creator 0x01.. --program vesting --init 0xbe.. --init 100 --init 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		creator, err := core.ParseAddress(deployCreator)
		if err != nil {
			return fmt.Errorf("invalid creator: %w", err)
		}

		req := types.DeployRequest{Creator: creator}
		switch {
		case deployProgram != "" && deployFile != "":
			return errors.New("--program and --file are mutually exclusive")
		case deployProgram != "":
			req.Kind = types.KindNative
			req.Program = deployProgram
		case deployFile != "":
			code, err := os.ReadFile(deployFile)
			if err != nil {
				return fmt.Errorf("failed to read code file: %w", err)
			}
			req.Kind = types.KindWasm
			req.Code = code
		default:
			return errors.New("one of --program or --file is required")
		}

		// init runs only when at least one --init is given
		if cmd.Flags().Changed("init") {
			req.InitArgs = []types.Arg{}
			for _, s := range deployInit {
				arg, err := types.ParseArg(s)
				if err != nil {
					return err
				}
				req.InitArgs = append(req.InitArgs, arg)
			}
		}

		engine, err := openEngine(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		addr, err := engine.Deploy(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to deploy contract: %w", err)
		}
		pterm.Success.Println("Contract deployed")
		return renderKV([][2]string{
			{"address", addr.String()},
			{"kind", string(req.Kind)},
		})
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployCreator, "creator", "", "Creator address (required)")
	deployCmd.Flags().StringVarP(&deployProgram, "program", "p", "", "Native program name")
	deployCmd.Flags().StringVarP(&deployFile, "file", "f", "", "WebAssembly module file")
	deployCmd.Flags().StringArrayVar(&deployInit, "init", nil, "Constructor argument, repeatable")
	deployCmd.MarkFlagRequired("creator")
}
