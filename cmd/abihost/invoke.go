package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/govm-net/abihost/core"
	"github.com/govm-net/abihost/types"
)

var callCaller string

var invokeCmd = &cobra.Command{
	Use:   "invoke <contract> <entry-point> [args...]",
	Short: "Invoke an entry point and commit its effects",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, args, true)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <contract> <entry-point> [args...]",
	Short: "Run an entry point without committing",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, args, false)
	},
}

func init() {
	for _, c := range []*cobra.Command{invokeCmd, queryCmd} {
		c.Flags().StringVar(&callCaller, "caller", core.ZeroAddress.String(), "Caller address")
	}
}

func parseCall(args []string) (types.Call, error) {
	contract, err := core.ParseAddress(args[0])
	if err != nil {
		return types.Call{}, fmt.Errorf("invalid contract: %w", err)
	}
	caller, err := core.ParseAddress(callCaller)
	if err != nil {
		return types.Call{}, fmt.Errorf("invalid caller: %w", err)
	}
	call := types.Call{Contract: contract, Caller: caller, EntryPoint: args[1]}
	for _, s := range args[2:] {
		arg, err := types.ParseArg(s)
		if err != nil {
			return types.Call{}, err
		}
		call.Args = append(call.Args, arg)
	}
	return call, nil
}

func runCall(cmd *cobra.Command, args []string, commit bool) error {
	call, err := parseCall(args)
	if err != nil {
		return err
	}

	engine, err := openEngine(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	var res *types.Result
	if commit {
		res, err = engine.Invoke(cmd.Context(), call)
	} else {
		res, err = engine.Query(cmd.Context(), call)
	}
	if res != nil {
		if rerr := renderResult(res); rerr != nil {
			return rerr
		}
	}
	return err
}
