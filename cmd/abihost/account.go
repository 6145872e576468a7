package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/govm-net/abihost/core"
)

var fundCmd = &cobra.Command{
	Use:   "fund <address> <amount>",
	Short: "Credit native units to an address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := core.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}

		engine, err := openEngine(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		if err := engine.Fund(addr, amount); err != nil {
			return err
		}
		bal, err := engine.Balance(addr)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Balance of %s is %d\n", addr, bal)
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show the balance of an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := core.ParseAddress(args[0])
		if err != nil {
			return err
		}

		engine, err := openEngine(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		bal, err := engine.Balance(addr)
		if err != nil {
			return err
		}
		fmt.Println(bal)
		return nil
	},
}

var heightCmd = &cobra.Command{
	Use:   "height [new-height]",
	Short: "Show the block height, or advance it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		if len(args) == 1 {
			height, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid height: %w", err)
			}
			if err := engine.AdvanceBlock(height); err != nil {
				return err
			}
		}
		height, err := engine.BlockHeight()
		if err != nil {
			return err
		}
		fmt.Println(height)
		return nil
	},
}
