package main

import (
	"encoding/hex"
	"strconv"
	"unicode/utf8"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/govm-net/abihost/core"
)

var eventsCmd = &cobra.Command{
	Use:   "events <contract>",
	Short: "List the committed events of a contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := core.ParseAddress(args[0])
		if err != nil {
			return err
		}

		engine, err := openEngine(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		events, err := engine.Events(contract)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			pterm.Info.Println("No events")
			return nil
		}

		rows := make([][]string, 0, len(events))
		for _, ev := range events {
			rows = append(rows, []string{
				strconv.FormatUint(ev.Sequence, 10),
				strconv.FormatUint(ev.BlockHeight, 10),
				ev.InvocationID,
				payloadString(ev.Payload),
			})
		}
		return renderTable([]string{"sequence", "block height", "invocation", "payload"}, rows)
	},
}

// payloadString shows text payloads as is and anything else as hex.
func payloadString(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	return "0x" + hex.EncodeToString(p)
}
