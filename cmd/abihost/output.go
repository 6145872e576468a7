package main

import (
	"strconv"

	"github.com/pterm/pterm"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/govm-net/abihost/types"
)

var title = cases.Title(language.English)

// renderTable prints rows under title-cased headers.
func renderTable(headers []string, rows [][]string) error {
	header := make([]string, len(headers))
	for i, h := range headers {
		header[i] = title.String(h)
	}
	data := append(pterm.TableData{header}, rows...)
	return pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
}

// renderKV prints a two-column table without header.
func renderKV(pairs [][2]string) error {
	data := make(pterm.TableData, len(pairs))
	for i, p := range pairs {
		data[i] = []string{title.String(p[0]), p[1]}
	}
	return pterm.DefaultTable.WithHasHeader(false).WithData(data).Render()
}

func renderResult(res *types.Result) error {
	pairs := [][2]string{
		{"invocation", res.ID},
		{"contract", res.Contract.String()},
		{"entry point", res.EntryPoint},
		{"block height", strconv.FormatUint(res.BlockHeight, 10)},
		{"phase", string(res.Phase)},
		{"value", strconv.FormatUint(res.Value, 10)},
		{"storage ops", strconv.FormatUint(uint64(res.StorageOps), 10)},
		{"events", strconv.Itoa(len(res.Events))},
	}
	if res.ReadOnly {
		pairs = append(pairs, [2]string{"read only", "true"})
	}
	if res.Error != "" {
		pairs = append(pairs, [2]string{"error", res.Error})
	}
	return renderKV(pairs)
}
