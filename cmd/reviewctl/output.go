package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// printer renders command results in the selected format. Table output uses
// headers and rows; json and yaml encode data.
type printer struct {
	w      io.Writer
	format string
}

func (p printer) print(data any, headers []string, rows [][]string) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case formatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case formatTable, "":
		if len(rows) == 0 {
			_, err := fmt.Fprintln(p.w, "(none)")
			return err
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(headers...).
			Rows(rows...)
		_, err := fmt.Fprintln(p.w, t.String())
		return err
	default:
		return fmt.Errorf("unknown output format %q", p.format)
	}
}
