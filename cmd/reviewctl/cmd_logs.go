package main

import (
	"fmt"
	"os"

	"github.com/rpggio/casereview/internal/domain/audit"
	"github.com/rpggio/casereview/internal/sheet"
	"github.com/spf13/cobra"
)

type eventRecord struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Username  string `json:"username" yaml:"username"`
	Action    string `json:"action" yaml:"action"`
	Case      string `json:"case,omitempty" yaml:"case,omitempty"`
	Series    string `json:"series,omitempty" yaml:"series,omitempty"`
	Details   string `json:"details,omitempty" yaml:"details,omitempty"`
}

func newLogsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read audit logs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit log keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			keys, err := a.Audit.Keys(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list logs: %w", err)
			}
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{k})
			}
			return printer{w: cmd.OutOrStdout(), format: opts.output}.print(keys, []string{"LOG"}, rows)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Print the events of one audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.Audit.ReadAll(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to read log %s: %w", args[0], err)
			}
			records := make([]eventRecord, 0, len(events))
			rows := make([][]string, 0, len(events))
			for _, e := range events {
				r := toEventRecord(e)
				records = append(records, r)
				rows = append(rows, []string{r.Timestamp, r.Username, r.Action, r.Case, r.Series, r.Details})
			}
			return printer{w: cmd.OutOrStdout(), format: opts.output}.print(records, audit.Columns, rows)
		},
	}

	var out string
	exportCmd := &cobra.Command{
		Use:   "export <key>",
		Short: "Write one audit log as an .xlsx spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.Audit.ReadAll(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to read log %s: %w", args[0], err)
			}
			path := out
			if path == "" {
				path = args[0] + "_audit_log.xlsx"
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := sheet.WriteLog(f, events); err != nil {
				_ = f.Close()
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", len(events), path)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&out, "out", "", "Output file (default: <key>_audit_log.xlsx)")

	cmd.AddCommand(listCmd, showCmd, exportCmd)
	return cmd
}

func toEventRecord(e audit.Event) eventRecord {
	return eventRecord{
		Timestamp: e.Timestamp.Format(audit.TimestampLayout),
		Username:  e.Username,
		Action:    string(e.Action),
		Case:      e.Case,
		Series:    e.Series,
		Details:   e.Details,
	}
}
