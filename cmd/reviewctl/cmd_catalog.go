package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

type phaseRecord struct {
	Case   string   `json:"case" yaml:"case"`
	Phase  string   `json:"phase" yaml:"phase"`
	Slices []string `json:"slices" yaml:"slices"`
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the case catalog",
	}

	lsCmd := &cobra.Command{
		Use:   "ls [case]",
		Short: "List cases, or the series and slices of one case",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			p := printer{w: cmd.OutOrStdout(), format: opts.output}
			if len(args) == 0 {
				cases := a.Catalog.ListCases(ctx)
				rows := make([][]string, 0, len(cases))
				for _, c := range cases {
					rows = append(rows, []string{c, strconv.Itoa(len(a.Catalog.ListPhases(ctx, c)))})
				}
				return p.print(cases, []string{"CASE", "SERIES"}, rows)
			}

			caseID := args[0]
			if !a.Catalog.HasCase(ctx, caseID) {
				return fmt.Errorf("case %q not found in %s", caseID, a.Catalog.Root())
			}
			var records []phaseRecord
			var rows [][]string
			for _, phase := range a.Catalog.ListPhases(ctx, caseID) {
				rec := phaseRecord{Case: caseID, Phase: phase, Slices: []string{}}
				for _, s := range a.Catalog.ListSlices(ctx, caseID, phase) {
					rec.Slices = append(rec.Slices, s.Name)
				}
				records = append(records, rec)
				first, last := "", ""
				if n := len(rec.Slices); n > 0 {
					first, last = rec.Slices[0], rec.Slices[n-1]
				}
				rows = append(rows, []string{phase, strconv.Itoa(len(rec.Slices)), first, last})
			}
			return p.print(records, []string{"SERIES", "SLICES", "FIRST", "LAST"}, rows)
		},
	}

	cmd.AddCommand(lsCmd)
	return cmd
}

func newDiagnosesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnoses",
		Short: "Read or clear saved diagnoses",
	}

	listCmd := &cobra.Command{
		Use:   "list <username>",
		Short: "List the diagnoses saved by a reviewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			byCase, err := a.Diagnoses.ListForUser(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list diagnoses: %w", err)
			}
			cases := make([]string, 0, len(byCase))
			for c := range byCase {
				cases = append(cases, c)
			}
			sort.Strings(cases)
			rows := make([][]string, 0, len(cases))
			for _, c := range cases {
				rows = append(rows, []string{c, byCase[c]})
			}
			return printer{w: cmd.OutOrStdout(), format: opts.output}.print(byCase, []string{"CASE", "DIAGNOSIS"}, rows)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <username> <case>",
		Short: "Clear a reviewer's diagnosis so the case shows as not done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Diagnoses.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("failed to delete diagnosis: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted diagnosis of %s for %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(listCmd, deleteCmd)
	return cmd
}
