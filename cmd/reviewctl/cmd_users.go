package main

import (
	"fmt"
	"strconv"

	"github.com/rpggio/casereview/internal/domain/credential"
	"github.com/rpggio/casereview/internal/sheet"
	"github.com/spf13/cobra"
)

func newUsersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage reviewer accounts",
	}

	var (
		password string
		admin    bool
	)
	addCmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.Users.Create(cmd.Context(), credential.CreateRequest{
				Username: args[0],
				Password: password,
				IsAdmin:  admin,
			})
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s\n", user.Username)
			return nil
		},
	}
	addCmd.Flags().StringVar(&password, "password", "", "Account password (required)")
	addCmd.Flags().BoolVar(&admin, "admin", false, "Grant admin rights")
	_ = addCmd.MarkFlagRequired("password")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.Users.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{u.Username, strconv.FormatBool(u.IsAdmin)})
			}
			return printer{w: cmd.OutOrStdout(), format: opts.output}.print(users, []string{"USERNAME", "ADMIN"}, rows)
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <users.xlsx>",
		Short: "Import accounts from a spreadsheet with username, password and optional is_admin columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, hasAdmin, err := sheet.ReadTable(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Users.Import(cmd.Context(), rows, hasAdmin)
			if err != nil {
				return fmt.Errorf("failed to import users: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d users\n", n, len(rows))
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd, importCmd)
	return cmd
}
