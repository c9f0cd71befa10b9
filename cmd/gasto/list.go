package main

import (
	"fmt"

	"github.com/Veraticus/gasto/internal/cli"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored transactions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, _ := cmd.Flags().GetString("account")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.store.ListTransactions(ctx, account, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				_, _ = fmt.Fprintln(out, cli.FormatInfo("No transactions stored"))
				return nil
			}
			_, _ = fmt.Fprint(out, cli.RenderTransactions(items))
			return nil
		},
	}

	cmd.Flags().String("account", "", "Only show this account")
	cmd.Flags().Int("limit", 50, "Maximum rows to show (0 for all)")

	return cmd
}
