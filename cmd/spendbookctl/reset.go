package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"spendbook/internal/store"
)

func (a *app) resetCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all expenses and restore the default categories",
		Long: `Reset removes every expense and every custom category, leaving only the
five default categories.

This is a destructive operation and cannot be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				if !force {
					fmt.Fprintf(cmd.OutOrStdout(), "This will delete %d expenses and %d categories. Type 'yes' to continue: ",
						len(st.Expenses()), len(st.Categories()))
					answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
					if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
						fmt.Fprintln(cmd.OutOrStdout(), "Reset cancelled.")
						return nil
					}
				}
				if err := st.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Data reset to defaults.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}
