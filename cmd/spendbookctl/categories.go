package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"spendbook/internal/core"
	"spendbook/internal/store"
)

func (a *app) categoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"categories", "cat"},
		Short:   "Manage expense categories",
	}
	cmd.AddCommand(a.categoryListCmd())
	cmd.AddCommand(a.categoryAddCmd())
	cmd.AddCommand(a.categoryUpdateCmd())
	cmd.AddCommand(a.categoryDeleteCmd())
	return cmd
}

func (a *app) categoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				cats := st.Categories()
				if a.asJSON {
					return writeJSON(cmd.OutOrStdout(), cats)
				}
				return printCategories(cmd.OutOrStdout(), cats)
			})
		},
	}
}

func (a *app) categoryAddCmd() *cobra.Command {
	var in core.CategoryInput
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = strings.TrimSpace(args[0])
			if err := in.Validate(); err != nil {
				return err
			}
			return a.withStore(cmd, func(st *store.Store) error {
				c, err := st.AddCategory(cmd.Context(), in)
				if err != nil {
					return err
				}
				return a.printCategory(cmd, "Created", c)
			})
		},
	}
	cmd.Flags().StringVar(&in.Color, "color", "", "hex color, e.g. #FF6B6B")
	cmd.Flags().StringVar(&in.Icon, "icon", "", "emoji or short icon name")
	return cmd
}

func (a *app) categoryUpdateCmd() *cobra.Command {
	var name, color, icon string
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a category's name, color or icon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.CategoryPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("color") {
				patch.Color = &color
			}
			if cmd.Flags().Changed("icon") {
				patch.Icon = &icon
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update: pass --name, --color or --icon")
			}
			if err := patch.Validate(); err != nil {
				return err
			}
			return a.withStore(cmd, func(st *store.Store) error {
				c, err := st.UpdateCategory(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				return a.printCategory(cmd, "Updated", c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&color, "color", "", "new hex color")
	cmd.Flags().StringVar(&icon, "icon", "", "new icon")
	return cmd
}

func (a *app) categoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a category and remove it from every expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(st *store.Store) error {
				if err := st.DeleteCategory(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) printCategory(cmd *cobra.Command, verb string, c core.Category) error {
	if a.asJSON {
		return writeJSON(cmd.OutOrStdout(), c)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s category %s (%s)\n", verb, c.ID, c.Name)
	return err
}
