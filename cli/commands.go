package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/config"
	"github.com/onnwee/chatbot/store"
)

func commandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmd"},
		Short:   "Manage the custom commands of a chat source",
	}
	cmd.PersistentFlags().String("source", string(command.Discord), "chat source: discord or twitch")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List custom commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := sourceFlag(cmd)
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, _ *config.Config, st store.Store) error {
				cmds, err := store.CollectCommands(st.ListCommands(ctx, src))
				if err != nil {
					return fmt.Errorf("failed to list commands: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(cmds) == 0 {
					fmt.Fprintf(out, "No custom commands on %s\n", src)
					return nil
				}
				fmt.Fprintf(out, "Found %d custom command(s) on %s:\n\n", len(cmds), src)
				for _, c := range cmds {
					fmt.Fprintf(out, "%-20s %s\n", color.New(color.FgCyan).Sprint(c.Name), c.Content)
				}
				return nil
			})
		},
	})

	upsert := func(use, short string, create bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " [name] [content...]",
			Short: short,
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				src, err := sourceFlag(cmd)
				if err != nil {
					return err
				}
				name := command.NormalizeName(args[0])
				content := strings.Join(args[1:], " ")
				return withStore(cmd, func(ctx context.Context, _ *config.Config, st store.Store) error {
					verb := "Updated"
					if create {
						verb = "Added"
						err = st.CreateCommand(ctx, src, name, content)
					} else {
						err = st.UpdateCommand(ctx, src, name, content)
					}
					if err != nil {
						return fmt.Errorf("failed to save %s on %s: %w", name, src, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s on %s\n", color.New(color.FgGreen).Sprint("✓"), verb, name, src)
					return nil
				})
			},
		}
	}
	cmd.AddCommand(upsert("add", "Create a custom command", true))
	cmd.AddCommand(upsert("edit", "Replace the content of a custom command", false))

	cmd.AddCommand(&cobra.Command{
		Use:     "remove [name]",
		Aliases: []string{"rm"},
		Short:   "Delete a custom command",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFlag(cmd)
			if err != nil {
				return err
			}
			name := command.NormalizeName(args[0])
			return withStore(cmd, func(ctx context.Context, _ *config.Config, st store.Store) error {
				if err := st.DeleteCommand(ctx, src, name); err != nil {
					if errors.Is(err, command.ErrNotFound) {
						return fmt.Errorf("no custom command %s on %s", name, src)
					}
					return fmt.Errorf("failed to remove %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s from %s\n", color.New(color.FgGreen).Sprint("✓"), name, src)
				return nil
			})
		},
	})
	return cmd
}
