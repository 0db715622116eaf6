package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/config"
	"github.com/onnwee/chatbot/store"
	"github.com/onnwee/chatbot/twitchapi"
)

func adminsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admins",
		Short: "Manage the admins of a chat source",
		Long: `List, add and remove admins of one source. Owners come from
DISCORD_OWNERS / TWITCH_OWNERS and are listed but cannot be changed here.`,
	}
	cmd.PersistentFlags().String("source", string(command.Discord), "chat source: discord or twitch")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List owners and admins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := sourceFlag(cmd)
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, cfg *config.Config, st store.Store) error {
				ids, err := st.ListAdmins(ctx, src)
				if err != nil {
					return fmt.Errorf("failed to list admins: %w", err)
				}
				out := cmd.OutOrStdout()
				owners := slices.Clone(cfg.Owners(src))
				slices.Sort(owners)
				for _, id := range owners {
					fmt.Fprintf(out, "%s %s\n", color.New(color.FgMagenta).Sprint("owner"), id)
				}
				if len(ids) == 0 {
					fmt.Fprintf(out, "No admins on %s\n", src)
					return nil
				}
				for _, id := range ids {
					fmt.Fprintf(out, "%s %s\n", color.New(color.FgBlue).Sprint("admin"), id)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add [user-id]",
		Short: "Grant admin rights to a user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFlag(cmd)
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, cfg *config.Config, st store.Store) error {
				id, err := resolveUser(ctx, cfg, src, args[0])
				if err != nil {
					return err
				}
				added, err := st.AddAdmin(ctx, src, id)
				if err != nil {
					return fmt.Errorf("failed to add admin: %w", err)
				}
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s is already an admin on %s\n",
						color.New(color.FgYellow).Sprint("!"), id, src)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now an admin on %s\n",
					color.New(color.FgGreen).Sprint("✓"), id, src)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove [user-id]",
		Aliases: []string{"rm"},
		Short:   "Revoke admin rights",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceFlag(cmd)
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, cfg *config.Config, st store.Store) error {
				id, err := resolveUser(ctx, cfg, src, args[0])
				if err != nil {
					return err
				}
				if err := st.RemoveAdmin(ctx, src, id); err != nil {
					return fmt.Errorf("failed to remove admin %s on %s: %w", id, src, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is no longer an admin on %s\n",
					color.New(color.FgGreen).Sprint("✓"), id, src)
				return nil
			})
		},
	})
	return cmd
}

// resolveUser validates a user id. On Twitch a login is looked up through
// Helix when app credentials are configured.
func resolveUser(ctx context.Context, cfg *config.Config, src command.Source, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	err := command.ValidateUserID(src, id)
	if err == nil || src != command.Twitch || cfg.Twitch.ClientID == "" || cfg.Twitch.ClientSecret == "" {
		return id, err
	}
	hc, herr := twitchapi.NewHelixClient(ctx, twitchapi.Config{
		ClientID:     cfg.Twitch.ClientID,
		ClientSecret: cfg.Twitch.ClientSecret,
		TokenURL:     cfg.Twitch.TokenURL,
		HelixURL:     cfg.Twitch.HelixURL,
	})
	if herr != nil {
		return "", herr
	}
	resolved, herr := hc.GetUserID(ctx, id)
	if herr != nil {
		return "", fmt.Errorf("resolve twitch login %q: %w", id, herr)
	}
	slog.Debug("resolved twitch login", slog.String("login", id), slog.String("user_id", resolved))
	return resolved, nil
}
