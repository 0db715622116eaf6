package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onnwee/chatbot/config"
	"github.com/onnwee/chatbot/db"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations, or roll back the latest with --down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			down, _ := cmd.Flags().GetBool("down")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if isMemory(cfg) {
				return fmt.Errorf("migrate needs a SQL backend; DB_BACKEND is memory")
			}
			database, dialect, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if down {
				err = db.MigrateDown(database, dialect)
			} else {
				err = db.RunMigrations(database, dialect)
			}
			if err != nil {
				return err
			}
			version, dirty, err := db.MigrationVersion(database, dialect)
			if err != nil {
				return err
			}
			state := color.New(color.FgGreen).Sprint("clean")
			if dirty {
				state = color.New(color.FgRed).Sprint("DIRTY")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d (%s)\n", dialect, version, state)
			return nil
		},
	}
	cmd.Flags().Bool("down", false, "roll back the most recent migration")
	return cmd
}
