package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/curator/internal/database"
)

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			deps, err := commandDeps()
			if err != nil {
				return err
			}
			db, err := database.New(deps.Config.Database, deps.Logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.MigrateUp(db.DB, deps.Config.Database.MigrationsPath, deps.Logger)
		},
	})

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			deps, err := commandDeps()
			if err != nil {
				return err
			}
			db, err := database.New(deps.Config.Database, deps.Logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.MigrateDown(db.DB, deps.Config.Database.MigrationsPath, steps, deps.Logger)
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(downCmd)

	return migrateCmd
}
