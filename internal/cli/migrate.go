package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cmt-backend/internal/config"
	"cmt-backend/internal/storage/mysql"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			storage, err := mysql.New(*cfg)
			if err != nil {
				return err
			}
			defer storage.Close()

			if err := storage.Migrate(); err != nil {
				return err
			}

			version, err := storage.MigrationVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database %s at version %d\n", cfg.DBName, version)
			return nil
		},
	}
}
