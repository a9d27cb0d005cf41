package main

import (
	"github.com/TimeWtr/notify_scheduler"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Args:  cobra.NoArgs,
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				_ = closeDB(db)
			}()

			a.logger.Info("database migrated",
				notify_scheduler.String("driver", a.cfg.Database.Driver))
			return nil
		},
	}
}
