package main

import (
	"github.com/TimeWtr/notify_scheduler"
	"github.com/TimeWtr/notify_scheduler/repository"
	"github.com/TimeWtr/notify_scheduler/repository/dao"
	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Args:  cobra.NoArgs,
		Short: "Insert demo users, notifications and default cron jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				_ = closeDB(db)
			}()

			seeder := repository.NewSeeder(
				repository.NewCronJobRepository(dao.NewCronJobDAO(db)),
				repository.NewNotificationRepository(dao.NewNotificationDAO(db)),
				repository.NewUserRepository(dao.NewUserDAO(db)),
			)
			summary, err := seeder.Run(cmd.Context())
			if err != nil {
				return err
			}

			a.logger.Info("seed completed",
				notify_scheduler.Int("users", summary.Users),
				notify_scheduler.Int("notifications", summary.Notifications),
				notify_scheduler.Int("cron_jobs", summary.CronJobs),
				notify_scheduler.Any("skipped", summary.Skipped))
			return nil
		},
	}
}
