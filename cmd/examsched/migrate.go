package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cscfi/exam-reservation/internal/config"
	"github.com/cscfi/exam-reservation/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.StorageDriver != config.StorageMySQL {
				return fmt.Errorf("migrate needs STORAGE_DRIVER=%s", config.StorageMySQL)
			}
			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.Migrate(context.Background(), db)
			if err != nil {
				return err
			}
			for _, f := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", f)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			}
			return nil
		},
	}
}
