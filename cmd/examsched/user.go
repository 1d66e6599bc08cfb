package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/config"
	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/repository"
	"github.com/cscfi/exam-reservation/internal/utils"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var email, password, role string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a user with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.ToUpper(strings.TrimSpace(role))
			if role != model.RoleStudent && role != model.RoleAdmin {
				return fmt.Errorf("role must be %s or %s", model.RoleStudent, model.RoleAdmin)
			}
			cfg := config.Load()
			if cfg.StorageDriver != config.StorageMySQL {
				return fmt.Errorf("user add needs STORAGE_DRIVER=%s", config.StorageMySQL)
			}
			ctx := context.Background()
			db, err := openDB(ctx, cfg, true, zap.NewNop())
			if err != nil {
				return err
			}
			defer db.Close()

			hash, err := utils.HashPassword(password, cfg.BcryptCost)
			if err != nil {
				return err
			}
			u := model.User{Email: email, PasswordHash: hash, Role: role, IsActive: true}
			if err := repository.NewMySQLStore(db).CreateUser(ctx, &u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id %d, %s)\n", u.Email, u.ID, u.Role)
			return nil
		},
	}
	c.Flags().StringVar(&email, "email", "", "email")
	c.Flags().StringVar(&password, "password", "", "password")
	c.Flags().StringVar(&role, "role", model.RoleStudent, "STUDENT or ADMIN")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}
