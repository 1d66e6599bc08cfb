package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cscfi/exam-reservation/internal/model"
	"github.com/cscfi/exam-reservation/internal/utils"
)

func newTokenCmd() *cobra.Command {
	var (
		userID uint64
		role   string
		ttlMin int
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			role = strings.ToUpper(strings.TrimSpace(role))
			if role != model.RoleStudent && role != model.RoleAdmin {
				return fmt.Errorf("role must be %s or %s", model.RoleStudent, model.RoleAdmin)
			}
			tok, err := utils.NewAccessToken(secret, userID, role, ttlMin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	c.Flags().Uint64Var(&userID, "user", 0, "user id")
	c.Flags().StringVar(&role, "role", model.RoleStudent, "STUDENT or ADMIN")
	c.Flags().IntVar(&ttlMin, "ttl", 60, "lifetime in minutes")
	_ = c.MarkFlagRequired("user")
	return c
}
