package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "examsched",
		Short:         "Exam reservation scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Variables already set in the environment win over the file.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newUserCmd())
	root.AddCommand(newTokenCmd())
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
