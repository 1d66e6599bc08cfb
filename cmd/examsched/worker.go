package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/logging"
	"github.com/cscfi/exam-reservation/internal/queue"
)

func newWorkerCmd() *cobra.Command {
	var logPath string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume reservation notifications and append them to a log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := os.Getenv("RABBITMQ_URL")
			if url == "" {
				url = os.Getenv("AMQP_URL")
			}
			if url == "" {
				return errors.New("RABBITMQ_URL is not set")
			}
			logger, err := logging.New(os.Getenv("APP_ENV"))
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := queue.NewConsumer(url, logPath, logger.With(zap.String("component", "consumer")))
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "logs/notifications.log", "file receiving one line per notification")
	return cmd
}
