/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/projectsentinel/apiserver/config"
	"github.com/projectsentinel/apiserver/internal/mq"
	"github.com/projectsentinel/apiserver/internal/worker"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes gaming alert and review events",
	Long: `Consumes the alert and review channels published by the server and
logs a notification for each event. Usage:

	sentinel worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return fmt.Errorf("worker requires MQ_BACKEND to be %q or %q", config.BackendRabbitMQ, config.BackendPubSub)
		}
		defer broker.Close()

		logger.Info("worker consuming", "alerts", cfg.MQ.AlertChannel, "reviews", cfg.MQ.ReviewChannel)
		err = worker.New(broker, cfg.MQ.AlertChannel, cfg.MQ.ReviewChannel, logger).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
