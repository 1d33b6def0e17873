/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/o2a/bapsim/config"
	"github.com/o2a/bapsim/internal/logging"
	"github.com/o2a/bapsim/internal/mq"
	"github.com/o2a/bapsim/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Removes images of deleted recipes",
	Long: `Consumes image deletion events from the message queue and removes the
objects from image storage. Requires MQ_BACKEND and STORAGE_BACKEND.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		defer func() { _ = queue.Close() }()

		images, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}

		logger.Info("image cleanup worker started",
			zap.String("mq", cfg.MQ.Backend),
			zap.String("storage", cfg.Storage.Backend),
		)
		err = queue.SubscribeImageDeleted(ctx, func(ctx context.Context, event mq.ImageDeleted) error {
			if err := images.Delete(ctx, event.Key); err != nil {
				logger.Warn("failed to remove image", zap.String("key", event.Key), zap.Error(err))
				return err
			}
			logger.Info("image removed", zap.String("key", event.Key))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
