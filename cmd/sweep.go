package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"opentry/internal/pkg/cache"
	"opentry/internal/pkg/mongodb"
	"opentry/internal/pkg/razorpay"
	paymentRepo "opentry/internal/repository/payment"
	"opentry/internal/service"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire pending transactions whose payment window has closed, then exit",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	client, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() { _ = client.Close(context.Background()) }()

	// 过期前需要向 Razorpay 做最后一次确认，未配置时直接过期
	var gateway service.PaymentGateway
	if rz, err := razorpay.NewClient(razorpay.Config{
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
	}); err != nil {
		log.Warn().Err(err).Msg("razorpay disabled, expiring without a final payment check")
	} else {
		gateway = rz
	}

	payments := service.NewPaymentService(
		paymentRepo.NewTransactionRepo(client.Database()), gateway, cache.NewMemoryLocker(),
		service.PaymentOptions{Window: cfg.Payment.Window, PollInterval: cfg.Payment.PollInterval},
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	n, err := payments.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("sweep expired transactions: %w", err)
	}
	log.Info().Int("expired", n).Msg("sweep finished")
	return nil
}
