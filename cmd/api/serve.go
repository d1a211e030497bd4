package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"conference-payments/internal/client"
	"conference-payments/internal/config"
	"conference-payments/internal/logger"
	"conference-payments/internal/metrics"
	"conference-payments/internal/repository"
	"conference-payments/internal/server"
	"conference-payments/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the subscription expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := client.InitDBClient(cfg.Database)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	paystackClient := client.NewPaystackClient(&cfg.Paystack, cfg.BaseURL, m)

	paymentRepo := repository.NewPaymentRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	conferenceRepo := repository.NewConferenceRepository(db)
	userRepo := repository.NewUserRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	paymentService := service.NewPaymentService(db, paystackClient, paymentRepo, userRepo, log)
	registrationService := service.NewRegistrationService(
		db, paymentService,
		service.NewTokenGenerator(cfg.Billing.TokenPrefix, nil),
		cfg.Billing.Currency,
		registrationRepo, conferenceRepo, userRepo,
		log,
	)
	subscriptionService := service.NewSubscriptionService(
		db, paymentService,
		service.SubscriptionPlan{
			Currency:     cfg.Billing.Currency,
			DefaultPrice: cfg.Billing.SubscriptionPrice,
			Period:       cfg.Billing.SubscriptionPeriod,
		},
		subscriptionRepo, userRepo,
		log,
	)
	verificationService := service.NewVerificationService(
		db, paystackClient, paymentService,
		registrationService, subscriptionService,
		m, log,
	)
	webhookService := service.NewWebhookService(cfg.Paystack.SecretKey, verificationService, webhookEventRepo, log)

	srv := server.NewServer(server.Services{
		Conferences:   service.NewConferenceService(conferenceRepo),
		Registrations: registrationService,
		Subscriptions: subscriptionService,
		Payments:      paymentService,
		Verification:  verificationService,
		Webhooks:      webhookService,
	}, cfg.Auth.Secret, reg, log)

	go service.RunExpiryWorker(ctx, subscriptionService, cfg.Billing.ExpirySweepInterval, log)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server",
			zap.String("address", cfg.HTTP.Address()),
			zap.String("environment", cfg.Environment.Name),
		)
		if err := srv.Start(cfg.HTTP.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("signal received, starting graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
	log.Info("shutdown complete")
	return nil
}
