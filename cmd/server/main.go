package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oticapos/internal/config"
	"oticapos/internal/infra"
	"oticapos/internal/repository"
	"oticapos/internal/router"
	"oticapos/internal/service"
	"oticapos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One breaker per external collaborator, shared between the HTTP layer
	// and the background goroutines.
	directoryCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	gatewayCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	gateway := infra.NewGatewayClient(cfg.GatewayURL, cfg.GatewayAPIKey)
	mailer := infra.NewMailer(cfg)

	// Worker handlers are wired here (composition root) so that the pool has
	// full access to all infrastructure dependencies.
	dispatcher := worker.NewDispatcher(rdb)
	sessionRepo := repository.NewCashSessionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	clientRepo := repository.NewLegacyClientRepository(db)

	debtSvc := service.NewDebtService(clientRepo, rdb)
	paymentSvc := service.NewPaymentService(paymentRepo, sessionRepo, orderRepo, debtSvc,
		cfg.GatewayMethods, cfg.OperationTimeout())

	workerHandlers := &worker.Handlers{
		Confirmation: worker.NewConfirmationWorker(paymentSvc, dispatcher),
		Summary:      worker.NewSummaryWorker(mailer, cfg.SummaryEmail),
	}
	worker.StartWorkerPool(ctx, rdb, workerHandlers, cfg.WorkerPoolSize)

	// Sweep payments whose gateway webhook never arrived.
	worker.StartPendingReaper(ctx, worker.PendingReaperConfig{
		PaymentRepo: paymentRepo,
		Payments:    paymentSvc,
		Gateway:     gateway,
		CB:          gatewayCB,
	})

	r := router.New(cfg, db, rdb, directoryCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("oticapos backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
