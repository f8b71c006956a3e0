package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"parking_checkout/internal/api"
	"parking_checkout/internal/api/handler"
	"parking_checkout/internal/api/middleware"
	"parking_checkout/internal/backend"
	"parking_checkout/internal/checkout"
	"parking_checkout/internal/config"
	"parking_checkout/internal/metrics"
	"parking_checkout/internal/queue"
	"parking_checkout/internal/repository/postgresql"
	"parking_checkout/internal/repository/redis"
	"parking_checkout/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the checkout gateway",
	Long:  `Start the HTTP and websocket API, the booking event consumer and the metrics endpoint.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	logger := setupLogger(pick(logLevel, cfg.LogLevel), pick(logFormat, cfg.LogFormat))
	log.Logger = logger
	logger.Info().Str("version", version).Str("backend", cfg.BackendBaseURL).Msg("Starting parking checkout gateway")

	backendClient := backend.NewClient(backend.Options{
		BaseURL:      cfg.BackendBaseURL,
		ServiceToken: cfg.BackendServiceToken,
		Timeout:      cfg.BackendTimeout,
	}, logger)
	pricing := backend.NewPricingCache(backendClient, cfg.RateCacheSize, cfg.RateCacheTTL)

	deps := service.CheckoutDeps{
		Bookings: backendClient,
		Rates:    pricing,
		Payer:    backendClient,
		LockTTL:  cfg.SubmitLockTTL,
	}

	var db *sql.DB
	if cfg.LedgerEnabled() {
		var err error
		db, err = postgresql.NewDB(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer db.Close()

		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = postgresql.EnsureSchema(schemaCtx, db)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
		deps.Ledger = postgresql.NewPgPaymentAttemptRepository(db)
		logger.Info().Str("host", cfg.DBHost).Str("database", cfg.DBName).Msg("Payment ledger enabled")
	} else {
		logger.Warn().Msg("DB_HOST not set, payment attempts will not be recorded")
	}

	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		var err error
		redisClient, err = redis.Open(cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		deps.Lock = redis.NewSubmissionLock(redisClient)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Submission lock enabled")
	}

	var sqsClient *sqs.Client
	if cfg.PaymentEventsQueueURL != "" || cfg.BookingEventsQueueURL != "" || cfg.ExitBarrierThing != "" {
		awsSDKCfg, err := awsgo_config.LoadDefaultConfig(context.Background(), awsgo_config.WithRegion(cfg.AWSRegion))
		if err != nil {
			return fmt.Errorf("failed to load AWS SDK config: %w", err)
		}
		logger.Info().Str("region", cfg.AWSRegion).Msg("AWS SDK config loaded")

		sqsClient = sqs.NewFromConfig(awsSDKCfg)
		if cfg.PaymentEventsQueueURL != "" {
			deps.Publisher = queue.NewSQSPublisher(sqsClient, cfg.PaymentEventsQueueURL)
		}
		if cfg.ExitBarrierThing != "" {
			iotDataPlaneClient := iotdataplane.NewFromConfig(awsSDKCfg, func(o *iotdataplane.Options) {
				if cfg.IoTMQTTEndpoint != "" {
					endpoint := cfg.IoTMQTTEndpoint
					if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
						endpoint = "https://" + endpoint
					}
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
			deps.Barrier = service.NewBarrierService(iotDataPlaneClient, cfg.ExitBarrierThing, logger)
		}
	}

	wsCtx, cancelWS := context.WithCancel(context.Background())
	defer cancelWS()
	wsManager := handler.NewWebSocketManager(logger)
	go wsManager.Start(wsCtx)
	deps.Notifier = wsManager

	checkoutService := service.NewCheckoutService(deps, checkout.Settings{
		TickInterval:   cfg.EstimateTickInterval,
		PaymentTimeout: cfg.PaymentTimeout,
	}, logger)

	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	if cfg.BookingEventsQueueURL == "" || sqsClient == nil {
		logger.Warn().Msg("BOOKING_EVENTS_QUEUE_URL not set, checkouts refresh only on request")
	} else {
		consumer := queue.NewSQSConsumer(sqsClient, cfg.BookingEventsQueueURL, checkoutService, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Start(consumerCtx)
		}()
	}

	metricsServer := metrics.NewServer(":"+cfg.MetricsPort, logger)
	if err := metricsServer.Start(); err != nil {
		return err
	}

	authMiddleware := middleware.NewAuthMiddleware(service.NewAuthService(cfg.JWTSecret))
	router := api.SetupRouter(checkoutService, backendClient, checkoutService, authMiddleware, wsManager)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.ServerPort).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelConsumer()
	waitWithTimeout(&wg, 5*time.Second, logger)

	checkoutService.Shutdown()
	cancelWS()
	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop metrics server")
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration, logger zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn().Dur("timeout", timeout).Msg("Timed out waiting for booking event consumer")
	}
}
