/**
 * @description
 * This is the main entry point for the monetization-service. It is responsible
 * for initializing all components of the service, including configuration,
 * database connection, the payout provider client, message brokers, the
 * repository, the core application service, the scheduler, and the HTTP
 * server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, log/slog, net/http: Standard Go libraries for logging and the HTTP server.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/providerclient: Client for the payout provider API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwell/monetization-service/internal/api"
	"github.com/inkwell/monetization-service/internal/app"
	"github.com/inkwell/monetization-service/internal/config"
	"github.com/inkwell/monetization-service/internal/domain"
	"github.com/inkwell/monetization-service/internal/store"
	"github.com/inkwell/monetization-service/pkg/providerclient"
	rmrabbit "github.com/inkwell/monetization-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	log.Printf("level=info component=bootstrap msg=\"starting monetization-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish lifecycle events. A missing
	// broker degrades to a no-op publisher instead of blocking startup.
	var publisher rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		publisher = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the payout provider API.
	providerClient := providerclient.NewClient(cfg.ProviderAPIBaseURL, cfg.ProviderAPIKey)

	// Initialize the data access layer (repository).
	repository := store.NewRepository(dbpool)

	feePolicy := app.NewFeePolicy(cfg.PlatformFeePercent, map[string]float64{
		"partner": cfg.PartnerFeePercent,
	})

	// Initialize the core application service with its dependencies.
	service := app.NewService(repository, providerClient, publisher, feePolicy, logger, app.Options{
		DefaultCurrency:           cfg.DefaultCurrency,
		DefaultMinimumPayoutMinor: cfg.MinimumPayoutMinor,
		DefaultFrequency:          domain.PayoutFrequency(cfg.DefaultPayoutFrequency),
		AllowBelowMinimum:         cfg.AllowBelowMinimum,
	})

	// Wire up the consumers: unlock events feed the earning ledger, provider
	// outcome events close payouts.
	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
	}
	defer rabbitConsumer.Close()

	unlockConsumer := app.NewUnlockEventConsumer(service, logger)
	unlockBindings := map[string]func([]byte) bool{
		"chapter.unlock.completed": unlockConsumer.HandleMessage,
	}
	if err := rabbitConsumer.ConsumeWithBindings(app.EventsExchange, cfg.UnlockEventQueue, unlockBindings); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"unlock consumer start failed\" err=%v", err)
	}

	outcomeConsumer := app.NewPayoutOutcomeConsumer(service, logger)
	outcomeBindings := map[string]func([]byte) bool{
		"payout.provider.*": outcomeConsumer.HandleMessage,
	}
	if err := rabbitConsumer.ConsumeWithBindings(app.EventsExchange, cfg.PayoutEventQueue, outcomeBindings); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"outcome consumer start failed\" err=%v", err)
	}

	// Start the scheduler: the auto-payout sweep and the payout dispatcher.
	jobs := app.NewJobs(service, logger)
	scheduler := app.NewScheduler(jobs, logger, cfg)
	scheduler.Start()
	defer scheduler.Stop()

	// Set up the HTTP router.
	handler := api.NewHandler(service)
	router := api.NewRouter(handler, cfg.JWKSURL, cfg.InternalAPIKey)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
