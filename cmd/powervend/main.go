package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/application/services"
	"github.com/DanielPopoola/powervend/internal/config"
	"github.com/DanielPopoola/powervend/internal/docs"
	"github.com/DanielPopoola/powervend/internal/infrastructure/events"
	"github.com/DanielPopoola/powervend/internal/infrastructure/paystack"
	"github.com/DanielPopoola/powervend/internal/infrastructure/persistence/mongostore"
	"github.com/DanielPopoola/powervend/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/powervend/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/powervend/internal/interfaces/rest/router"
	"github.com/DanielPopoola/powervend/internal/worker"
)

type stores struct {
	payments application.PaymentStore
	tokens   application.TokenStore
	health   application.HealthChecker
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		client, err := mongostore.Connect(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &stores{
			payments: mongostore.NewPaymentRepository(client.Database()),
			tokens:   mongostore.NewTokenRepository(client.Database()),
			health:   client,
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil

	case config.StoreDriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(&cfg.Database, logger); err != nil {
				return nil, err
			}
		}
		db, err := postgres.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return &stores{
			payments: postgres.NewPaymentRepository(db.Pool),
			tokens:   postgres.NewTokenRepository(db.Pool),
			health:   db,
			close:    db.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func openPublisher(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (application.EventPublisher, *events.Client, error) {
	if !cfg.Enabled {
		logger.Info("event publishing disabled")
		return events.NewNoopPublisher(logger), nil, nil
	}

	client, err := events.Connect(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if _, err := client.EnsureStream(ctx, cfg.Stream); err != nil {
		client.Close()
		return nil, nil, err
	}
	return events.NewPublisher(client, logger), client, nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting powervend",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open record store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	publisher, natsClient, err := openPublisher(ctx, cfg.NATS, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	health := map[string]application.HealthChecker{"store": st.health}
	if natsClient != nil {
		defer natsClient.Close()
		health["nats"] = natsClient
	}

	gateway := paystack.NewRetryClient(paystack.NewClient(cfg.Paystack), cfg.Retry, logger)

	generator, err := services.NewTokenGenerator(st.tokens, st.payments, cfg.Token, logger)
	if err != nil {
		logger.Error("invalid token configuration", "error", err)
		os.Exit(1)
	}
	reconciler := services.NewReconciler(st.payments, st.tokens, gateway, generator, publisher, logger)
	initiator := services.NewPaymentInitiator(st.payments, gateway, cfg.Paystack, logger)
	queryService := services.NewQueryService(st.payments, st.tokens)

	h := handlers.NewHandlers(
		initiator,
		reconciler,
		queryService,
		paystack.NewSigner(cfg.Paystack.SecretKey),
		health,
		logger,
	)

	doc, err := docs.Load(ctx)
	if err != nil {
		logger.Error("failed to load API document", "error", err)
		os.Exit(1)
	}

	handler, err := router.New(h, router.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		Document:       doc,
	}, logger)
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if cfg.Worker.Enabled {
		sweeper := worker.NewSweeper(st.payments, reconciler, cfg.Worker, logger)
		go sweeper.Start(workerCtx)
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
