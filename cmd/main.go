package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/db"
	"github.com/senyabanana/tender-orchestrator/internal/dispatch"
	"github.com/senyabanana/tender-orchestrator/internal/handlers"
	"github.com/senyabanana/tender-orchestrator/internal/repository"
	"github.com/senyabanana/tender-orchestrator/internal/router"
	"github.com/senyabanana/tender-orchestrator/internal/router/config"
	"github.com/senyabanana/tender-orchestrator/internal/services"
	"github.com/senyabanana/tender-orchestrator/internal/socket"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := services.Dependencies{Clock: services.SystemClock{}, Payments: services.ReferencePaymentConfirmer{}}
	switch cfg.StorageDriver {
	case config.DriverMemory:
		store := repository.NewMemoryStore()
		seedMemoryStore(store)
		deps.Bids, deps.Purchases, deps.Invitations, deps.Providers, deps.Identity = store, store, store, store, store
		log.Println("using in-memory storage")
	default:
		runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

		dbPool, err := db.InitDb(ctx, cfg)
		if err != nil {
			log.Fatalf("error initializing database: %v", err)
		}
		defer dbPool.Close()

		providers := repository.NewPostgresProviderRepository(dbPool)
		deps.Bids = repository.NewPostgresBidRepository(dbPool)
		deps.Purchases = repository.NewPostgresPurchaseRepository(dbPool)
		deps.Invitations = repository.NewPostgresInvitationRepository(dbPool)
		deps.Providers, deps.Identity = providers, providers
	}

	hub := socket.NewHub(logger)
	mailer := dispatch.NewWebhookMailer("tender-orchestrator", cfg.EmailWebhookURL, cfg.CollaboratorTimeout, logger)
	queue := dispatch.NewQueue(dispatch.QueueConfig{
		Workers:        cfg.DispatchWorkers,
		Size:           cfg.DispatchQueueSize,
		MaxRetries:     cfg.DispatchMaxRetries,
		Backoff:        cfg.DispatchBackoff,
		AttemptTimeout: cfg.CollaboratorTimeout,
	}, logger)
	queue.Start(ctx)

	deps.Presence = hub
	deps.Notifier = dispatch.NewNotifier(mailer, hub, logger)
	deps.Queue = queue

	engine := services.NewEngine(deps, services.EngineConfig{
		DefaultStoppingPeriod: cfg.DefaultStoppingPeriod,
		CollaboratorTimeout:   cfg.CollaboratorTimeout,
	}, logger)

	bidHandler := handlers.NewBidHandler(engine, logger, cfg.RequestTimeout)
	wsHandler := &handlers.WebSocketHandler{Hub: hub, Logger: logger}
	routes := router.InitRoutes(bidHandler, wsHandler, handlers.StatsHandler(queue, hub))

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("server is listening on %s...", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		log.Printf("dispatch shutdown: %v", err)
	}
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
