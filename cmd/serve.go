package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Shreyansh-Sheth/expense-tracker/internal/audit"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/command"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/handler"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/query"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/repository"
	"github.com/Shreyansh-Sheth/expense-tracker/internal/store"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/events"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/logger"
	"github.com/Shreyansh-Sheth/expense-tracker/shared/models"
	sharedredis "github.com/Shreyansh-Sheth/expense-tracker/shared/redis"
)

const accountViewTTL = time.Hour

func newServeCmd() *cobra.Command {
	var autoMigrate bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(autoMigrate)
		},
	}
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "apply pending migrations before serving")
	return serveCmd
}

func serve(autoMigrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (LEDGER_AUTH_JWT_SECRET)")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection (ledger store)
	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	if autoMigrate {
		if err := db.MigrateUp(); err != nil {
			return err
		}
	}

	// Redis connection (view caches + event streaming), optional
	var (
		accountCache   sharedredis.Cache[models.AccountView]
		dashboardCache sharedredis.Cache[models.DashboardView]
		publisher      command.EventPublisher
		redisClient    *sharedredis.Client
	)
	if !cfg.Redis.Disabled {
		redisClient, err = sharedredis.NewClient(ctx, sharedredis.Options{
			Addrs:    sharedredis.ParseAddrs(cfg.Redis.Addr),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
		accountCache = sharedredis.NewViewCache[models.AccountView](redisClient, accountViewTTL, log)
		dashboardCache = sharedredis.NewViewCache[models.DashboardView](redisClient, query.DashboardCacheTTL, log)
		publisher = events.NewPublisher(redisClient)
	} else {
		log.Warn().Msg("redis disabled: running without view caches and ledger events")
	}

	// --- CQRS wiring ---
	accounts := repository.NewAccountReadRepository(db.DB(), accountCache)
	users := repository.NewUserRepository(db.DB())

	ledgerCommands := command.NewLedgerCommandService(db, accounts, publisher, log)
	userCommands := command.NewUserCommandService(users, log)
	ledgerQueries := query.NewLedgerQueryService(
		accounts,
		repository.NewEntryReadRepository(db.DB()),
		repository.NewTagRepository(db.DB()),
		dashboardCache,
		cfg.Location(),
		log,
	)
	authQueries := query.NewAuthQueryService(users, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)

	if redisClient != nil {
		hostname, _ := os.Hostname()
		subscriber := events.NewSubscriber(redisClient, events.SubscriberConfig{
			Group:    "ledger-dashboard-group",
			Consumer: "dashboard-" + hostname,
			Stream:   events.LedgerEventsStream,
			Handler:  ledgerQueries.HandleLedgerEvent,
		}, log)
		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("ledger event subscriber stopped")
			}
		}()
	}

	if cfg.Audit.Schedule != "" {
		auditor := audit.NewBalanceAuditor(accounts, log)
		scheduler, err := auditor.Schedule(ctx, cfg.Audit.Schedule)
		if err != nil {
			return err
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	checks := map[string]func(context.Context) error{"database": db.Ping}
	if redisClient != nil {
		checks["redis"] = redisClient.Check
	}

	router := handler.NewRouter(handler.RouterConfig{
		Accounts:  handler.NewAccountHandler(ledgerCommands, ledgerQueries),
		Entries:   handler.NewEntryHandler(ledgerCommands, ledgerQueries),
		Auth:      handler.NewAuthHandler(userCommands, authQueries),
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		Log:       log,
		Checks:    checks,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("driver", cfg.Database.Driver).Msg("ledger service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
