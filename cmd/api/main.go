package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bengkel/internal/api"
	"bengkel/internal/auth"
	"bengkel/internal/bot"
	"bengkel/internal/config"
	"bengkel/internal/database"
	"bengkel/internal/domain"
	"bengkel/internal/events"
	"bengkel/internal/filestore"
	"bengkel/internal/google"
	"bengkel/internal/logging"
	"bengkel/internal/metrics"
	"bengkel/internal/notify"
	"bengkel/internal/repository"
	"bengkel/internal/service"
	"bengkel/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, sqlDB, err := initStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	redisClient, state := initStateRepository(ctx, cfg, logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	policy, err := auth.LoadPolicy(cfg.Auth.Policy.ModelPath, cfg.Auth.Policy.PolicyPath)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	identity := service.NewIdentityService(
		store,
		state,
		auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		cfg.Auth.LoginRateLimit,
		logging.Component(logger, "identity"),
	)
	created, err := identity.EnsureAdmin(ctx, cfg.Auth.BootstrapAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Info().Str("email", cfg.Auth.BootstrapAdmin.Email).Msg("bootstrap admin created")
	}

	eventBus := events.NewEventBus(logging.Component(logger, "events"))
	telegram := initNotifier(ctx, cfg, eventBus, logger)

	syncWorker := initSheetsWorker(ctx, cfg, sqlDB, redisClient, logger)

	bookings := service.NewBookingService(store, eventBus, syncWorker, cfg.Booking, cfg.Location(),
		logging.Component(logger, "bookings"))

	if telegram != nil && cfg.Telegram.Commands {
		commands := bot.NewBot(telegram, bookings, cfg.Telegram.AdminChatIDs, cfg.Location(), logging.Component(logger, "telegram_bot"))
		go commands.Start(ctx)
	}

	if sqlDB != nil {
		go database.NewBackupService(sqlDB, cfg.Backup, logging.Component(logger, "backup")).Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	router := api.NewRouter(api.Deps{
		Identity: identity,
		Bookings: bookings,
		Policy:   policy,
		Store:    store,
		Config:   cfg.API,
		Logger:   logging.Component(logger, "http"),
	})
	httpServer := api.NewHTTPServer(cfg.API.HTTP, router, logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API.GRPC, store, logger)
		if err != nil {
			return fmt.Errorf("create grpc server: %w", err)
		}
	}

	return startServers(ctx, httpServer, grpcServer, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

// initStore opens the configured store. The sqlite handle is also returned
// for the components that only work on sqlite.
func initStore(cfg *config.Config, logger *zerolog.Logger) (domain.Repository, *database.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverFile:
		store, err := filestore.Open(cfg.Database.Path, logging.Component(logger, "filestore"))
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init file store")
			return nil, nil, err
		}
		return store, nil, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		return db, db, nil
	}
}

// initStateRepository prefers redis and keeps the in-memory repository as
// a fallback. Without a reachable redis only memory is used.
func initStateRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.StateRepository) {
	memory := repository.NewMemoryStateRepository()
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, session state kept in memory")
		return nil, memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with memory state")
		_ = client.Close()
		return nil, memory
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client, repository.NewFailoverStateRepository(
		repository.NewRedisStateRepository(client), memory, logging.Component(logger, "state"))
}

// initNotifier returns nil when Telegram is disabled or unreachable.
func initNotifier(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *notify.BotSender {
	if !cfg.Telegram.Enabled() {
		return nil
	}
	sender, err := notify.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}
	notifier := notify.NewNotifier(sender, cfg.Telegram.AdminChatIDs, logging.Component(logger, "telegram"))
	notifier.Subscribe(bus)
	go notifier.Start(ctx)
	logger.Info().Int("chats", len(cfg.Telegram.AdminChatIDs)).Msg("telegram notifications enabled")
	return sender
}

// initSheetsWorker starts the Sheets mirror. It needs the sqlite sync queue.
func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if !cfg.Google.Enabled() {
		return nil
	}
	if db == nil {
		logger.Warn().Msg("google sheets sync requires the sqlite driver, sync disabled")
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID,
		cfg.Location(), logging.Component(logger, "sheets"))
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, tasks will be retried")
	}
	go sheetsService.StartCacheRefresh(ctx, cfg.Google.CacheRefresh)

	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, db, redisClient, worker.RetryPolicyFromConfig(cfg.Worker),
		cfg.Worker.PollInterval, logging.Component(logger, "sheets_worker"))
	go sheetsWorker.Start(ctx)

	if cfg.Google.ResyncOnStart {
		if err := sheetsWorker.EnqueueTask(ctx, worker.TaskResync, "", nil, ""); err != nil {
			logger.Warn().Err(err).Msg("failed to schedule sheets resync")
		}
	}

	logger.Info().Msg("google sheets sync enabled")
	return sheetsWorker
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(ctx context.Context, httpServer *api.HTTPServer, grpcServer *api.GRPCServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 2)

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcServer != nil {
		go grpcServer.WatchStore(ctx)
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
