package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docviewer/docs"
	"docviewer/internal/config"
	"docviewer/internal/database"
	"docviewer/internal/database/migration"
	handlers "docviewer/internal/http/handler"
	"docviewer/internal/http/middleware"
	"docviewer/internal/logging"
	apiotel "docviewer/internal/otel"
	"docviewer/internal/repository"
	"docviewer/internal/repository/jsonfile"
	"docviewer/internal/repository/postgres"
	"docviewer/internal/service"
	"docviewer/internal/storage"
	"docviewer/internal/storage/disk"
	"docviewer/internal/telegram"
)

type probeFunc func(context.Context) error

// @title Document Viewer API
// @version 1.0
// @description Lists, streams and ingests documents for the viewer frontend.
// @BasePath /
func main() {
	// Configuration comes from the environment (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server_failed", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := apiotel.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracing_shutdown_failed", zap.Error(err))
		}
	}()

	repo, metaProbe, closeRepo, err := newRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(log),
		BodyLimit:             bodyLimit(cfg),
		DisableStartupMessage: true,
	})

	reqMetrics, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer, "/healthz")
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	// RequestID adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(log))
	app.Use(reqMetrics.Handler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Request-ID",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	storeProbe, err := registerVariant(ctx, app, cfg, repo, log)
	if err != nil {
		return err
	}
	handlers.RegisterHealthRoutes(app, combineProbes(metaProbe, storeProbe))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}
		host := c.Get("Host")
		if host == "" {
			host = cfg.AppHost
		}

		docs.SwaggerInfo.Host = host
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		log.Info("server_shutdown")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server_shutdown_failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	log.Info("server_starting",
		zap.String("addr", addr),
		zap.String("storage_mode", cfg.StorageMode),
		zap.String("metadata_backend", cfg.Metadata.Backend))
	return app.Listen(addr)
}

// newRepository opens the configured metadata backend.
func newRepository(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (repository.DocumentRepository, probeFunc, func(), error) {
	switch cfg.Metadata.Backend {
	case config.BackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				log.Warn("db_close_failed", zap.Error(err))
			}
		}
		return postgres.NewDocumentPostgres(db), db.PingContext, closeDB, nil
	default:
		store := jsonfile.New(cfg.Metadata.File, log)
		log.Info("metadata_store_ready", zap.String("path", store.Path()))
		return repository.NewSnapshotRepository(store), nil, func() {}, nil
	}
}

// registerVariant builds the one file origin adapter selected by STORAGE_MODE and mounts its routes.
// It returns the probe for the adapter's backing store.
func registerVariant(ctx context.Context, app *fiber.App, cfg *config.AppConfig, repo repository.DocumentRepository, log *zap.Logger) (probeFunc, error) {
	switch cfg.StorageMode {
	case config.ModeS3:
		store, err := storage.NewMinIO(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
		svc := service.NewPresignService(repo, store, service.PresignOptions{
			KeyPrefix: cfg.S3.KeyPrefix,
			PutExpiry: cfg.S3.PutExpiry(),
			GetExpiry: cfg.S3.GetExpiry(),
		}, log)
		handlers.RegisterPresignRoutes(app, svc, log)
		return store.Ping, nil

	case config.ModeLocal:
		files, err := disk.New(cfg.Local.StorageDir)
		if err != nil {
			return nil, err
		}
		// left as a nil interface when unconfigured so the service reports ErrConfiguration
		var bot service.BotFiles
		if cfg.Telegram.Configured() {
			bot = telegram.NewClient(cfg.Telegram.APIBase, cfg.Telegram.BotToken, time.Duration(cfg.Telegram.TimeoutSec)*time.Second)
		} else {
			log.Warn("telegram_not_configured", zap.String("reason", "TELEGRAM_BOT_TOKEN is empty"))
		}
		svc := service.NewLocalService(repo, files, bot, service.LocalOptions{
			MaxUploadBytes:    cfg.Local.MaxUploadBytes(),
			PrecacheOnWebhook: cfg.Local.PrecacheOnWebhook,
		}, log)
		handlers.RegisterLocalRoutes(app, svc, log)
		log.Info("local_storage_ready", zap.String("dir", files.Dir()))
		return files.Check, nil

	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.StorageMode)
	}
}

func combineProbes(probes ...probeFunc) probeFunc {
	return func(ctx context.Context) error {
		var errs []error
		for _, p := range probes {
			if p == nil {
				continue
			}
			if err := p(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// bodyLimit leaves room for multipart framing on top of the upload cap.
func bodyLimit(cfg *config.AppConfig) int {
	if cfg.StorageMode == config.ModeLocal && cfg.Local.MaxUploadBytes() > 0 {
		return int(cfg.Local.MaxUploadBytes()) + 1<<20
	}
	return 4 << 20
}
