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

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cf-error-page/editor/internal/cfmeta"
	"github.com/cf-error-page/editor/internal/errorpage"
	"github.com/cf-error-page/editor/internal/examples"
	"github.com/cf-error-page/editor/internal/handlers"
	"github.com/cf-error-page/editor/internal/platform/config"
	pfirestore "github.com/cf-error-page/editor/internal/platform/firestore"
	"github.com/cf-error-page/editor/internal/platform/observability"
	"github.com/cf-error-page/editor/internal/repositories"
	firestoreRepo "github.com/cf-error-page/editor/internal/repositories/firestore"
	"github.com/cf-error-page/editor/internal/repositories/memory"
	sqliteRepo "github.com/cf-error-page/editor/internal/repositories/sqlite"
	"github.com/cf-error-page/editor/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("editor")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		var vErr *config.ValidationError
		if errors.As(err, &vErr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", vErr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	items, err := openItemRepository(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialise item store", zap.Error(err))
	}
	defer func() {
		if err := items.Close(); err != nil {
			logger.Warn("item store close error", zap.Error(err))
		}
	}()

	locations := cfmeta.NewLocationTable(cfg.Location.DataFile, cfmeta.WithTableLogger(logger.Named("cfmeta")))
	resolver := cfmeta.NewResolver(locations)
	renderer := errorpage.NewRenderer(errorpage.Config{
		IconURL:  cfg.Page.IconURL,
		IconType: cfg.Page.IconType,
		ImageURL: cfg.Page.ImageURL,
		SiteName: cfg.Page.SiteName,
	}, errorpage.NewNormalizer())
	metrics := observability.NewMetrics(nil, logger.Named("metrics"))

	shareService, err := services.NewShareService(services.ShareServiceDeps{
		Items:          items,
		Renderer:       renderer,
		Resolver:       resolver,
		Metrics:        metrics,
		Logger:         logger,
		Clock:          time.Now,
		CodeLength:     cfg.Share.LinkDigits,
		CreateAttempts: cfg.Share.CreateAttempts,
		CreatorLabel:   cfg.Share.CreatorLabel,
	})
	if err != nil {
		logger.Fatal("failed to initialise share service", zap.Error(err))
	}
	previewService, err := services.NewPreviewService(services.PreviewServiceDeps{
		Renderer: renderer,
		Resolver: resolver,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Fatal("failed to initialise preview service", zap.Error(err))
	}
	exampleService, err := services.NewExampleService(services.ExampleServiceDeps{
		FS:       examples.FS,
		Dir:      examples.Dir,
		Renderer: renderer,
		Resolver: resolver,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Fatal("failed to initialise example service", zap.Error(err))
	}

	systemService, err := newSystemService(items, locations)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.RequestIDMiddleware,
	}
	if cfg.Server.BehindProxy {
		middlewares = append(middlewares, middleware.RealIP)
	}
	middlewares = append(middlewares,
		observability.EdgeMiddleware,
		observability.TraceMiddleware,
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		middleware.Compress(5, "text/html", "application/json"),
	)

	prefix := cfg.Server.URLPrefix
	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithURLPrefix(prefix),
		handlers.WithShortShareURLs(cfg.Share.ShortURL),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(handlers.WithHealthSystemService(systemService))),
		handlers.WithShareHandlers(handlers.NewShareHandlers(shareService,
			handlers.WithSharePrefix(prefix),
			handlers.WithShortShareURL(cfg.Share.ShortURL),
			handlers.WithShareTrustProxy(cfg.Server.BehindProxy),
			handlers.WithShareMaxBody(cfg.Share.MaxBodyBytes),
		)),
		handlers.WithPreviewHandlers(handlers.NewPreviewHandlers(previewService, cfg.Server.BehindProxy, cfg.Share.MaxBodyBytes)),
		handlers.WithExampleHandlers(handlers.NewExampleHandlers(exampleService, cfg.Server.BehindProxy)),
		handlers.WithEditorHandlers(handlers.NewEditorHandlers(cfg.Server.StaticDir, prefix)),
		handlers.WithCreateRateLimit(cfg.RateLimits.CreatePerMinute, cfg.RateLimits.CreatePerHour, time.Now),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("error page editor listening",
			zap.String("prefix", prefix),
			zap.Bool("short_share_url", cfg.Share.ShortURL),
			zap.String("static_dir", cfg.Server.StaticDir),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openItemRepository(ctx context.Context, cfg config.StorageConfig) (repositories.ItemRepository, error) {
	driver, target, err := cfg.Driver()
	if err != nil {
		return nil, err
	}
	switch driver {
	case config.DriverSQLite:
		return sqliteRepo.Open(ctx, target)
	case config.DriverFirestore:
		provider := pfirestore.NewProvider(pfirestore.Config{ProjectID: target, EmulatorHost: cfg.FirestoreEmulatorHost})
		if _, err := provider.Client(ctx); err != nil {
			return nil, err
		}
		return firestoreRepo.NewItemRepository(provider)
	case config.DriverMemory:
		return memory.NewItemRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func newSystemService(items repositories.ItemRepository, locations *cfmeta.LocationTable) (services.SystemService, error) {
	checks := []repositories.DependencyCheck{
		{
			Name:     "itemStore",
			Timeout:  1500 * time.Millisecond,
			Critical: true,
			Check:    items.Ping,
		},
		{
			Name: "locations",
			Check: func(context.Context) error {
				if locations.Len() == 0 {
					return errors.New("location table is empty")
				}
				return nil
			},
		},
	}
	repo, err := repositories.NewDependencyHealthRepository(checks, repositories.WithDependencyTimeout(2*time.Second))
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
	})
}
