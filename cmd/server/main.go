// Package main initializes and starts the bonsplans HTTP server, setting up
// configuration, logging, database connections, repositories, services,
// handlers and background workers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/craquetonbudget/bonsplans/internal/config"
	"github.com/craquetonbudget/bonsplans/internal/db"
	"github.com/craquetonbudget/bonsplans/internal/logger"
	"github.com/craquetonbudget/bonsplans/internal/middleware"
	"github.com/craquetonbudget/bonsplans/internal/realtime"
	"github.com/craquetonbudget/bonsplans/internal/repository"
	"github.com/craquetonbudget/bonsplans/internal/server/handler/http"
	"github.com/craquetonbudget/bonsplans/internal/service"
	"github.com/craquetonbudget/bonsplans/internal/storage"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	sessionCleanInterval = time.Hour
	shutdownTimeout      = 10 * time.Second
)

func main() {
	// Parse flags, config file, .env and environment.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(cmp.Or(options.LogLevel, "info")); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	if options.JWTSecret == "" {
		zapLogger.Fatal("jwt secret is required (-jwt-secret or JWT_SECRET)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	// Initialize repositories.
	productRepo := repository.NewPostgresProductRepository(postgresDB)
	favoriteRepo := repository.NewPostgresFavoriteRepository(postgresDB)
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	themeRepo := repository.NewPostgresThemeRepository(postgresDB)
	analyticsRepo := repository.NewPostgresAnalyticsRepository(postgresDB)

	// Realtime change feed.
	hub := realtime.NewHub()
	listener := realtime.NewListener(options.DatabaseDSN, hub, zapLogger)

	// File storage for product images and site files.
	var files service.FileStorage = storage.Disabled{}
	if options.CloudinaryURL != "" {
		cld, err := storage.NewCloudinary(options.CloudinaryURL, options.CloudinaryFolder)
		if err != nil {
			zapLogger.Fatal("cannot init cloudinary", zap.Error(err))
		}
		files = cld
	} else {
		zapLogger.Warn("cloudinary not configured, image uploads and sitemap publishing are disabled")
	}

	// Initialize business-logic services.
	authService := service.NewAuthService(authRepo, options.JWTSecret, options.SessionTTL, zapLogger)
	catalogService := service.NewCatalogService(productRepo, service.CatalogTTL, zapLogger)
	favoritesService := service.NewFavoritesService(favoriteRepo, service.NewNotifier(service.NotificationTTL), zapLogger)
	analyticsService := service.NewAnalyticsService(analyticsRepo)
	sitemapService := service.NewSitemapService(productRepo, files, zapLogger)
	adminService := service.NewAdminService(service.AdminDeps{
		Products: productRepo,
		Themes:   themeRepo,
		Stats:    analyticsRepo,
		Files:    files,
		Sitemap:  sitemapService,
		Catalog:  catalogService,
		Log:      zapLogger,
	})
	themeSocket := http.NewThemeSocket(authService, zapLogger)
	themeService := service.NewThemeService(themeRepo, hub, themeSocket, zapLogger)

	if options.AdminEmail != "" {
		if err := authService.EnsureAdmin(ctx, options.AdminEmail, options.AdminPassword); err != nil {
			zapLogger.Fatal("cannot bootstrap administrator", zap.Error(err))
		}
	}

	// Optional redis-backed rate limiting of auth endpoints.
	var limiter middleware.Counter
	if options.RedisURL != "" {
		redisOpts, err := redis.ParseURL(options.RedisURL)
		if err != nil {
			zapLogger.Fatal("invalid redis url", zap.Error(err))
		}
		client := redis.NewClient(redisOpts)
		defer client.Close()
		limiter = middleware.RedisCounter{Client: client}
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(http.Handlers{
		Site:      &http.SiteHandler{Theme: themeService, Ads: options.Ads},
		Theme:     &http.ThemeHandler{Theme: themeService},
		Socket:    themeSocket,
		Catalog:   &http.CatalogHandler{Catalog: catalogService, Events: analyticsService, Favorites: favoritesService, Log: zapLogger},
		Auth:      &http.AuthHandler{AuthService: authService, Sessions: favoritesService, Log: zapLogger},
		Favorites: &http.FavoritesHandler{Favorites: favoritesService, Log: zapLogger},
		Admin:     &http.AdminHandler{Admin: adminService, Catalog: catalogService, Log: zapLogger},
	}, authService, limiter, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Remove expired sessions in the background.
	db.StartSessionCleaner(ctx, postgresDB, sessionCleanInterval, zapLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return catalogService.Watch(gctx, hub) })
	g.Go(func() error { return favoritesService.Watch(gctx, hub) })
	g.Go(func() error { return themeService.Run(gctx) })
	g.Go(func() error {
		var err error
		if options.TLSCert != "" && options.TLSKey != "" {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
			err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
			err = server.ListenAndServe()
		}
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")
		themeSocket.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
	}
}
