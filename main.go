// agora/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"agora/cache"
	"agora/config"
	"agora/database"
	"agora/handlers"
	"agora/metrics"
	"agora/models"
	"agora/utils"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Application struct {
	db          *database.DatabaseService
	sessions    *database.SessionStore
	cache       cache.Cache
	metrics     *metrics.Metrics
	rateLimiter *models.RateLimiter
	hasher      *utils.PasswordHasher
	logger      *slog.Logger
	config      *config.Config
}

// Methods to satisfy the handlers.App interface
func (a *Application) DB() *database.DatabaseService    { return a.db }
func (a *Application) Sessions() *database.SessionStore { return a.sessions }
func (a *Application) Cache() cache.Cache               { return a.cache }
func (a *Application) Metrics() *metrics.Metrics        { return a.metrics }
func (a *Application) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *Application) Hasher() *utils.PasswordHasher    { return a.hasher }
func (a *Application) Logger() *slog.Logger             { return a.logger }
func (a *Application) Config() *config.Config           { return a.config }

func newLogger(cfg config.LogConfig) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, toml or json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	dbService, err := database.InitDB(cfg.DBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbService.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	// --- Home Cache Init ---
	var homeCache cache.Cache
	if cfg.Redis.Addr != "" {
		dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.Dial(dialCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			logger.Error("Failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		homeCache = cache.NewRedisCache(client, cfg.Redis.TTL, logger)
		logger.Info("Redis cache initialized", "addr", cfg.Redis.Addr)
	} else {
		homeCache = cache.NewMemoryCache()
		logger.Info("In-memory cache initialized")
	}

	app := &Application{
		db:          dbService,
		sessions:    database.NewSessionStore(dbService, cfg.Session.TTL),
		cache:       homeCache,
		metrics:     metrics.New(),
		rateLimiter: models.NewRateLimiter(cfg.RateLimit.Every, cfg.RateLimit.Burst, cfg.RateLimit.Expire),
		hasher:      utils.NewPasswordHasher(cfg.Password),
		logger:      logger,
		config:      cfg,
	}

	// --- Graceful Shutdown ---
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.SetupRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("agora server started successfully",
		"version", config.AppVersion,
		"address", "http://localhost:"+cfg.Port,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("Server exiting")
}
