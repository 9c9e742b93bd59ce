package main

import (
	"alumni_network/internal/auth"
	"alumni_network/internal/config"
	"alumni_network/internal/handler"
	"alumni_network/internal/service"
	"alumni_network/internal/storage"
	"alumni_network/internal/throttle"
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const shutdownTimeout = 10 * time.Second

func main() {
	//PARSE ARGS
	var (
		configPath string
		migrate    bool
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the yaml config")
	flag.BoolVar(&migrate, "migrate", false, "apply the database schema before serving")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("starting alumni network", slog.String("env", cfg.Env))

	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//INIT DB
	st, err := storage.NewPostgresStorage(ctx, cfg.DB.DbURL)
	if err != nil {
		lgr.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	if migrate {
		if err := st.Migrate(ctx); err != nil {
			lgr.Error("failed to migrate", slog.Any("error", err))
			os.Exit(1)
		}
		lgr.Info("schema applied")
	}

	//INIT THROTTLE
	var limiter throttle.Limiter = throttle.Nop{}
	if cfg.Redis.Addr != "" {
		client, err := throttle.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lgr.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Close()

		limiter = throttle.NewRedisLimiter(client, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginLockout)
	} else {
		lgr.Warn("redis address is empty, login throttling disabled")
	}

	//INIT SERVICE
	hasher, err := auth.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		lgr.Error("failed to init password hasher", slog.Any("error", err))
		os.Exit(1)
	}

	tokens, err := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	if err != nil {
		lgr.Error("failed to init token codec", slog.Any("error", err))
		os.Exit(1)
	}

	srvc := service.NewService(st, hasher, tokens, limiter, service.Config{
		PasswordMinLength: cfg.Auth.PasswordMinLength,
	}, lgr)

	//INIT SERVER
	h := handler.NewHandler(srvc, handler.NewGuard(tokens, lgr), lgr)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		lgr.Info("http server listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("http server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("shutdown failed", slog.Any("error", err))
	}

	lgr.Info("server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
