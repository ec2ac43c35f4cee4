package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gatehouse/internal/account"
	"gatehouse/internal/api"
	"gatehouse/internal/auth"
	"gatehouse/internal/config"
	"gatehouse/internal/db"
	"gatehouse/internal/logging"
	"gatehouse/internal/models"
	"gatehouse/internal/resource"
	"gatehouse/internal/session"
)

func main() {
	slog.SetDefault(slog.New(logging.NewHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting server", "name", cfg.Server.Name)

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	database, err := db.Open(startCtx, cfg.Database.Driver, cfg.DatabaseDSN())
	startCancel()
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "driver", cfg.Database.Driver)

	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		slog.Error("failed to configure token issuer", "error", err)
		os.Exit(1)
	}

	log := slog.Default()

	userRepo := db.NewUserRepository(database)
	tokenRepo := db.NewRefreshTokenRepository(database)
	productRepo := db.NewProductRepository(database)

	sessions := session.NewManager(
		db.NewCredentialStore(userRepo, tokenRepo),
		issuer,
		auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		log,
		session.WithAdminEmails(cfg.Auth.AdminEmails),
	)
	accounts := account.NewService(userRepo, sessions, log)
	products := resource.NewService("product", resource.Store[*models.Product](productRepo), log,
		resource.WithWritePolicy(resource.OwnerOrAdmin[*models.Product]()),
	)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepers sync.WaitGroup
	sweepers.Add(1)
	go func() {
		defer sweepers.Done()
		session.NewSweeper(sessions, cfg.Auth.SweepInterval, log).Start(sweepCtx)
	}()

	server, err := api.NewServer(cfg, api.Services{
		Database: database,
		Issuer:   issuer,
		Users:    userRepo,
		Sessions: sessions,
		Accounts: accounts,
		Products: products,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// the deferred database.Close must not race a sweep in flight
	sweepCancel()
	sweepers.Wait()

	slog.Info("server stopped")
}
