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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ruralpay/txengine/internal/config"
	"github.com/ruralpay/txengine/internal/handlers"
	"github.com/ruralpay/txengine/internal/logger"
	mW "github.com/ruralpay/txengine/internal/middleware"
	"github.com/ruralpay/txengine/internal/services"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// Initialize config
	if err := config.Init(viper.GetViper(), ".env"); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	policy, err := services.ParseLockedPolicy(cfg.LockedPolicy)
	if err != nil {
		log.Fatal("Invalid locked-account policy", zap.Error(err))
	}

	ledgerHandler := handlers.NewLedgerHandler(policy, cfg.MaxBodyBytes, log)
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set, ledger endpoints are unauthenticated")
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newRouter(ledgerHandler, cfg.JWTSecretKey),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Server starting", zap.String("addr", server.Addr), zap.String("locked_policy", string(policy)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

func newRouter(ledgerHandler *handlers.LedgerHandler, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         86400,
	}))

	// Health check
	r.Get("/health", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.Auth(jwtSecret))

			r.Post("/ledger/process", ledgerHandler.Process)
		})
	})

	return r
}
