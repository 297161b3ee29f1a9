package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ciipa/plataforma/internal/auth"
	"github.com/ciipa/plataforma/internal/config"
	"github.com/ciipa/plataforma/internal/database"
	"github.com/ciipa/plataforma/internal/email"
	"github.com/ciipa/plataforma/internal/logging"
	"github.com/ciipa/plataforma/internal/model"
	"github.com/ciipa/plataforma/internal/server"
	"github.com/ciipa/plataforma/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := seedAdmin(db, logger); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom)
	tokens := auth.NewTokens(cfg.SecretKey)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// After a restore the pool still points at the replaced file; shut
	// down gracefully and let the supervisor restart onto the new one.
	restart := func() {
		logger.Info("restarting after restore")
		quit <- syscall.SIGTERM
	}

	srv := server.New(db, cfg, emailClient, tokens, restart, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Periodic session and rate limiter cleanup
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Debug("session cleanup", "removed", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	<-quit
	close(stop)
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// seedAdmin creates the bootstrap administrator account when none exists.
func seedAdmin(db *sql.DB, logger *slog.Logger) error {
	userStore := store.NewUserStore(db)

	count, err := userStore.CountByRole(model.RoleAdmin)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword("Admin123")
	if err != nil {
		return err
	}
	if _, err := userStore.Create("admin@ciipa.com", hash, model.RoleAdmin); err != nil {
		return err
	}
	logger.Info("seeded demo admin", "email", "admin@ciipa.com")
	return nil
}
