package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messagely/internal/config"
	"messagely/internal/database"
	"messagely/internal/logging"
	"messagely/internal/repositories"
	"messagely/internal/server"
	"messagely/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to DB
	db, err := database.Connect(ctx, cfg.DSN, logger)
	if err != nil {
		logger.WithError(err).Fatal("DB connect error")
	}
	defer db.Close()

	if cfg.Migrate {
		if err := database.RunMigrations(ctx, db, logger); err != nil {
			logger.WithError(err).Fatal("migrations error")
		}
	}

	users := services.NewUserService(repositories.NewUserRepository(db), cfg.BcryptCost)
	messages := services.NewMessageService(repositories.NewMessageRepository(db))

	// Start server
	srv := server.NewServer(":"+cfg.Port, db, users, messages, server.Options{
		JWTSecret:   []byte(cfg.JWTSecret),
		JWTTTL:      time.Duration(cfg.JWTTTLHrs) * time.Hour,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)
	if err := srv.Run(ctx); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}
