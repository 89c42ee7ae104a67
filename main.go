package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"busticket/internal/app"
	"busticket/internal/auth"
	"busticket/internal/config"
	"busticket/internal/database"
	"busticket/internal/database/migrations"
	"busticket/internal/kafka"
	"busticket/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	log := logger.NewLogger("api")
	defer log.Close()

	log.Info("APP", "Starting BusTicket API initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()
	for _, name := range cfg.InsecureSecrets() {
		log.Warn("CONFIG", name+" is not set, using an insecure default")
	}
	if err := cfg.CheckSecrets(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("APP", "Verifying database connections")
	bunDB, err := database.OpenBun(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	defer bunDB.Close()
	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	if cfg.Database.AutoMigrate {
		opts := migrations.DefaultOptions()
		opts.MigrationsDir = cfg.Database.MigrationsDir
		runner := migrations.NewRunner(bunDB.DB, opts, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATION", fmt.Sprintf("Auto-migration failed: %v", err))
		}
	}

	redisClient, err := database.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("REDIS", err.Error())
	}
	defer redisClient.Close()

	publisher := newPublisher(cfg, log)
	defer publisher.Close()

	a := app.New(cfg, bunDB, redisClient, publisher, log)
	a.Verifier, err = auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
	if err != nil {
		log.Warn("AUTH", fmt.Sprintf("External identity provider disabled: %v", err))
	}

	if cfg.Worker.RunInProcess {
		a.RunWorkers(ctx)
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      a.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 BusTicket API running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ BusTicket API shutdown complete")
	}
}

// newPublisher returns a Kafka producer, or a logging no-op when Kafka is off.
func newPublisher(cfg *config.Config, log *logger.Logger) kafka.Publisher {
	if !cfg.Kafka.Enabled {
		log.Warn("KAFKA", "Kafka disabled, events will only be logged")
		return &kafka.NoopProducer{Logger: log}
	}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}
	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	log.Info("KAFKA", "Kafka producer initialized successfully")
	return producer
}
