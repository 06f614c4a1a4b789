// cmd/historian/main.go pops duel action records from the Redis queue and
// persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/bridgeduel/internal/cache"
	"github.com/jason-s-yu/bridgeduel/internal/config"
	"github.com/jason-s-yu/bridgeduel/internal/database"
	"github.com/jason-s-yu/bridgeduel/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetLevel(config.LogLevel(logrus.InfoLevel))
	log := logrus.WithField("service", "historian")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx); err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.DB.Close()
	if err := database.EnsureSchema(ctx, database.DB); err != nil {
		log.Fatalf("schema: %v", err)
	}

	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer cache.Rdb.Close()

	svc := historian.NewService(
		historian.NewRedisSource(cache.Rdb),
		&historian.PGSink{DB: database.DB},
		log,
	)
	if err := svc.Run(ctx); err != nil {
		log.WithError(err).Error("historian exited")
		os.Exit(1)
	}
}
