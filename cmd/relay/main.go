// cmd/relay/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/bridgeduel/internal/auth"
	"github.com/jason-s-yu/bridgeduel/internal/config"
	"github.com/jason-s-yu/bridgeduel/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(config.LogLevel(logrus.InfoLevel))

	if err := auth.Init(); err != nil {
		logger.Fatalf("auth init: %v", err)
	}

	rs := handlers.NewRelayServer(logger)
	addr := ":" + config.GetEnv("PORT", "3000")
	server := &http.Server{
		Addr:              addr,
		Handler:           rs.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("Relay running on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down relay")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		logger.WithError(err).Warn("shutdown")
	}
}
