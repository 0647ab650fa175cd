package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/medexperts/internal/app"
	"github.com/shrimpsizemoose/medexperts/internal/handlers"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to start: %v", err)
	}
	defer service.Close()

	if dir := service.Config.Database.MigrationsDir; dir != "" {
		if err := service.Store.ApplyMigrations(dir); err != nil {
			logger.Error.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              service.Config.Server.Port,
		Handler:           handlers.NewRouter(service),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info.Println("Shutting down medexperts server")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error.Printf("Graceful shutdown failed: %v", err)
		}
	}()

	logger.Info.Printf("Starting medexperts server on %s", service.Config.Server.Port)
	logger.Debug.Printf("Zoho API at %s, token endpoint at %s", service.Config.Zoho.APIURL, service.Config.Zoho.AccountsURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error.Fatalf("medexperts server failed: %v", err)
	}
}
