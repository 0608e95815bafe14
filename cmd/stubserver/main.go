package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medisched/scheduling-client/internal/config"
	"github.com/medisched/scheduling-client/internal/stubserver"
	"github.com/medisched/scheduling-client/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:      parseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    true,
	})

	store := stubserver.NewStore()
	if cfg.StubServer.Seed {
		stubserver.Seed(store, 5, 25)
		log.Info("seeded stub data", "clinicians", 5, "patients", 25)
	}

	engine := stubserver.NewRouter(
		stubserver.NewHandler(store),
		stubserver.RouterConfig{
			RequestsPerSecond: cfg.StubServer.RequestsPerSecond,
			Burst:             cfg.StubServer.Burst,
		},
		log,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.StubServer.Port),
		Handler: engine,
	}

	go func() {
		log.Info("stub clinic API listening", "port", cfg.StubServer.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down stub server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("stub server exited properly")
}

func parseLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}
