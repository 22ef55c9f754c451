package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/riskguard/analyzer/internal/config"
	"github.com/riskguard/analyzer/internal/engine"
	"github.com/riskguard/analyzer/pkg/observability"

	_ "github.com/lib/pq"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	environment := os.Getenv("APP_ENV")
	if environment == "" {
		environment = "development"
	}
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config"
	}

	cfg, err := config.Load(configPath, environment)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewNoopLogger()

	eng, err := engine.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	defer eng.Close()

	if eng.Consumer == nil {
		log.Fatal("queue consumer unavailable: check queue configuration")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received, draining in-flight tasks")
		cancel()
	}()

	log.Printf("worker consuming analysis_queue (max_consumers=%d)", cfg.MaxConsumers)
	if err := eng.Consumer.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("worker exited with error: %v", err)
	}
}
