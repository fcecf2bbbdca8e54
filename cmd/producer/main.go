package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/bno055_node/internal/app"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/logging"
)

func main() {
	configPath := flag.String("config", "./bno055_config.txt", "path to configuration file")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		logging.MustNewLogger("mock_producer", "info").Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger := logging.MustNewLogger("mock_producer", cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting bno055 MQTT producer (mock)")
	if err := app.RunMockProducer(ctx, cfg, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
