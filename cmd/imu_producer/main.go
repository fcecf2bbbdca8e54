// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

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
		logging.MustNewLogger("producer", "info").Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger := logging.MustNewLogger("producer", cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting BNO055 producer (BNO055 → MQTT)")
	if err := app.RunBNO055Producer(ctx, cfg, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
