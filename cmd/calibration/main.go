// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// ./cmd/calibration/main.go
//
// Guided calibration for the BNO055. The chip calibrates itself; this tool
// restores the stored offsets, prints the per-sensor status while the user
// moves the board, then saves the offsets once the policy is met.
//
// Move the board as follows until every status reaches 3:
//   - Gyro: leave it still for a few seconds.
//   - Accel: hold it in six poses, each axis up and down.
//   - Mag: draw slow figure eights in the air.
//
// Run:
//
//	go run ./cmd/calibration            # wait, print and save
//	go run ./cmd/calibration -reset     # discard the stored offsets first
//	go run ./cmd/calibration -serve :8082
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/app"
	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/logging"
	"github.com/relabs-tech/bno055_node/internal/sensors"
)

func main() {
	configPath := flag.String("config", "./bno055_config.txt", "path to configuration file")
	reset := flag.Bool("reset", false, "delete the stored calibration before starting")
	serve := flag.String("serve", "", "serve the interactive calibration page on this address instead")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		logging.MustNewLogger("calibration", "info").Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()
	logger := logging.MustNewLogger("calibration", cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := calibration.NewStore(cfg.CalibrationFile, logger)
	if *reset {
		if err := store.Delete(); err != nil {
			logger.Fatalf("reset: %v", err)
		}
		logger.Infof("removed stored calibration %s", store.Path)
	}

	if *serve != "" {
		if err := app.RunCalibrationServer(ctx, cfg, *serve, logger); err != nil {
			logger.Fatalf("fatal: %v", err)
		}
		return
	}

	if err := run(ctx, cfg, store, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, store *calibration.Store, logger *zap.SugaredLogger) (err error) {
	dev, err := sensors.OpenIMU(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dev.Close()) }()

	p := &app.Producer{
		Dev:                     dev,
		Calibration:             calibration.NewManager(dev, cfg.CalibrationPolicy, logger),
		Store:                   store,
		CalibrationPollInterval: cfg.CalibrationPollInterval,
		ExternalCrystal:         cfg.ExternalCrystal,
		Console:                 os.Stdout,
		Logger:                  logger,
	}
	offsets, err := p.Calibrate(ctx)
	if err != nil {
		return err
	}
	logger.Infof("calibration stored in %s: %s", store.Path, offsets)
	return nil
}
