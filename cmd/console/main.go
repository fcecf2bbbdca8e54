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
	"time"

	"github.com/relabs-tech/bno055_node/internal/app"
	"github.com/relabs-tech/bno055_node/internal/logging"
)

func main() {
	interval := flag.Duration("interval", 100*time.Millisecond, "pose print interval")
	flag.Parse()

	logger := logging.MustNewLogger("console", "info")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting bno055 node (mock console)")
	if err := app.RunMockConsole(ctx, os.Stdout, *interval); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}
