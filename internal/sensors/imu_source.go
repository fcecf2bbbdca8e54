// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/bus"
	"github.com/relabs-tech/bno055_node/internal/config"
)

// presenceInterval is how often an absent chip is polled before Init.
const presenceInterval = 500 * time.Millisecond

// IMU is an initialized BNO055 together with the bus it owns.
type IMU struct {
	*bno055.Dev
	closer io.Closer
}

// OpenTransport opens the bus selected by BUS_TYPE.
func OpenTransport(cfg *config.Config) (bus.Transport, io.Closer, error) {
	switch cfg.BusType {
	case config.BusUART:
		u, err := bus.OpenUART(cfg.UARTPort, cfg.UARTBaud)
		if err != nil {
			return nil, nil, err
		}
		return u, u, nil
	case config.BusI2C, "":
		b, err := bus.OpenI2C(cfg.I2CBus, 0)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	}
	return nil, nil, fmt.Errorf("unsupported bus type %q", cfg.BusType)
}

// DeviceOpts builds the driver options from the config.
func DeviceOpts(cfg *config.Config, logger *zap.SugaredLogger) *bno055.Opts {
	opts := bno055.DefaultOpts
	opts.Address = cfg.I2CAddr
	opts.ResetPollLimit = cfg.ResetPollLimit
	opts.Logger = logger
	return &opts
}

// OpenIMU opens the configured bus, waits for the chip to answer and
// initializes it in the configured operating mode.
func OpenIMU(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*IMU, error) {
	t, closer, err := OpenTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("BNO055: open bus: %w", err)
	}
	dev := bno055.New(t, DeviceOpts(cfg, logger))
	imu := &IMU{Dev: dev, closer: closer}

	if err := WaitForDevice(ctx, dev, presenceInterval, logger); err != nil {
		return nil, multierr.Append(err, imu.Close())
	}
	if err := dev.Init(ctx, cfg.OperatingMode); err != nil {
		return nil, multierr.Append(fmt.Errorf("BNO055: init: %w", err), imu.Close())
	}
	return imu, nil
}

// Close halts fusion and releases the bus.
func (i *IMU) Close() error {
	var err error
	if i.Dev.Mode() != bno055.ModeConfig {
		err = i.Dev.Halt()
	}
	if i.closer != nil {
		err = multierr.Append(err, i.closer.Close())
	}
	return err
}

// Detector reports whether the chip answers with the right id.
type Detector interface {
	Present() bool
}

// WaitForDevice polls until the chip answers or ctx is done.
func WaitForDevice(ctx context.Context, p Detector, interval time.Duration, logger *zap.SugaredLogger) error {
	for attempt := 1; ; attempt++ {
		if p.Present() {
			if attempt > 1 {
				logger.Infof("BNO055: answered after %d attempts", attempt)
			}
			return nil
		}
		if attempt == 1 {
			logger.Infof("BNO055: waiting for device")
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("BNO055: waiting for device: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}
