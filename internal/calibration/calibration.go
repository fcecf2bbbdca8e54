// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration tracks the BNO055 calibration lifecycle: decoding the
// status byte, deciding when the fusion engine is calibrated, and moving the
// offset registers between the chip and a 22 byte record on disk.
package calibration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/bno055"
)

// Status holds the per sensor calibration confidence, 0 (none) to 3 (full).
type Status struct {
	Mag    uint8 `json:"mag"`
	Accel  uint8 `json:"accel"`
	Gyro   uint8 `json:"gyro"`
	System uint8 `json:"system"`
}

// DecodeStatus splits a CALIB_STAT byte into its four 2-bit counters.
func DecodeStatus(b uint8) Status {
	return Status{
		Mag:    b & 0x03,
		Accel:  (b >> 2) & 0x03,
		Gyro:   (b >> 4) & 0x03,
		System: (b >> 6) & 0x03,
	}
}

// Byte packs s back into the CALIB_STAT layout.
func (s Status) Byte() uint8 {
	return s.Mag&0x03 | (s.Accel&0x03)<<2 | (s.Gyro&0x03)<<4 | (s.System&0x03)<<6
}

func (s Status) String() string {
	return fmt.Sprintf("mag_status=%d accel_status=%d gyro_status=%d sys_status=%d",
		s.Mag, s.Accel, s.Gyro, s.System)
}

// Policy decides when a Status counts as fully calibrated.
type Policy int

const (
	// Strict requires every counter to reach 3.
	Strict Policy = iota
	// AlwaysReady accepts any status. Useful on benches where the
	// magnetometer never settles.
	AlwaysReady
)

func (p Policy) String() string {
	switch p {
	case Strict:
		return "strict"
	case AlwaysReady:
		return "always_ready"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts "strict" or "always_ready".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "always_ready", "always-ready":
		return AlwaysReady, nil
	}
	return Strict, fmt.Errorf("unknown calibration policy %q", s)
}

// Device is the part of the driver the manager needs.
type Device interface {
	CalibrationStatusByte() (uint8, error)
	OffsetRegisters() (bno055.Offsets, error)
	SetOffsetRegisters(ctx context.Context, o bno055.Offsets) error
}

// Manager runs calibration against one device.
type Manager struct {
	dev    Device
	policy Policy
	logger *zap.SugaredLogger
}

// NewManager returns a manager for dev. logger may be nil.
func NewManager(dev Device, policy Policy, logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{dev: dev, policy: policy, logger: logger}
}

// Policy returns the policy the manager was built with.
func (m *Manager) Policy() Policy { return m.policy }

// Apply writes o to the device offset registers.
func (m *Manager) Apply(ctx context.Context, o bno055.Offsets) error {
	if err := m.dev.SetOffsetRegisters(ctx, o); err != nil {
		return fmt.Errorf("apply calibration: %w", err)
	}
	m.logger.Debugf("calibration applied: %s", o)
	return nil
}

// Poll reads and decodes the calibration status once.
func (m *Manager) Poll(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	b, err := m.dev.CalibrationStatusByte()
	if err != nil {
		return Status{}, fmt.Errorf("read calibration status: %w", err)
	}
	return DecodeStatus(b), nil
}

// IsFullyCalibrated applies the manager policy to s.
func (m *Manager) IsFullyCalibrated(s Status) bool {
	if m.policy == AlwaysReady {
		return true
	}
	return s.Mag == 3 && s.Accel == 3 && s.Gyro == 3 && s.System == 3
}

// Export reads the offsets the fusion engine currently uses.
func (m *Manager) Export(ctx context.Context) (bno055.Offsets, error) {
	if err := ctx.Err(); err != nil {
		return bno055.Offsets{}, err
	}
	o, err := m.dev.OffsetRegisters()
	if err != nil {
		return bno055.Offsets{}, fmt.Errorf("export calibration: %w", err)
	}
	return o, nil
}

// WaitCalibrated polls every interval until the status satisfies the policy
// or ctx is done. onStatus, if set, sees every polled status. Read errors are
// logged and polling continues.
func (m *Manager) WaitCalibrated(ctx context.Context, interval time.Duration, onStatus func(Status)) (Status, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s, err := m.Poll(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return s, ctx.Err()
		case err != nil:
			m.logger.Warnf("calibration poll: %v", err)
		default:
			if onStatus != nil {
				onStatus(s)
			}
			if m.IsFullyCalibrated(s) {
				return s, nil
			}
		}

		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ticker.C:
		}
	}
}
