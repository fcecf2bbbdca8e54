// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bno055 drives a Bosch BNO055 absolute orientation sensor. The
// register map is described in the datasheet at
// https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bno055-ds000.pdf
//
// Only page 0 is used. The chip keeps its operating mode, power mode and
// calibration state internally, so a Dev must be the only thing talking to a
// given chip; its methods serialize access.
//
// Calibration offsets can only be written in CONFIG mode. SetOffsetRegisters
// and EnableExternalCrystal therefore save the active mode, switch to CONFIG,
// do their writes and switch back.
package bno055

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/bus"
)

// Settle delays.
const (
	bootDelay      = 1000 * time.Millisecond
	measureDelay   = 100 * time.Millisecond
	configDelay    = 25 * time.Millisecond
	resetPollDelay = time.Millisecond
)

// ErrResetTimeout is returned when the chip does not come back after a soft
// reset within Opts.ResetPollLimit polls.
var ErrResetTimeout = errors.New("bno055: chip did not come back after reset")

// ChipIDError means the device at the address is absent or not a BNO055.
type ChipIDError struct {
	Got uint8
}

func (e *ChipIDError) Error() string {
	return fmt.Sprintf("bno055: bad chip id (%x != %x)", e.Got, ChipIDValue)
}

// Opts holds the configuration options.
type Opts struct {
	// Address is the I2C address; ignored by the UART transport.
	Address uint8
	// ResetPollLimit bounds how many times the chip id is polled after a
	// soft reset. The chip needs about 650 ms.
	ResetPollLimit int
	// Logger defaults to a no-op logger.
	Logger *zap.SugaredLogger
	// Sleep waits for d or until ctx is done. Defaults to a timer based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Address:        DefaultAddress,
	ResetPollLimit: 1000,
}

// Vector is a three axis reading in physical units.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Euler holds the fused euler angles in degrees, in the chip's register order.
type Euler struct {
	Heading float64 `json:"heading"`
	Roll    float64 `json:"roll"`
	Pitch   float64 `json:"pitch"`
}

// Quaternion is the fused orientation as a unit quaternion.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Offsets are the calibration registers the fusion engine applies to the raw
// readings. Values are raw register counts.
type Offsets struct {
	Accel       [3]int16 `json:"accel"`
	Mag         [3]int16 `json:"mag"`
	Gyro        [3]int16 `json:"gyro"`
	AccelRadius int16    `json:"accel_radius"`
	MagRadius   int16    `json:"mag_radius"`
}

func (o Offsets) String() string {
	return fmt.Sprintf("cal acc=(x=%d y=%d z=%d) mag=(x=%d y=%d z=%d) gyr=(x=%d y=%d z=%d) acc_r=%d mag_r=%d",
		o.Accel[0], o.Accel[1], o.Accel[2],
		o.Mag[0], o.Mag[1], o.Mag[2],
		o.Gyro[0], o.Gyro[1], o.Gyro[2],
		o.AccelRadius, o.MagRadius)
}

// Dev is a handle to a BNO055.
type Dev struct {
	mu     sync.Mutex
	t      bus.Transport
	opts   Opts
	mode   OperatingMode
	logger *zap.SugaredLogger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns a handle to the chip behind t. It does not touch the bus; call
// Init before reading.
func New(t bus.Transport, opts *Opts) *Dev {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Address == 0 {
		o.Address = DefaultAddress
	}
	if o.ResetPollLimit <= 0 {
		o.ResetPollLimit = DefaultOpts.ResetPollLimit
	}
	d := &Dev{t: t, opts: o, mode: ModeConfig, logger: o.Logger, sleep: o.Sleep}
	if d.logger == nil {
		d.logger = zap.NewNop().Sugar()
	}
	if d.sleep == nil {
		d.sleep = sleepCtx
	}
	return d
}

func (d *Dev) String() string {
	return fmt.Sprintf("BNO055{0x%02X}", d.opts.Address)
}

// Present reads the chip id once and reports whether a BNO055 answered.
func (d *Dev) Present() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, err := d.readByte(QChipID)
	return err == nil && id == ChipIDValue
}

// Init verifies the chip identity, resets it and enters mode.
//
// A wrong or missing chip id is retried once after the boot delay; a second
// failure returns a *ChipIDError.
func (d *Dev) Init(ctx context.Context, mode OperatingMode) error {
	if !mode.Valid() {
		return fmt.Errorf("bno055: invalid operating mode 0x%02X", uint8(mode))
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := d.identify()
	if err != nil {
		return err
	}
	if id != ChipIDValue {
		d.logger.Debugf("%s: chip id 0x%02X, waiting for boot", d, id)
		if err := d.sleep(ctx, bootDelay); err != nil {
			return err
		}
		if id, err = d.identify(); err != nil {
			return err
		}
		if id != ChipIDValue {
			return &ChipIDError{Got: id}
		}
	}

	if err := d.reset(ctx); err != nil {
		return err
	}
	if err := d.writeByte(QPowerMode, uint8(PowerNormal)); err != nil {
		return err
	}
	if err := d.writeByte(QPageID, 0); err != nil {
		return err
	}
	if err := d.writeByte(QSysTrigger, 0x00); err != nil {
		return err
	}
	if err := d.setMode(mode); err != nil {
		return err
	}
	d.logger.Infof("%s: initialized in %s mode", d, mode)
	return d.sleep(ctx, measureDelay)
}

// identify reads the chip id; a device that does not answer reads as 0 so
// Init gives it the boot delay before giving up.
func (d *Dev) identify() (uint8, error) {
	id, err := d.readByte(QChipID)
	if err != nil {
		if bus.IsNoDevice(err) {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

// Reset soft resets the chip and waits for it to answer again.
func (d *Dev) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reset(ctx)
}

func (d *Dev) reset(ctx context.Context) error {
	if err := d.setMode(ModeConfig); err != nil {
		return err
	}
	if err := d.writeByte(QSysTrigger, sysTriggerResetSys); err != nil {
		return err
	}
	for attempt := 1; attempt <= d.opts.ResetPollLimit; attempt++ {
		if err := d.sleep(ctx, resetPollDelay); err != nil {
			return err
		}
		id, err := d.readByte(QChipID)
		if err != nil {
			if bus.IsNoDevice(err) {
				continue
			}
			return fmt.Errorf("bno055: reset: %w", err)
		}
		if id == ChipIDValue {
			d.logger.Debugf("%s: back after reset (%d polls)", d, attempt)
			return nil
		}
	}
	return fmt.Errorf("%w (%d polls)", ErrResetTimeout, d.opts.ResetPollLimit)
}

// SetOperatingMode switches the chip to mode.
func (d *Dev) SetOperatingMode(mode OperatingMode) error {
	if !mode.Valid() {
		return fmt.Errorf("bno055: invalid operating mode 0x%02X", uint8(mode))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setMode(mode)
}

// OperatingMode reads the active mode from the chip.
func (d *Dev) OperatingMode() (OperatingMode, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readMode()
}

// Mode returns the last mode the driver wrote or read, without bus traffic.
func (d *Dev) Mode() OperatingMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Halt puts the chip in CONFIG mode, which stops fusion.
func (d *Dev) Halt() error {
	return d.SetOperatingMode(ModeConfig)
}

// SetOffsetRegisters writes the calibration offsets and radii.
func (d *Dev) SetOffsetRegisters(ctx context.Context, o Offsets) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inConfigMode(ctx, func() error {
		writes := []struct {
			q      Quantity
			values []int16
		}{
			{QAccelOffset, o.Accel[:]},
			{QMagOffset, o.Mag[:]},
			{QGyroOffset, o.Gyro[:]},
			{QAccelRadius, []int16{o.AccelRadius}},
			{QMagRadius, []int16{o.MagRadius}},
		}
		for _, w := range writes {
			if err := d.writeInts(w.q, w.values); err != nil {
				return err
			}
		}
		return nil
	})
}

// OffsetRegisters reads back the calibration offsets and radii the fusion
// engine is currently using.
func (d *Dev) OffsetRegisters() (Offsets, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var o Offsets
	for _, r := range []struct {
		q   Quantity
		dst []int16
	}{
		{QAccelOffset, o.Accel[:]},
		{QMagOffset, o.Mag[:]},
		{QGyroOffset, o.Gyro[:]},
	} {
		v, err := d.readInts(r.q)
		if err != nil {
			return Offsets{}, err
		}
		copy(r.dst, v)
	}
	ar, err := d.readInts(QAccelRadius)
	if err != nil {
		return Offsets{}, err
	}
	mr, err := d.readInts(QMagRadius)
	if err != nil {
		return Offsets{}, err
	}
	o.AccelRadius, o.MagRadius = ar[0], mr[0]
	return o, nil
}

// EnableExternalCrystal selects the external 32kHz oscillator. Call it only
// after the calibration offsets are loaded.
func (d *Dev) EnableExternalCrystal(ctx context.Context, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inConfigMode(ctx, func() error {
		if err := d.writeByte(QPageID, 0); err != nil {
			return err
		}
		var v uint8
		if on {
			v = sysTriggerClkSel
		}
		return d.writeByte(QSysTrigger, v)
	})
}

// inConfigMode runs fn in CONFIG mode and restores the previous mode after,
// also when fn fails.
func (d *Dev) inConfigMode(ctx context.Context, fn func() error) error {
	last, err := d.readMode()
	if err != nil {
		return err
	}
	if err := d.setMode(ModeConfig); err != nil {
		return err
	}
	if err := d.sleep(ctx, configDelay); err != nil {
		return d.restoreMode(last, err)
	}
	return d.restoreMode(last, fn())
}

func (d *Dev) restoreMode(last OperatingMode, err error) error {
	if rerr := d.setMode(last); rerr != nil {
		if err != nil {
			return fmt.Errorf("%w; restoring %s: %v", err, last, rerr)
		}
		return rerr
	}
	return err
}

// Accelerometer returns the acceleration in m/s².
func (d *Dev) Accelerometer() (Vector, error) { return d.vector(QAccel) }

// Magnetometer returns the magnetic field in µT.
func (d *Dev) Magnetometer() (Vector, error) { return d.vector(QMag) }

// Gyroscope returns the angular rate in rad/s.
func (d *Dev) Gyroscope() (Vector, error) { return d.vector(QGyro) }

// LinearAcceleration returns the acceleration without gravity in m/s².
func (d *Dev) LinearAcceleration() (Vector, error) { return d.vector(QLinearAccel) }

// Gravity returns the gravity vector in m/s².
func (d *Dev) Gravity() (Vector, error) { return d.vector(QGravity) }

// Euler returns heading, roll and pitch in degrees.
func (d *Dev) Euler() (Euler, error) {
	v, err := d.read(QEuler)
	if err != nil {
		return Euler{}, err
	}
	return Euler{Heading: v[0], Roll: v[1], Pitch: v[2]}, nil
}

// Quaternion returns the fused orientation.
func (d *Dev) Quaternion() (Quaternion, error) {
	v, err := d.read(QQuaternion)
	if err != nil {
		return Quaternion{}, err
	}
	return Quaternion{W: v[0], X: v[1], Y: v[2], Z: v[3]}, nil
}

// Temperature returns the chip temperature in °C.
func (d *Dev) Temperature() (int8, error) {
	v, err := d.read(QTemperature)
	if err != nil {
		return 0, err
	}
	return int8(v[0]), nil
}

// ChipID returns the CHIP_ID register.
func (d *Dev) ChipID() (uint8, error) { return d.byteAccessor(QChipID) }

// CalibrationStatusByte returns the raw CALIB_STAT register.
func (d *Dev) CalibrationStatusByte() (uint8, error) { return d.byteAccessor(QCalibStat) }

// SelfTestResult returns the ST_RESULT register.
func (d *Dev) SelfTestResult() (uint8, error) { return d.byteAccessor(QSelfTest) }

// SystemStatus returns the SYS_STATUS register.
func (d *Dev) SystemStatus() (uint8, error) { return d.byteAccessor(QSysStatus) }

// SystemError returns the SYS_ERR register.
func (d *Dev) SystemError() (uint8, error) { return d.byteAccessor(QSysErr) }

// ReadRegisters reads n raw bytes starting at reg. Meant for debugging tools.
func (d *Dev) ReadRegisters(reg uint8, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t.Read(d.opts.Address, reg, n)
}

// WriteRegisters writes raw bytes starting at reg. A write to OPR_MODE
// updates the cached mode. Meant for debugging tools.
func (d *Dev) WriteRegisters(reg uint8, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.t.Write(d.opts.Address, reg, data); err != nil {
		return err
	}
	if reg == QOprMode.Spec().Address && len(data) > 0 {
		d.mode = OperatingMode(data[0] & 0x0F)
	}
	return nil
}

func (d *Dev) vector(q Quantity) (Vector, error) {
	v, err := d.read(q)
	if err != nil {
		return Vector{}, err
	}
	return Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

func (d *Dev) byteAccessor(q Quantity) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readByte(q)
}

func (d *Dev) read(q Quantity) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, err := d.readRaw(q)
	if err != nil {
		return nil, err
	}
	return Decode(q.Spec(), raw)
}

// Helpers below expect d.mu to be held.

func (d *Dev) readRaw(q Quantity) ([]byte, error) {
	s := q.Spec()
	raw, err := d.t.Read(d.opts.Address, s.Address, s.Len())
	if err != nil {
		return nil, fmt.Errorf("bno055: read %s: %w", s.Name, err)
	}
	return raw, nil
}

func (d *Dev) readByte(q Quantity) (uint8, error) {
	raw, err := d.readRaw(q)
	if err != nil {
		return 0, err
	}
	v, err := DecodeRaw(q.Spec(), raw)
	if err != nil {
		return 0, err
	}
	return uint8(v[0]), nil
}

func (d *Dev) writeByte(q Quantity, v uint8) error {
	s := q.Spec()
	if err := d.t.Write(d.opts.Address, s.Address, []byte{v}); err != nil {
		return fmt.Errorf("bno055: write %s: %w", s.Name, err)
	}
	return nil
}

func (d *Dev) readInts(q Quantity) ([]int16, error) {
	raw, err := d.readRaw(q)
	if err != nil {
		return nil, err
	}
	v, err := DecodeRaw(q.Spec(), raw)
	if err != nil {
		return nil, err
	}
	out := make([]int16, len(v))
	for i := range v {
		out[i] = int16(v[i])
	}
	return out, nil
}

func (d *Dev) writeInts(q Quantity, values []int16) error {
	s := q.Spec()
	f := make([]float64, len(values))
	for i, v := range values {
		f[i] = float64(v)
	}
	data, err := Encode(s, f)
	if err != nil {
		return err
	}
	if err := d.t.Write(d.opts.Address, s.Address, data); err != nil {
		return fmt.Errorf("bno055: write %s: %w", s.Name, err)
	}
	return nil
}

func (d *Dev) readMode() (OperatingMode, error) {
	v, err := d.readByte(QOprMode)
	if err != nil {
		return 0, err
	}
	d.mode = OperatingMode(v & 0x0F)
	return d.mode, nil
}

func (d *Dev) setMode(mode OperatingMode) error {
	if err := d.writeByte(QOprMode, uint8(mode)); err != nil {
		return err
	}
	d.mode = mode
	return nil
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
