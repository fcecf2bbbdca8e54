// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/bus"
	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/config"
)

// regFile is a flat page 0 register file.
type regFile struct {
	regs    [0x80]byte
	failReg int
}

func (f *regFile) Read(_, reg uint8, n int) ([]byte, error) {
	if int(reg) == f.failReg {
		return nil, bus.ErrNoDevice
	}
	out := make([]byte, n)
	copy(out, f.regs[reg:])
	return out, nil
}

func (f *regFile) Write(_, reg uint8, data []byte) error {
	copy(f.regs[reg:], data)
	return nil
}

func TestReadSample(t *testing.T) {
	f := &regFile{failReg: -1}
	copy(f.regs[0x08:], []byte{0, 0, 0, 0, 0xD5, 0x03}) // accel z 9.81
	copy(f.regs[0x1A:], []byte{0xA0, 0x05})             // heading 90
	copy(f.regs[0x20:], []byte{0x41, 0x2D, 0, 0, 0, 0, 0x41, 0x2D})
	f.regs[0x34] = 0xFE // -2 °C
	f.regs[0x35] = 0xFF
	f.regs[0x36] = 0x0F
	f.regs[0x39] = 0x05

	s, err := ReadSample(bno055.New(f, nil))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Accel.Z, test.ShouldAlmostEqual, 9.81)
	test.That(t, s.Euler.Heading, test.ShouldEqual, 90.0)
	test.That(t, s.Yaw, test.ShouldAlmostEqual, 90.0, 0.01)
	test.That(t, s.Temperature, test.ShouldEqual, int8(-2))
	test.That(t, s.Calibration, test.ShouldResemble, calibration.Status{Mag: 3, Accel: 3, Gyro: 3, System: 3})
	test.That(t, s.SelfTest, test.ShouldEqual, uint8(0x0F))
	test.That(t, s.SystemStatus, test.ShouldEqual, uint8(5))
	test.That(t, s.Time.IsZero(), test.ShouldBeFalse)

	src := NewSampleSource(bno055.New(f, nil))
	again, err := src.NextSample()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.Euler, test.ShouldResemble, s.Euler)
}

func TestReadSampleError(t *testing.T) {
	f := &regFile{failReg: 0x1A}
	_, err := ReadSample(bno055.New(f, nil))
	test.That(t, errors.Is(err, bus.ErrNoDevice), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "euler")
}

type countingDetector struct {
	answerAfter int
	calls       int
}

func (p *countingDetector) Present() bool {
	p.calls++
	return p.calls > p.answerAfter
}

func TestWaitForDevice(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	p := &countingDetector{answerAfter: 2}
	test.That(t, WaitForDevice(context.Background(), p, time.Millisecond, logger), test.ShouldBeNil)
	test.That(t, p.calls, test.ShouldEqual, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := WaitForDevice(ctx, &countingDetector{answerAfter: 1 << 30}, time.Millisecond, logger)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
}

func TestDeviceOpts(t *testing.T) {
	cfg := config.Default()
	cfg.I2CAddr = bno055.AlternateAddress
	cfg.OperatingMode = bno055.ModeIMUPlus
	cfg.ResetPollLimit = 10

	opts := DeviceOpts(cfg, nil)
	test.That(t, opts.Address, test.ShouldEqual, uint8(bno055.AlternateAddress))
	test.That(t, opts.ResetPollLimit, test.ShouldEqual, 10)

	cfg.BusType = "spi"
	_, _, err := OpenTransport(cfg)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRegisterMap(t *testing.T) {
	regs := BNO055RegisterMap()
	seen := map[uint8]string{}
	for _, r := range regs {
		addr := r.Addr()
		_, dup := seen[addr]
		test.That(t, dup, test.ShouldBeFalse)
		seen[addr] = r.Name
	}

	for _, q := range []bno055.Quantity{
		bno055.QChipID, bno055.QPageID, bno055.QTemperature, bno055.QCalibStat,
		bno055.QSelfTest, bno055.QSysStatus, bno055.QSysErr, bno055.QOprMode,
		bno055.QPowerMode, bno055.QSysTrigger,
	} {
		s := q.Spec()
		test.That(t, seen[s.Address], test.ShouldEqual, s.Name)
	}
	for _, q := range []bno055.Quantity{bno055.QAccel, bno055.QEuler, bno055.QQuaternion, bno055.QAccelOffset, bno055.QMagRadius} {
		s := q.Spec()
		for a := s.Address; a < s.Address+uint8(s.Len()); a++ {
			test.That(t, seen, test.ShouldContainKey, a)
		}
	}

	test.That(t, RegisterInfo{Access: "RW"}.Writable(), test.ShouldBeTrue)
	test.That(t, RegisterInfo{Access: "R"}.Writable(), test.ShouldBeFalse)
}
