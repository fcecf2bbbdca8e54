package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/imu"
	"github.com/relabs-tech/bno055_node/internal/orientation"
)

func TestConsoleLine(t *testing.T) {
	cfg := config.Default()

	line, ok, err := consoleLine(cfg, cfg.TopicPose, mustJSON(t, orientation.Pose{Roll: 1.5, Pitch: -2, Yaw: 90, Heading: 270}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, line, test.ShouldEqual, "[POSE]  ROLL=  1.50  PITCH= -2.00  YAW= 90.00  HDG=270.00")

	line, ok, err = consoleLine(cfg, cfg.TopicSample, mustJSON(t, imu.Sample{
		Accel:        bno055.Vector{Z: 9.81},
		Temperature:  24,
		Euler:        bno055.Euler{Heading: 12.5},
		Yaw:          -12.5,
		SelfTest:     15,
		SystemStatus: 5,
	}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, line, test.ShouldContainSubstring, "az=   9.81")
	test.That(t, line, test.ShouldContainSubstring, "T=24C")
	test.That(t, line, test.ShouldEndWith, " 12.50 -12.50 result=15 err=0 status=5")

	line, ok, err = consoleLine(cfg, cfg.TopicCalibration, mustJSON(t, calibration.Status{Mag: 3, Accel: 2, Gyro: 1}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, line, test.ShouldEqual, "[CAL]   mag_status=3 accel_status=2 gyro_status=1 sys_status=0")

	_, ok, err = consoleLine(cfg, "bno055/unknown", []byte("{}"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)

	_, ok, err = consoleLine(cfg, cfg.TopicSample, []byte("{"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRunMockConsole(t *testing.T) {
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	test.That(t, RunMockConsole(ctx, &out, 5*time.Millisecond), test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	test.That(t, len(lines), test.ShouldBeGreaterThanOrEqualTo, 1)
	test.That(t, lines[0], test.ShouldStartWith, "[POSE]  ROLL=")
}
