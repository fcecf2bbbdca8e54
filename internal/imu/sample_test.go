package imu

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/calibration"
)

func TestStatusLine(t *testing.T) {
	s := Sample{
		Euler:        bno055.Euler{Heading: 12.5},
		Yaw:          -12.5,
		SelfTest:     0x0F,
		SystemStatus: 5,
	}
	test.That(t, s.StatusLine(), test.ShouldEqual, " 12.50 -12.50 result=15 err=0 status=5")
}

func TestSampleJSON(t *testing.T) {
	s := Sample{
		Accel:       bno055.Vector{Z: 9.81},
		Calibration: calibration.Status{Mag: 3, System: 1},
	}
	b, err := json.Marshal(s)
	test.That(t, err, test.ShouldBeNil)

	var m map[string]any
	test.That(t, json.Unmarshal(b, &m), test.ShouldBeNil)
	test.That(t, m["accel"].(map[string]any)["z"], test.ShouldEqual, 9.81)
	test.That(t, m["calibration"].(map[string]any)["mag"], test.ShouldEqual, 3.0)
	test.That(t, m, test.ShouldContainKey, "linear_accel")
}
