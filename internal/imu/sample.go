package imu

import (
	"fmt"
	"time"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/calibration"
)

// Sample is one steady-state read of the BNO055 in physical units.
type Sample struct {
	Time time.Time `json:"time"`

	Accel       bno055.Vector `json:"accel"`        // m/s²
	Mag         bno055.Vector `json:"mag"`          // µT
	Gyro        bno055.Vector `json:"gyro"`         // rad/s
	LinearAccel bno055.Vector `json:"linear_accel"` // m/s², gravity removed
	Gravity     bno055.Vector `json:"gravity"`      // m/s²

	Euler      bno055.Euler      `json:"euler"` // degrees
	Quaternion bno055.Quaternion `json:"quaternion"`
	Yaw        float64           `json:"yaw"` // degrees, from the quaternion

	Temperature  int8               `json:"temperature"` // °C
	Calibration  calibration.Status `json:"calibration"`
	SelfTest     uint8              `json:"self_test"`
	SystemStatus uint8              `json:"system_status"`
	SystemError  uint8              `json:"system_error"`
}

// StatusLine formats the per-cycle console line: heading, derived yaw,
// self-test result, system error and system status.
func (s Sample) StatusLine() string {
	return fmt.Sprintf("% 4.2f % 4.2f result=%d err=%d status=%d",
		s.Euler.Heading, s.Yaw, s.SelfTest, s.SystemError, s.SystemStatus)
}

// SampleSource produces samples on demand.
type SampleSource interface {
	NextSample() (Sample, error)
}
