package sensors

import (
	"fmt"
	"time"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/imu"
	"github.com/relabs-tech/bno055_node/internal/orientation"
)

// SampleReader is the set of driver accessors a steady-state read uses.
type SampleReader interface {
	Accelerometer() (bno055.Vector, error)
	Magnetometer() (bno055.Vector, error)
	Gyroscope() (bno055.Vector, error)
	LinearAcceleration() (bno055.Vector, error)
	Gravity() (bno055.Vector, error)
	Euler() (bno055.Euler, error)
	Quaternion() (bno055.Quaternion, error)
	Temperature() (int8, error)
	CalibrationStatusByte() (uint8, error)
	SelfTestResult() (uint8, error)
	SystemStatus() (uint8, error)
	SystemError() (uint8, error)
}

// ReadSample reads every output of the chip once. The first failing read
// aborts the sample.
func ReadSample(r SampleReader) (imu.Sample, error) {
	s := imu.Sample{Time: time.Now()}
	var err error

	vectors := []struct {
		name string
		read func() (bno055.Vector, error)
		dst  *bno055.Vector
	}{
		{"accel", r.Accelerometer, &s.Accel},
		{"mag", r.Magnetometer, &s.Mag},
		{"gyro", r.Gyroscope, &s.Gyro},
		{"linear accel", r.LinearAcceleration, &s.LinearAccel},
		{"gravity", r.Gravity, &s.Gravity},
	}
	for _, v := range vectors {
		if *v.dst, err = v.read(); err != nil {
			return imu.Sample{}, fmt.Errorf("BNO055 %s: %w", v.name, err)
		}
	}

	if s.Euler, err = r.Euler(); err != nil {
		return imu.Sample{}, fmt.Errorf("BNO055 euler: %w", err)
	}
	if s.Quaternion, err = r.Quaternion(); err != nil {
		return imu.Sample{}, fmt.Errorf("BNO055 quaternion: %w", err)
	}
	s.Yaw = orientation.Yaw(s.Quaternion)

	if s.Temperature, err = r.Temperature(); err != nil {
		return imu.Sample{}, fmt.Errorf("BNO055 temperature: %w", err)
	}
	cal, err := r.CalibrationStatusByte()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("BNO055 calibration status: %w", err)
	}
	s.Calibration = calibration.DecodeStatus(cal)

	bytes := []struct {
		name string
		read func() (uint8, error)
		dst  *uint8
	}{
		{"self test", r.SelfTestResult, &s.SelfTest},
		{"system status", r.SystemStatus, &s.SystemStatus},
		{"system error", r.SystemError, &s.SystemError},
	}
	for _, b := range bytes {
		if *b.dst, err = b.read(); err != nil {
			return imu.Sample{}, fmt.Errorf("BNO055 %s: %w", b.name, err)
		}
	}
	return s, nil
}

type sampleSource struct {
	r SampleReader
}

// NewSampleSource adapts a SampleReader to imu.SampleSource.
func NewSampleSource(r SampleReader) imu.SampleSource {
	return &sampleSource{r: r}
}

func (s *sampleSource) NextSample() (imu.Sample, error) {
	return ReadSample(s.r)
}
