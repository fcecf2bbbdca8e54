package orientation

import (
	"fmt"

	"github.com/relabs-tech/bno055_node/internal/bno055"
)

// FusionReader is the part of the BNO055 driver the device source reads.
type FusionReader interface {
	Euler() (bno055.Euler, error)
	Quaternion() (bno055.Quaternion, error)
}

type imuSource struct {
	dev FusionReader
}

// NewIMUSource returns a Source backed by the chip's fusion output. dev must
// already be initialized in a fusion mode.
func NewIMUSource(dev FusionReader) Source {
	return &imuSource{dev: dev}
}

// Next reads the euler angles and quaternion and derives yaw.
func (s *imuSource) Next() (Pose, error) {
	e, err := s.dev.Euler()
	if err != nil {
		return Pose{}, fmt.Errorf("BNO055 euler: %w", err)
	}
	q, err := s.dev.Quaternion()
	if err != nil {
		return Pose{}, fmt.Errorf("BNO055 quaternion: %w", err)
	}
	return PoseFrom(e, q), nil
}
