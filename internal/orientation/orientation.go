package orientation

import (
	"math"

	"github.com/relabs-tech/bno055_node/internal/bno055"
)

// Pose is the canonical representation of orientation for the app.
// Roll, pitch and heading come from the fusion engine's euler output; yaw
// is derived from the quaternion.
type Pose struct {
	Roll    float64 `json:"roll"`
	Pitch   float64 `json:"pitch"`
	Yaw     float64 `json:"yaw"`
	Heading float64 `json:"heading"`
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}

// Yaw returns the rotation about the z axis in degrees, in (-180, 180].
//
//	yaw = atan2(2(wz + xy), 1 - 2(y² + z²))
//
// Near pitch ±90° the result is unstable; no special casing is applied.
func Yaw(q bno055.Quaternion) float64 {
	siny := 2 * (q.W*q.Z + q.X*q.Y)
	cosy := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	return math.Atan2(siny, cosy) * 180.0 / math.Pi
}

// PoseFrom combines the fused euler angles and quaternion into a Pose.
func PoseFrom(e bno055.Euler, q bno055.Quaternion) Pose {
	return Pose{
		Roll:    e.Roll,
		Pitch:   e.Pitch,
		Yaw:     Yaw(q),
		Heading: e.Heading,
	}
}
