// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"

	"github.com/relabs-tech/bno055_node/internal/bno055"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock orientation source that rotates slowly about
// z while rocking in roll and pitch.
func NewMockSource() Source {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) Next() (Pose, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	heading := math.Mod(elapsed*30, 360)
	half := heading * math.Pi / 360
	q := bno055.Quaternion{W: math.Cos(half), Z: math.Sin(half)}

	return PoseFrom(bno055.Euler{
		Heading: heading,
		Roll:    20 * math.Sin(elapsed),
		Pitch:   15 * math.Cos(elapsed*0.7),
	}, q), nil
}
