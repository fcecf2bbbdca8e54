// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/relabs-tech/bno055_node/internal/bno055"
)

// RecordSize is the length of a persisted calibration record.
const RecordSize = 22

// ErrInvalidRecord is returned for records that are not exactly RecordSize
// bytes long.
var ErrInvalidRecord = errors.New("calibration: invalid record")

// record is the on-disk layout: accel xyz, mag xyz, gyro xyz, accel radius,
// mag radius, all int16 little endian.
type record struct {
	Accel       [3]int16
	Mag         [3]int16
	Gyro        [3]int16
	AccelRadius int16
	MagRadius   int16
}

// Marshal encodes o as a 22 byte record.
func Marshal(o bno055.Offsets) []byte {
	var buf bytes.Buffer
	buf.Grow(RecordSize)
	// Writes to a bytes.Buffer do not fail.
	_ = binary.Write(&buf, binary.LittleEndian, record(o))
	return buf.Bytes()
}

// Unmarshal decodes a record written by Marshal.
func Unmarshal(b []byte) (bno055.Offsets, error) {
	if len(b) != RecordSize {
		return bno055.Offsets{}, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidRecord, len(b), RecordSize)
	}
	var r record
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &r); err != nil {
		return bno055.Offsets{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return bno055.Offsets(r), nil
}
