// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bno055

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortRead is returned when fewer bytes arrive than a register layout needs.
var ErrShortRead = errors.New("bno055: short read")

// FieldKind is the wire type of one field in a register block.
type FieldKind uint8

const (
	U8  FieldKind = iota // raw byte
	S8                   // two's complement byte
	S16                  // little-endian signed 16 bit
	U16                  // little-endian unsigned 16 bit
)

func (k FieldKind) size() int {
	switch k {
	case S16, U16:
		return 2
	default:
		return 1
	}
}

func (k FieldKind) bounds() (lo, hi float64) {
	switch k {
	case S8:
		return math.MinInt8, math.MaxInt8
	case S16:
		return math.MinInt16, math.MaxInt16
	case U16:
		return 0, math.MaxUint16
	default:
		return 0, math.MaxUint8
	}
}

// RegisterSpec describes where a quantity lives and how its bytes map to
// physical values: value = raw * Scale.
type RegisterSpec struct {
	Name    string
	Address uint8
	Fields  []FieldKind
	Scale   float64
}

// Len is the number of bytes the layout occupies.
func (s RegisterSpec) Len() int {
	n := 0
	for _, f := range s.Fields {
		n += f.size()
	}
	return n
}

// DecodeRaw unpacks raw into the integer value of every field.
func DecodeRaw(s RegisterSpec, raw []byte) ([]int32, error) {
	if len(raw) < s.Len() {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortRead, s.Name, s.Len(), len(raw))
	}
	out := make([]int32, len(s.Fields))
	off := 0
	for i, f := range s.Fields {
		switch f {
		case U8:
			out[i] = int32(raw[off])
		case S8:
			out[i] = int32(int8(raw[off]))
		case S16:
			out[i] = int32(int16(binary.LittleEndian.Uint16(raw[off:])))
		case U16:
			out[i] = int32(binary.LittleEndian.Uint16(raw[off:]))
		}
		off += f.size()
	}
	return out, nil
}

// Decode unpacks raw and applies the scale factor. With Scale == 1 the values
// are the untouched integers.
func Decode(s RegisterSpec, raw []byte) ([]float64, error) {
	ints, err := DecodeRaw(s, raw)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ints))
	for i, v := range ints {
		if s.Scale == 1 {
			out[i] = float64(v)
			continue
		}
		out[i] = float64(v) * s.Scale
	}
	return out, nil
}

// Encode divides each value by the scale factor, rounds to the nearest
// integer and packs the result.
func Encode(s RegisterSpec, values []float64) ([]byte, error) {
	if len(values) != len(s.Fields) {
		return nil, fmt.Errorf("bno055: %s takes %d values, got %d", s.Name, len(s.Fields), len(values))
	}
	out := make([]byte, s.Len())
	off := 0
	for i, f := range s.Fields {
		v := values[i]
		if s.Scale != 1 {
			v /= s.Scale
		}
		v = math.Round(v)
		if lo, hi := f.bounds(); math.IsNaN(v) || v < lo || v > hi {
			return nil, fmt.Errorf("bno055: %s field %d: %g out of range", s.Name, i, values[i])
		}
		switch f {
		case U8, S8:
			out[off] = byte(int32(v))
		case S16:
			binary.LittleEndian.PutUint16(out[off:], uint16(int16(v)))
		case U16:
			binary.LittleEndian.PutUint16(out[off:], uint16(v))
		}
		off += f.size()
	}
	return out, nil
}
