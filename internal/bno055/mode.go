// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bno055

import (
	"fmt"
	"strings"
)

// OperatingMode selects the active sensors and whether fusion runs.
type OperatingMode uint8

const (
	ModeConfig     OperatingMode = 0x00
	ModeAccOnly    OperatingMode = 0x01
	ModeMagOnly    OperatingMode = 0x02
	ModeGyroOnly   OperatingMode = 0x03
	ModeAccMag     OperatingMode = 0x04
	ModeAccGyro    OperatingMode = 0x05
	ModeMagGyro    OperatingMode = 0x06
	ModeAMG        OperatingMode = 0x07
	ModeIMUPlus    OperatingMode = 0x08
	ModeCompass    OperatingMode = 0x09
	ModeM4G        OperatingMode = 0x0A
	ModeNDOFFMCOff OperatingMode = 0x0B
	ModeNDOF       OperatingMode = 0x0C
)

var modeNames = map[OperatingMode]string{
	ModeConfig:     "CONFIG",
	ModeAccOnly:    "ACCONLY",
	ModeMagOnly:    "MAGONLY",
	ModeGyroOnly:   "GYRONLY",
	ModeAccMag:     "ACCMAG",
	ModeAccGyro:    "ACCGYRO",
	ModeMagGyro:    "MAGGYRO",
	ModeAMG:        "AMG",
	ModeIMUPlus:    "IMUPLUS",
	ModeCompass:    "COMPASS",
	ModeM4G:        "M4G",
	ModeNDOFFMCOff: "NDOF_FMC_OFF",
	ModeNDOF:       "NDOF",
}

// FusionModes lists the modes that report euler angles and quaternions.
var FusionModes = []OperatingMode{ModeIMUPlus, ModeCompass, ModeM4G, ModeNDOFFMCOff, ModeNDOF}

func (m OperatingMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("OperatingMode(0x%02X)", uint8(m))
}

// Valid reports whether m is a mode the chip knows.
func (m OperatingMode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// IsFusion reports whether the on-chip fusion engine runs in m.
func (m OperatingMode) IsFusion() bool {
	return m >= ModeIMUPlus && m <= ModeNDOF
}

// ParseOperatingMode accepts the datasheet names, case insensitive.
func ParseOperatingMode(s string) (OperatingMode, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("bno055: unknown operating mode %q", s)
}

// PowerMode is the PWR_MODE register value.
type PowerMode uint8

const (
	PowerNormal  PowerMode = 0x00
	PowerLow     PowerMode = 0x01
	PowerSuspend PowerMode = 0x02
)

func (p PowerMode) String() string {
	switch p {
	case PowerNormal:
		return "NORMAL"
	case PowerLow:
		return "LOW"
	case PowerSuspend:
		return "SUSPEND"
	}
	return fmt.Sprintf("PowerMode(0x%02X)", uint8(p))
}
