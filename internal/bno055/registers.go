// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bno055

import "fmt"

// ChipIDValue is what the CHIP_ID register reads on a BNO055.
const ChipIDValue = 0xA0

// Default and alternate (COM3 pulled high) I2C addresses.
const (
	DefaultAddress   = 0x28
	AlternateAddress = 0x29
)

// System trigger bits.
const (
	sysTriggerResetSys = 0x20
	sysTriggerClkSel   = 0x80
)

// Quantity identifies one entry of the page 0 register map.
type Quantity uint8

const (
	QChipID Quantity = iota
	QPageID
	QAccel
	QMag
	QGyro
	QEuler
	QQuaternion
	QLinearAccel
	QGravity
	QTemperature
	QCalibStat
	QSelfTest
	QSysStatus
	QSysErr
	QOprMode
	QPowerMode
	QSysTrigger
	QAccelOffset
	QMagOffset
	QGyroOffset
	QAccelRadius
	QMagRadius
	numQuantities
)

var (
	byteField = []FieldKind{U8}
	vec3      = []FieldKind{S16, S16, S16}
	vec4      = []FieldKind{S16, S16, S16, S16}
	scalar16  = []FieldKind{S16}
)

var registerMap = [numQuantities]RegisterSpec{
	QChipID:      {Name: "CHIP_ID", Address: 0x00, Fields: byteField, Scale: 1},
	QPageID:      {Name: "PAGE_ID", Address: 0x07, Fields: byteField, Scale: 1},
	QAccel:       {Name: "ACC_DATA", Address: 0x08, Fields: vec3, Scale: 1.0 / 100},
	QMag:         {Name: "MAG_DATA", Address: 0x0E, Fields: vec3, Scale: 1.0 / 16},
	QGyro:        {Name: "GYR_DATA", Address: 0x14, Fields: vec3, Scale: 1.0 / 900},
	QEuler:       {Name: "EUL_DATA", Address: 0x1A, Fields: vec3, Scale: 1.0 / 16},
	QQuaternion:  {Name: "QUA_DATA", Address: 0x20, Fields: vec4, Scale: 1.0 / (1 << 14)},
	QLinearAccel: {Name: "LIA_DATA", Address: 0x28, Fields: vec3, Scale: 1.0 / 100},
	QGravity:     {Name: "GRV_DATA", Address: 0x2E, Fields: vec3, Scale: 1.0 / 100},
	QTemperature: {Name: "TEMP", Address: 0x34, Fields: []FieldKind{S8}, Scale: 1},
	QCalibStat:   {Name: "CALIB_STAT", Address: 0x35, Fields: byteField, Scale: 1},
	QSelfTest:    {Name: "ST_RESULT", Address: 0x36, Fields: byteField, Scale: 1},
	QSysStatus:   {Name: "SYS_STATUS", Address: 0x39, Fields: byteField, Scale: 1},
	QSysErr:      {Name: "SYS_ERR", Address: 0x3A, Fields: byteField, Scale: 1},
	QOprMode:     {Name: "OPR_MODE", Address: 0x3D, Fields: byteField, Scale: 1},
	QPowerMode:   {Name: "PWR_MODE", Address: 0x3E, Fields: byteField, Scale: 1},
	QSysTrigger:  {Name: "SYS_TRIGGER", Address: 0x3F, Fields: byteField, Scale: 1},
	QAccelOffset: {Name: "ACC_OFFSET", Address: 0x55, Fields: vec3, Scale: 1},
	QMagOffset:   {Name: "MAG_OFFSET", Address: 0x5B, Fields: vec3, Scale: 1},
	QGyroOffset:  {Name: "GYR_OFFSET", Address: 0x61, Fields: vec3, Scale: 1},
	QAccelRadius: {Name: "ACC_RADIUS", Address: 0x67, Fields: scalar16, Scale: 1},
	QMagRadius:   {Name: "MAG_RADIUS", Address: 0x69, Fields: scalar16, Scale: 1},
}

// Spec returns the register layout of q.
func (q Quantity) Spec() RegisterSpec {
	if q >= numQuantities {
		panic(fmt.Sprintf("bno055: unknown quantity %d", q))
	}
	return registerMap[q]
}

func (q Quantity) String() string {
	if q >= numQuantities {
		return fmt.Sprintf("Quantity(%d)", uint8(q))
	}
	return registerMap[q].Name
}
