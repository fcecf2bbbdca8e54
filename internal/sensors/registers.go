// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"strconv"
	"strings"
)

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `json:"bits"` // "7:0", "3", etc.
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one register for the debug tool.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// Addr parses the hex address of r.
func (r RegisterInfo) Addr() uint8 {
	v, err := strconv.ParseUint(r.Address, 0, 8)
	if err != nil {
		panic(fmt.Sprintf("sensors: bad register address %q", r.Address))
	}
	return uint8(v)
}

// Writable reports whether the register accepts writes.
func (r RegisterInfo) Writable() bool {
	return strings.Contains(r.Access, "W")
}

func dataLSB(name, desc string) []BitField {
	return []BitField{{Bits: "7:0", Name: name + "[7:0]", Description: desc + " low byte", Values: "-32768..32767 with MSB"}}
}

func dataMSB(name, desc string) []BitField {
	return []BitField{{Bits: "7:0", Name: name + "[15:8]", Description: desc + " high byte"}}
}

// vectorRegs expands a 3 axis little endian block at base into six entries.
func vectorRegs(base uint8, prefix, desc, access string) []RegisterInfo {
	out := make([]RegisterInfo, 0, 6)
	for i, axis := range []string{"X", "Y", "Z"} {
		lsb := base + uint8(2*i)
		name := fmt.Sprintf("%s_%s", prefix, axis)
		out = append(out,
			RegisterInfo{Address: fmt.Sprintf("0x%02X", lsb), Name: name + "_LSB", Description: desc + " " + axis + " LSB",
				Access: access, Default: "0x00", BitFields: dataLSB(name, desc+" "+axis)},
			RegisterInfo{Address: fmt.Sprintf("0x%02X", lsb+1), Name: name + "_MSB", Description: desc + " " + axis + " MSB",
				Access: access, Default: "0x00", BitFields: dataMSB(name, desc+" "+axis)},
		)
	}
	return out
}

// BNO055RegisterMap returns metadata for the page 0 registers of the BNO055.
func BNO055RegisterMap() []RegisterInfo {
	regs := []RegisterInfo{
		// Identification
		{Address: "0x00", Name: "CHIP_ID", Description: "Chip identification", Access: "R", Default: "0xA0",
			BitFields: []BitField{{Bits: "7:0", Name: "CHIP_ID", Description: "Fixed chip id", Values: "0xA0"}}},
		{Address: "0x01", Name: "ACC_ID", Description: "Accelerometer identification", Access: "R", Default: "0xFB"},
		{Address: "0x02", Name: "MAG_ID", Description: "Magnetometer identification", Access: "R", Default: "0x32"},
		{Address: "0x03", Name: "GYR_ID", Description: "Gyroscope identification", Access: "R", Default: "0x0F"},
		{Address: "0x04", Name: "SW_REV_ID_LSB", Description: "Firmware revision LSB", Access: "R"},
		{Address: "0x05", Name: "SW_REV_ID_MSB", Description: "Firmware revision MSB", Access: "R"},
		{Address: "0x06", Name: "BL_REV_ID", Description: "Bootloader version", Access: "R"},
		{Address: "0x07", Name: "PAGE_ID", Description: "Register page select", Access: "RW", Default: "0x00",
			BitFields: []BitField{{Bits: "7:0", Name: "PAGE_ID", Description: "Active register page", Values: "0=page 0, 1=page 1"}}},
	}

	regs = append(regs, vectorRegs(0x08, "ACC_DATA", "Acceleration", "R")...)
	regs = append(regs, vectorRegs(0x0E, "MAG_DATA", "Magnetic field", "R")...)
	regs = append(regs, vectorRegs(0x14, "GYR_DATA", "Angular rate", "R")...)

	for i, name := range []string{"HEADING", "ROLL", "PITCH"} {
		lsb := 0x1A + uint8(2*i)
		regs = append(regs,
			RegisterInfo{Address: fmt.Sprintf("0x%02X", lsb), Name: "EUL_" + name + "_LSB", Description: "Euler " + strings.ToLower(name) + " LSB",
				Access: "R", Default: "0x00", BitFields: dataLSB("EUL_"+name, "Euler "+strings.ToLower(name))},
			RegisterInfo{Address: fmt.Sprintf("0x%02X", lsb+1), Name: "EUL_" + name + "_MSB", Description: "Euler " + strings.ToLower(name) + " MSB",
				Access: "R", Default: "0x00", BitFields: dataMSB("EUL_"+name, "Euler "+strings.ToLower(name))},
		)
	}
	for i, c := range []string{"W", "X", "Y", "Z"} {
		lsb := 0x20 + uint8(2*i)
		regs = append(regs,
			RegisterInfo{Address: fmt.Sprintf("0x%02X", lsb), Name: "QUA_DATA_" + c + "_LSB", Description: "Quaternion " + c + " LSB",
				Access: "R", Default: "0x00", BitFields: dataLSB("QUA_"+c, "Quaternion "+c)},
			RegisterInfo{Address: fmt.Sprintf("0x%02X", lsb+1), Name: "QUA_DATA_" + c + "_MSB", Description: "Quaternion " + c + " MSB",
				Access: "R", Default: "0x00", BitFields: dataMSB("QUA_"+c, "Quaternion "+c)},
		)
	}

	regs = append(regs, vectorRegs(0x28, "LIA_DATA", "Linear acceleration", "R")...)
	regs = append(regs, vectorRegs(0x2E, "GRV_DATA", "Gravity vector", "R")...)

	regs = append(regs, []RegisterInfo{
		// Status
		{Address: "0x34", Name: "TEMP", Description: "Temperature", Access: "R", Default: "0x00",
			BitFields: []BitField{{Bits: "7:0", Name: "TEMP", Description: "Temperature, two's complement", Values: "1 LSB = 1°C"}}},
		{Address: "0x35", Name: "CALIB_STAT", Description: "Calibration status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "SYS_CALIB", Description: "System calibration", Values: "0=not calibrated, 3=fully calibrated"},
				{Bits: "5:4", Name: "GYR_CALIB", Description: "Gyroscope calibration", Values: "0-3"},
				{Bits: "3:2", Name: "ACC_CALIB", Description: "Accelerometer calibration", Values: "0-3"},
				{Bits: "1:0", Name: "MAG_CALIB", Description: "Magnetometer calibration", Values: "0-3"},
			}},
		{Address: "0x36", Name: "ST_RESULT", Description: "Power on self test result", Access: "R", Default: "0x0F",
			BitFields: []BitField{
				{Bits: "3", Name: "ST_MCU", Description: "Microcontroller self test", Values: "1=passed"},
				{Bits: "2", Name: "ST_GYR", Description: "Gyroscope self test", Values: "1=passed"},
				{Bits: "1", Name: "ST_MAG", Description: "Magnetometer self test", Values: "1=passed"},
				{Bits: "0", Name: "ST_ACC", Description: "Accelerometer self test", Values: "1=passed"},
			}},
		{Address: "0x37", Name: "INT_STA", Description: "Interrupt status", Access: "R", Default: "0x00"},
		{Address: "0x38", Name: "SYS_CLK_STATUS", Description: "System clock status", Access: "R", Default: "0x00",
			BitFields: []BitField{{Bits: "0", Name: "ST_MAIN_CLK", Description: "Clock source switch", Values: "0=free to configure, 1=in configuration"}}},
		{Address: "0x39", Name: "SYS_STATUS", Description: "System status", Access: "R", Default: "0x00",
			BitFields: []BitField{{Bits: "7:0", Name: "SYS_STATUS", Description: "System status code",
				Values: "0=idle, 1=error, 2=init peripherals, 3=init, 4=self test, 5=fusion running, 6=running without fusion"}}},
		{Address: "0x3A", Name: "SYS_ERR", Description: "System error", Access: "R", Default: "0x00",
			BitFields: []BitField{{Bits: "7:0", Name: "SYS_ERR", Description: "Error code when SYS_STATUS=1",
				Values: "0=no error, 1=peripheral init, 2=system init, 3=self test, 4=map value range, 5=map address range, 6=map write, 7=low power not available, 8=accel power mode, 9=fusion config, 10=sensor config"}}},

		// Configuration
		{Address: "0x3B", Name: "UNIT_SEL", Description: "Output unit selection", Access: "RW", Default: "0x80",
			BitFields: []BitField{
				{Bits: "7", Name: "ORI_ANDROID_WINDOWS", Description: "Orientation convention", Values: "0=Windows, 1=Android"},
				{Bits: "4", Name: "TEMP_UNIT", Description: "Temperature unit", Values: "0=°C, 1=°F"},
				{Bits: "2", Name: "EUL_UNIT", Description: "Euler unit", Values: "0=degrees, 1=radians"},
				{Bits: "1", Name: "GYR_UNIT", Description: "Angular rate unit", Values: "0=dps, 1=rps"},
				{Bits: "0", Name: "ACC_UNIT", Description: "Acceleration unit", Values: "0=m/s², 1=mg"},
			}},
		{Address: "0x3D", Name: "OPR_MODE", Description: "Operating mode", Access: "RW", Default: "0x1C",
			BitFields: []BitField{{Bits: "3:0", Name: "OPR_MODE", Description: "Operating mode",
				Values: "0=CONFIG, 1=ACCONLY, 2=MAGONLY, 3=GYRONLY, 4=ACCMAG, 5=ACCGYRO, 6=MAGGYRO, 7=AMG, 8=IMUPLUS, 9=COMPASS, 10=M4G, 11=NDOF_FMC_OFF, 12=NDOF"}}},
		{Address: "0x3E", Name: "PWR_MODE", Description: "Power mode", Access: "RW", Default: "0x00",
			BitFields: []BitField{{Bits: "1:0", Name: "PWR_MODE", Description: "Power mode", Values: "0=normal, 1=low power, 2=suspend"}}},
		{Address: "0x3F", Name: "SYS_TRIGGER", Description: "System trigger", Access: "W", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "CLK_SEL", Description: "Oscillator select", Values: "0=internal, 1=external crystal"},
				{Bits: "6", Name: "RST_INT", Description: "Reset interrupt status", Values: "1=reset"},
				{Bits: "5", Name: "RST_SYS", Description: "System reset", Values: "1=reset"},
				{Bits: "0", Name: "SELF_TEST", Description: "Trigger self test", Values: "1=run"},
			}},
		{Address: "0x40", Name: "TEMP_SOURCE", Description: "Temperature source", Access: "RW", Default: "0x00",
			BitFields: []BitField{{Bits: "1:0", Name: "TEMP_SOURCE", Description: "Temperature sensor", Values: "0=accelerometer, 1=gyroscope"}}},
		{Address: "0x41", Name: "AXIS_MAP_CONFIG", Description: "Axis remap", Access: "RW", Default: "0x24",
			BitFields: []BitField{
				{Bits: "5:4", Name: "REMAPPED_Z", Description: "Source of Z", Values: "0=X, 1=Y, 2=Z"},
				{Bits: "3:2", Name: "REMAPPED_Y", Description: "Source of Y", Values: "0=X, 1=Y, 2=Z"},
				{Bits: "1:0", Name: "REMAPPED_X", Description: "Source of X", Values: "0=X, 1=Y, 2=Z"},
			}},
		{Address: "0x42", Name: "AXIS_MAP_SIGN", Description: "Axis sign", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "2", Name: "SIGN_X", Description: "X sign", Values: "0=positive, 1=negative"},
				{Bits: "1", Name: "SIGN_Y", Description: "Y sign", Values: "0=positive, 1=negative"},
				{Bits: "0", Name: "SIGN_Z", Description: "Z sign", Values: "0=positive, 1=negative"},
			}},
	}...)

	// Calibration offsets, only writable in CONFIG mode
	regs = append(regs, vectorRegs(0x55, "ACC_OFFSET", "Accelerometer offset", "RW")...)
	regs = append(regs, vectorRegs(0x5B, "MAG_OFFSET", "Magnetometer offset", "RW")...)
	regs = append(regs, vectorRegs(0x61, "GYR_OFFSET", "Gyroscope offset", "RW")...)
	regs = append(regs,
		RegisterInfo{Address: "0x67", Name: "ACC_RADIUS_LSB", Description: "Accelerometer radius LSB", Access: "RW", Default: "0x00", BitFields: dataLSB("ACC_RADIUS", "Accelerometer radius")},
		RegisterInfo{Address: "0x68", Name: "ACC_RADIUS_MSB", Description: "Accelerometer radius MSB", Access: "RW", Default: "0x00", BitFields: dataMSB("ACC_RADIUS", "Accelerometer radius")},
		RegisterInfo{Address: "0x69", Name: "MAG_RADIUS_LSB", Description: "Magnetometer radius LSB", Access: "RW", Default: "0x00", BitFields: dataLSB("MAG_RADIUS", "Magnetometer radius")},
		RegisterInfo{Address: "0x6A", Name: "MAG_RADIUS_MSB", Description: "Magnetometer radius MSB", Access: "RW", Default: "0x00", BitFields: dataMSB("MAG_RADIUS", "Magnetometer radius")},
	)
	return regs
}
