// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus provides the register-addressed transports the BNO055 driver
// talks through: Linux I2C via periph and the chip's own UART framing.
package bus

import (
	"errors"
	"strings"
	"syscall"
)

// ErrNoDevice is returned when nothing acknowledges the transfer. The BNO055
// does this for a few milliseconds after a soft reset, so callers polling the
// chip may treat it as "not ready yet".
var ErrNoDevice = errors.New("bus: device not present")

// Transport reads and writes consecutive registers of a device.
type Transport interface {
	// Read returns exactly n bytes starting at register reg of device addr.
	Read(addr, reg uint8, n int) ([]byte, error)
	// Write writes data starting at register reg of device addr.
	Write(addr, reg uint8, data []byte) error
}

// notPresentErrnos are the errno values the kernel reports when an I2C
// address is not acknowledged.
var notPresentErrnos = []syscall.Errno{syscall.ENODEV, syscall.ENXIO, syscall.EREMOTEIO}

// IsNoDevice reports whether err means the device did not answer.
//
// periph's sysfs driver formats the errno with %v, so the errno text is
// matched as well as the wrapped value.
func IsNoDevice(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoDevice) {
		return true
	}
	msg := err.Error()
	for _, e := range notPresentErrnos {
		if errors.Is(err, e) || strings.HasSuffix(msg, e.Error()) {
			return true
		}
	}
	return false
}
