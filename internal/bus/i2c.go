// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// I2C is a Transport over a periph I2C bus.
type I2C struct {
	bus    i2c.Bus
	closer i2c.BusCloser
}

// NewI2C wraps an already opened bus. The caller keeps ownership of b.
func NewI2C(b i2c.Bus) *I2C {
	return &I2C{bus: b}
}

// OpenI2C initializes the periph host drivers and opens the named bus
// ("" selects the first one available). speed is ignored when zero.
func OpenI2C(name string, speed physic.Frequency) (*I2C, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	if speed != 0 {
		if err := b.SetSpeed(speed); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("i2c %s set speed %s: %w", b, speed, err)
		}
	}
	return &I2C{bus: b, closer: b}, nil
}

// Bus returns the underlying bus so other devices on it, such as a
// display, can share it.
func (t *I2C) Bus() i2c.Bus {
	return t.bus
}

// Read implements Transport.
func (t *I2C) Read(addr, reg uint8, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := t.bus.Tx(uint16(addr), []byte{reg}, r); err != nil {
		return nil, t.wrap(addr, reg, err)
	}
	return r, nil
}

// Write implements Transport.
func (t *I2C) Write(addr, reg uint8, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := t.bus.Tx(uint16(addr), w, nil); err != nil {
		return t.wrap(addr, reg, err)
	}
	return nil
}

// Close releases the bus if it was opened by OpenI2C.
func (t *I2C) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

func (t *I2C) String() string {
	return fmt.Sprintf("i2c(%s)", t.bus)
}

func (t *I2C) wrap(addr, reg uint8, err error) error {
	if IsNoDevice(err) {
		return fmt.Errorf("i2c 0x%02X reg 0x%02X: %w (%v)", addr, reg, ErrNoDevice, err)
	}
	return fmt.Errorf("i2c 0x%02X reg 0x%02X: %w", addr, reg, err)
}
