// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"errors"
	"fmt"
	"io"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

// BNO055 UART framing (datasheet section 4.7).
const (
	uartStart       = 0xAA
	uartOpWrite     = 0x00
	uartOpRead      = 0x01
	uartReadOK      = 0xBB
	uartAck         = 0xEE
	uartMaxLength   = 128
	uartWriteOK     = 0x01
	uartBusOverRun  = 0x07
	uartDefaultBaud = 115200
)

var uartStatusText = map[byte]string{
	0x02: "read fail",
	0x03: "write fail",
	0x04: "invalid register address",
	0x05: "register write disabled",
	0x06: "wrong start byte",
	0x07: "bus over run",
	0x08: "max length error",
	0x09: "min length error",
	0x0A: "receive character timeout",
}

// UARTStatusError is a non-success acknowledgement from the chip.
type UARTStatusError struct {
	Reg    uint8
	Status byte
}

func (e *UARTStatusError) Error() string {
	text, ok := uartStatusText[e.Status]
	if !ok {
		text = "unknown status"
	}
	return fmt.Sprintf("uart reg 0x%02X: status 0x%02X (%s)", e.Reg, e.Status, text)
}

// UART is a Transport speaking the BNO055 UART protocol. The device address
// is ignored since the link is point to point.
type UART struct {
	mu      sync.Mutex
	rw      io.ReadWriter
	closer  io.Closer
	retries int
}

// NewUART wraps an open serial link.
func NewUART(rw io.ReadWriter) *UART {
	u := &UART{rw: rw, retries: 5}
	if c, ok := rw.(io.Closer); ok {
		u.closer = c
	}
	return u
}

// OpenUART opens port at baud (115200 when zero) with a 100ms read timeout so
// a silent chip surfaces as ErrNoDevice instead of blocking forever.
func OpenUART(port string, baud uint) (*UART, error) {
	if baud == 0 {
		baud = uartDefaultBaud
	}
	p, err := serial.Open(serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("uart open %s: %w", port, err)
	}
	return NewUART(p), nil
}

// Read implements Transport.
func (u *UART) Read(_, reg uint8, n int) ([]byte, error) {
	if n <= 0 || n > uartMaxLength {
		return nil, fmt.Errorf("uart reg 0x%02X: invalid length %d", reg, n)
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	var err error
	for attempt := 0; attempt <= u.retries; attempt++ {
		var data []byte
		data, err = u.readOnce(reg, n)
		if !isOverRun(err) {
			return data, err
		}
	}
	return nil, err
}

// Write implements Transport.
func (u *UART) Write(_, reg uint8, data []byte) error {
	if len(data) == 0 || len(data) > uartMaxLength {
		return fmt.Errorf("uart reg 0x%02X: invalid length %d", reg, len(data))
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	var err error
	for attempt := 0; attempt <= u.retries; attempt++ {
		err = u.writeOnce(reg, data)
		if !isOverRun(err) {
			return err
		}
	}
	return err
}

// Close closes the serial port if the link supports it.
func (u *UART) Close() error {
	if u.closer == nil {
		return nil
	}
	return u.closer.Close()
}

func (u *UART) readOnce(reg uint8, n int) ([]byte, error) {
	if _, err := u.rw.Write([]byte{uartStart, uartOpRead, reg, byte(n)}); err != nil {
		return nil, fmt.Errorf("uart reg 0x%02X: %w", reg, err)
	}
	hdr, err := u.recv(reg, 2)
	if err != nil {
		return nil, err
	}
	switch hdr[0] {
	case uartReadOK:
		if int(hdr[1]) != n {
			return nil, fmt.Errorf("uart reg 0x%02X: asked for %d bytes, chip announced %d", reg, n, hdr[1])
		}
		return u.recv(reg, n)
	case uartAck:
		return nil, &UARTStatusError{Reg: reg, Status: hdr[1]}
	default:
		return nil, fmt.Errorf("uart reg 0x%02X: unexpected response byte 0x%02X", reg, hdr[0])
	}
}

func (u *UART) writeOnce(reg uint8, data []byte) error {
	frame := make([]byte, 0, len(data)+4)
	frame = append(frame, uartStart, uartOpWrite, reg, byte(len(data)))
	frame = append(frame, data...)
	if _, err := u.rw.Write(frame); err != nil {
		return fmt.Errorf("uart reg 0x%02X: %w", reg, err)
	}
	ack, err := u.recv(reg, 2)
	if err != nil {
		return err
	}
	if ack[0] != uartAck {
		return fmt.Errorf("uart reg 0x%02X: unexpected response byte 0x%02X", reg, ack[0])
	}
	if ack[1] != uartWriteOK {
		return &UARTStatusError{Reg: reg, Status: ack[1]}
	}
	return nil
}

func (u *UART) recv(reg uint8, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(u.rw, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("uart reg 0x%02X: %w", reg, ErrNoDevice)
		}
		return nil, fmt.Errorf("uart reg 0x%02X: %w", reg, err)
	}
	return b, nil
}

func isOverRun(err error) bool {
	var se *UARTStatusError
	return errors.As(err, &se) && se.Status == uartBusOverRun
}
