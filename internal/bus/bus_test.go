// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"bytes"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"go.viam.com/test"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func TestI2CReadWrite(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x28, W: []byte{0x00}, R: []byte{0xA0}},
			{Addr: 0x28, W: []byte{0x55, 0x01, 0x00, 0xFF, 0xFF}},
			{Addr: 0x28, W: []byte{0x08}, R: []byte{1, 2, 3, 4, 5, 6}},
		},
		DontPanic: true,
	}
	tr := NewI2C(pb)

	id, err := tr.Read(0x28, 0x00, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldResemble, []byte{0xA0})

	test.That(t, tr.Write(0x28, 0x55, []byte{0x01, 0x00, 0xFF, 0xFF}), test.ShouldBeNil)

	data, err := tr.Read(0x28, 0x08, 6)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{1, 2, 3, 4, 5, 6})

	test.That(t, pb.Close(), test.ShouldBeNil)
	// the wrapped bus is not owned by the transport
	test.That(t, tr.Close(), test.ShouldBeNil)
}

type errBus struct {
	err error
}

func (b *errBus) String() string                    { return "errbus" }
func (b *errBus) Tx(addr uint16, w, r []byte) error { return b.err }
func (b *errBus) SetSpeed(f physic.Frequency) error { return nil }

func TestI2CNoDevice(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ENODEV, syscall.ENXIO, syscall.EREMOTEIO} {
		t.Run(errno.Error(), func(t *testing.T) {
			tr := NewI2C(&errBus{err: errno})
			_, err := tr.Read(0x28, 0x00, 1)
			test.That(t, errors.Is(err, ErrNoDevice), test.ShouldBeTrue)
		})
	}

	t.Run("errno formatted without wrapping", func(t *testing.T) {
		tr := NewI2C(&errBus{err: fmt.Errorf("sysfs-i2c: %v", syscall.ENODEV)})
		err := tr.Write(0x28, 0x3F, []byte{0x20})
		test.That(t, errors.Is(err, ErrNoDevice), test.ShouldBeTrue)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		tr := NewI2C(&errBus{err: syscall.EIO})
		_, err := tr.Read(0x28, 0x00, 1)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrNoDevice), test.ShouldBeFalse)
		test.That(t, errors.Is(err, syscall.EIO), test.ShouldBeTrue)
	})
}

// fakeSerial records what the transport sends and replays scripted replies.
type fakeSerial struct {
	sent    bytes.Buffer
	replies bytes.Buffer
}

func (f *fakeSerial) Write(p []byte) (int, error) { return f.sent.Write(p) }
func (f *fakeSerial) Read(p []byte) (int, error)  { return f.replies.Read(p) }

func TestUARTRead(t *testing.T) {
	f := &fakeSerial{}
	f.replies.Write([]byte{0xBB, 0x01, 0xA0})
	u := NewUART(f)

	data, err := u.Read(0x28, 0x00, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0xA0})
	test.That(t, f.sent.Bytes(), test.ShouldResemble, []byte{0xAA, 0x01, 0x00, 0x01})
}

func TestUARTWrite(t *testing.T) {
	f := &fakeSerial{}
	f.replies.Write([]byte{0xEE, 0x01})
	u := NewUART(f)

	test.That(t, u.Write(0x28, 0x3D, []byte{0x0C}), test.ShouldBeNil)
	test.That(t, f.sent.Bytes(), test.ShouldResemble, []byte{0xAA, 0x00, 0x3D, 0x01, 0x0C})
}

func TestUARTRetriesBusOverRun(t *testing.T) {
	f := &fakeSerial{}
	f.replies.Write([]byte{0xEE, 0x07, 0xEE, 0x07, 0xBB, 0x02, 0x10, 0x20})
	u := NewUART(f)

	data, err := u.Read(0x28, 0x67, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0x10, 0x20})
	test.That(t, f.sent.Len(), test.ShouldEqual, 12)
}

func TestUARTStatusError(t *testing.T) {
	f := &fakeSerial{}
	f.replies.Write([]byte{0xEE, 0x05})
	u := NewUART(f)

	err := u.Write(0x28, 0x00, []byte{0x01})
	var se *UARTStatusError
	test.That(t, errors.As(err, &se), test.ShouldBeTrue)
	test.That(t, se.Status, test.ShouldEqual, byte(0x05))
	test.That(t, err.Error(), test.ShouldContainSubstring, "register write disabled")
}

func TestUARTSilentChip(t *testing.T) {
	u := NewUART(&fakeSerial{})

	_, err := u.Read(0x28, 0x00, 1)
	test.That(t, errors.Is(err, ErrNoDevice), test.ShouldBeTrue)

	f := &fakeSerial{}
	f.replies.Write([]byte{0xBB})
	_, err = NewUART(f).Read(0x28, 0x00, 1)
	test.That(t, IsNoDevice(err), test.ShouldBeTrue)
}

func TestUARTInvalidLength(t *testing.T) {
	u := NewUART(&fakeSerial{})
	_, err := u.Read(0x28, 0x00, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, u.Write(0x28, 0x00, nil), test.ShouldNotBeNil)
}
