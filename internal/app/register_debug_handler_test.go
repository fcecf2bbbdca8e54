package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/imu"
)

type fakeRegs struct {
	mu      sync.Mutex
	mem     [256]byte
	readErr error
}

func newFakeRegs() *fakeRegs {
	f := &fakeRegs{}
	f.mem[0x00] = 0xA0
	f.mem[0x3D] = uint8(bno055.ModeNDOF)
	return f
}

func (f *fakeRegs) ReadRegisters(reg uint8, n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]byte, n)
	copy(out, f.mem[int(reg):])
	return out, nil
}

func (f *fakeRegs) WriteRegisters(reg uint8, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.mem[int(reg):], data)
	return nil
}

func (f *fakeRegs) SetOperatingMode(mode bno055.OperatingMode) error {
	return f.WriteRegisters(0x3D, []byte{uint8(mode)})
}

func (f *fakeRegs) OperatingMode() (bno055.OperatingMode, error) {
	b, err := f.ReadRegisters(0x3D, 1)
	if err != nil {
		return 0, err
	}
	return bno055.OperatingMode(b[0] & 0x0F), nil
}

func newTestRegisterHandler(t *testing.T, regs *fakeRegs) *RegisterDebugHandler {
	h := NewRegisterDebugHandler(regs, zaptest.NewLogger(t).Sugar())
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }
	return h
}

func TestRegisterDebugRead(t *testing.T) {
	regs := newFakeRegs()
	h := newTestRegisterHandler(t, regs)

	resp := h.Handle(RegisterCmd{Action: "read", Address: "0x00"})
	test.That(t, resp.Type, test.ShouldEqual, "register_data")
	test.That(t, resp.Address, test.ShouldEqual, "0x00")
	test.That(t, resp.Value, test.ShouldEqual, "0xA0")
	test.That(t, resp.Timestamp, test.ShouldEqual, "2026-03-01T12:30:00Z")

	resp = h.Handle(RegisterCmd{Action: "read", Address: "zz"})
	test.That(t, resp.Type, test.ShouldEqual, "error")

	regs.readErr = errors.New("i2c: remote I/O error")
	resp = h.Handle(RegisterCmd{Action: "read", Address: "0x00"})
	test.That(t, resp.Type, test.ShouldEqual, "error")
	test.That(t, resp.Message, test.ShouldContainSubstring, "remote I/O error")
}

func TestRegisterDebugWrite(t *testing.T) {
	regs := newFakeRegs()
	h := newTestRegisterHandler(t, regs)

	resp := h.Handle(RegisterCmd{Action: "write", Address: "0x41", Value: "0x21"})
	test.That(t, resp.Type, test.ShouldEqual, "register_data")
	test.That(t, resp.Message, test.ShouldEqual, "write successful")
	test.That(t, regs.mem[0x41], test.ShouldEqual, uint8(0x21))

	resp = h.Handle(RegisterCmd{Action: "write", Address: "0x00", Value: "0x00"})
	test.That(t, resp.Type, test.ShouldEqual, "error")
	test.That(t, resp.Message, test.ShouldContainSubstring, "read only")
	test.That(t, regs.mem[0x00], test.ShouldEqual, uint8(0xA0))

	resp = h.Handle(RegisterCmd{Action: "write", Address: "0x41", Value: "0x100"})
	test.That(t, resp.Type, test.ShouldEqual, "error")
}

func TestRegisterDebugWriteNeedsConfigMode(t *testing.T) {
	regs := newFakeRegs()
	h := newTestRegisterHandler(t, regs)

	for _, addr := range []string{"0x3F", "0x55", "0x6A"} {
		resp := h.Handle(RegisterCmd{Action: "write", Address: addr, Value: "0x20"})
		test.That(t, resp.Type, test.ShouldEqual, "error")
		test.That(t, resp.Message, test.ShouldContainSubstring, "CONFIG mode")
	}
	test.That(t, regs.mem[0x3F], test.ShouldEqual, uint8(0))
	test.That(t, regs.mem[0x55], test.ShouldEqual, uint8(0))
	test.That(t, regs.mem[0x6A], test.ShouldEqual, uint8(0))

	test.That(t, h.Handle(RegisterCmd{Action: "set_mode", Mode: "config"}).Type, test.ShouldEqual, "status")
	resp := h.Handle(RegisterCmd{Action: "write", Address: "0x55", Value: "0x20"})
	test.That(t, resp.Message, test.ShouldEqual, "write successful")
	test.That(t, regs.mem[0x55], test.ShouldEqual, uint8(0x20))

	regs.readErr = errors.New("bus down")
	resp = h.Handle(RegisterCmd{Action: "write", Address: "0x3F", Value: "0x20"})
	test.That(t, resp.Type, test.ShouldEqual, "error")
	test.That(t, regs.mem[0x3F], test.ShouldEqual, uint8(0))
}

func TestRegisterDebugReadAllAndExport(t *testing.T) {
	regs := newFakeRegs()
	regs.mem[0x6A] = 0x02
	h := newTestRegisterHandler(t, regs)

	resp := h.Handle(RegisterCmd{Action: "read_all"})
	test.That(t, resp.Type, test.ShouldEqual, "register_data")
	test.That(t, resp.Registers["0x00"], test.ShouldEqual, "0xA0")
	test.That(t, resp.Registers["0x6A"], test.ShouldEqual, "0x02")
	test.That(t, len(resp.Registers), test.ShouldEqual, len(h.regs))

	resp = h.Handle(RegisterCmd{Action: "export_config"})
	test.That(t, resp.Type, test.ShouldEqual, "export_config")
	test.That(t, resp.Filename, test.ShouldEqual, "bno055_20260301_123000_registers.json")
	var file RegisterConfigFile
	test.That(t, json.Unmarshal([]byte(resp.Config), &file), test.ShouldBeNil)
	test.That(t, file.Version, test.ShouldEqual, 1)
	test.That(t, file.Mode, test.ShouldEqual, "NDOF")
	test.That(t, file.Registers["0x3D"], test.ShouldEqual, "0x0C")
}

func TestRegisterDebugSetMode(t *testing.T) {
	regs := newFakeRegs()
	h := newTestRegisterHandler(t, regs)

	resp := h.Handle(RegisterCmd{Action: "set_mode", Mode: "imuplus"})
	test.That(t, resp.Type, test.ShouldEqual, "status")
	test.That(t, resp.Mode, test.ShouldEqual, "IMUPLUS")
	test.That(t, regs.mem[0x3D], test.ShouldEqual, uint8(bno055.ModeIMUPlus))

	resp = h.Handle(RegisterCmd{Action: "set_mode", Mode: "warp"})
	test.That(t, resp.Type, test.ShouldEqual, "error")

	test.That(t, h.Handle(RegisterCmd{}).Message, test.ShouldEqual, "missing or invalid action field")
	test.That(t, h.Handle(RegisterCmd{Action: "init"}).Message, test.ShouldEqual, "unknown action: init")
}

func TestRegisterDebugWebsocket(t *testing.T) {
	regs := newFakeRegs()
	srv := httptest.NewServer(newTestRegisterHandler(t, regs))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var resp RegisterResponse
	test.That(t, conn.ReadJSON(&resp), test.ShouldBeNil)
	test.That(t, resp.Type, test.ShouldEqual, "register_map")
	test.That(t, resp.RegisterMap[0].Name, test.ShouldEqual, "CHIP_ID")

	test.That(t, conn.WriteJSON(RegisterCmd{Action: "read", Address: "0x3D"}), test.ShouldBeNil)
	resp = RegisterResponse{}
	test.That(t, conn.ReadJSON(&resp), test.ShouldBeNil)
	test.That(t, resp.Value, test.ShouldEqual, "0x0C")
}

func TestSampleHandler(t *testing.T) {
	dev := &fakeDevice{statuses: []uint8{0xC0}, euler: bno055.Euler{Heading: 33}}
	srv := httptest.NewServer(SampleHandler(dev, zaptest.NewLogger(t).Sugar()))
	defer srv.Close()

	var s imu.Sample
	test.That(t, getJSON(t, srv.URL, &s), test.ShouldEqual, http.StatusOK)
	test.That(t, s.Euler.Heading, test.ShouldEqual, 33.0)
	test.That(t, s.Calibration.System, test.ShouldEqual, uint8(3))

	dev.mu.Lock()
	dev.eulerErr = errors.New("i2c: remote I/O error")
	dev.mu.Unlock()
	test.That(t, getJSON(t, srv.URL, &s), test.ShouldEqual, http.StatusInternalServerError)
}
