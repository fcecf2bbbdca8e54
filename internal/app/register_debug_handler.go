// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/sensors"
)

// RegisterAccess is the raw register interface the debug tool drives.
type RegisterAccess interface {
	ReadRegisters(reg uint8, n int) ([]byte, error)
	WriteRegisters(reg uint8, data []byte) error
	SetOperatingMode(mode bno055.OperatingMode) error
	OperatingMode() (bno055.OperatingMode, error)
}

// RegisterCmd is a websocket request from the register debug page.
type RegisterCmd struct {
	Action  string `json:"action"` // get_map, read, read_all, write, export_config, set_mode
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

// RegisterResponse is sent back for every request.
type RegisterResponse struct {
	Type        string                 `json:"type"` // register_data, register_map, status, export_config, error
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"`
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Mode        string                 `json:"mode,omitempty"`
	Config      string                 `json:"config,omitempty"`
	Filename    string                 `json:"filename,omitempty"`
	RegisterMap []sensors.RegisterInfo `json:"register_map,omitempty"`
}

// RegisterConfigFile is the exported register snapshot.
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Mode      string            `json:"mode"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// RegisterDebugHandler serves the register debug websocket.
type RegisterDebugHandler struct {
	dev      RegisterAccess
	regs     []sensors.RegisterInfo
	writable map[uint8]bool
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewRegisterDebugHandler returns a handler over the BNO055 page 0 map.
func NewRegisterDebugHandler(dev RegisterAccess, logger *zap.SugaredLogger) *RegisterDebugHandler {
	regs := sensors.BNO055RegisterMap()
	writable := make(map[uint8]bool, len(regs))
	for _, r := range regs {
		if r.Writable() {
			writable[r.Addr()] = true
		}
	}
	return &RegisterDebugHandler{dev: dev, regs: regs, writable: writable, logger: logger, now: time.Now}
}

// ServeHTTP upgrades to a websocket, sends the register map and answers
// commands until the client disconnects.
func (h *RegisterDebugHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(h.Handle(RegisterCmd{Action: "get_map"})); err != nil {
		h.logger.Warnf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var cmd RegisterCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warnf("register_debug: websocket error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(h.Handle(cmd)); err != nil {
			h.logger.Warnf("register_debug: write error: %v", err)
			return
		}
	}
}

// Handle answers one command.
func (h *RegisterDebugHandler) Handle(cmd RegisterCmd) RegisterResponse {
	switch cmd.Action {
	case "get_map":
		return RegisterResponse{Type: "register_map", RegisterMap: h.regs}
	case "read":
		return h.handleRead(cmd)
	case "read_all":
		regs, err := h.readAll()
		if err != nil {
			return errorResponse("read all error: %v", err)
		}
		return RegisterResponse{Type: "register_data", Registers: regs, Timestamp: h.timestamp()}
	case "write":
		return h.handleWrite(cmd)
	case "export_config":
		return h.handleExportConfig()
	case "set_mode":
		return h.handleSetMode(cmd)
	case "":
		return errorResponse("missing or invalid action field")
	}
	return errorResponse("unknown action: %s", cmd.Action)
}

func (h *RegisterDebugHandler) handleRead(cmd RegisterCmd) RegisterResponse {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse("invalid address format: %q", cmd.Address)
	}
	b, err := h.dev.ReadRegisters(addr, 1)
	if err != nil {
		return errorResponse("read error: %v", err)
	}
	return RegisterResponse{
		Type:      "register_data",
		Address:   hexByte(addr),
		Value:     hexByte(b[0]),
		Timestamp: h.timestamp(),
	}
}

func (h *RegisterDebugHandler) handleWrite(cmd RegisterCmd) RegisterResponse {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse("invalid address format: %q", cmd.Address)
	}
	value, err := parseHexByte(cmd.Value)
	if err != nil {
		return errorResponse("invalid value format: %q", cmd.Value)
	}
	if !h.writable[addr] {
		return errorResponse("register %s is read only", hexByte(addr))
	}
	if configModeOnly(addr) {
		mode, err := h.dev.OperatingMode()
		if err != nil {
			return errorResponse("write error: %v", err)
		}
		if mode != bno055.ModeConfig {
			return errorResponse("register %s can only be written in CONFIG mode (now %s)", hexByte(addr), mode)
		}
	}
	if err := h.dev.WriteRegisters(addr, []byte{value}); err != nil {
		return errorResponse("write error: %v", err)
	}
	h.logger.Infof("register_debug: wrote %s to %s", hexByte(value), hexByte(addr))
	return RegisterResponse{
		Type:      "register_data",
		Address:   hexByte(addr),
		Value:     hexByte(value),
		Timestamp: h.timestamp(),
		Message:   "write successful",
	}
}

func (h *RegisterDebugHandler) handleSetMode(cmd RegisterCmd) RegisterResponse {
	mode, err := bno055.ParseOperatingMode(cmd.Mode)
	if err != nil {
		return errorResponse("%v", err)
	}
	if err := h.dev.SetOperatingMode(mode); err != nil {
		return errorResponse("set mode error: %v", err)
	}
	return RegisterResponse{Type: "status", Mode: mode.String(), Message: "operating mode updated"}
}

func (h *RegisterDebugHandler) handleExportConfig() RegisterResponse {
	regs, err := h.readAll()
	if err != nil {
		return errorResponse("export error: %v", err)
	}
	mode, err := h.dev.OperatingMode()
	if err != nil {
		return errorResponse("export error: %v", err)
	}
	now := h.now()
	file := RegisterConfigFile{
		Version:   1,
		Device:    "bno055",
		Mode:      mode.String(),
		Timestamp: now.Format(time.RFC3339),
		Registers: regs,
	}
	data, err := json.Marshal(file)
	if err != nil {
		return errorResponse("export error: %v", err)
	}
	return RegisterResponse{
		Type:     "export_config",
		Message:  "config exported",
		Config:   string(data),
		Filename: fmt.Sprintf("bno055_%s_registers.json", now.Format("20060102_150405")),
	}
}

// readAll reads page 0 in one burst and keeps the mapped registers.
func (h *RegisterDebugHandler) readAll() (map[string]string, error) {
	var last uint8
	for _, r := range h.regs {
		if a := r.Addr(); a > last {
			last = a
		}
	}
	raw, err := h.dev.ReadRegisters(0, int(last)+1)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(h.regs))
	for _, r := range h.regs {
		a := r.Addr()
		if int(a) < len(raw) {
			out[hexByte(a)] = hexByte(raw[a])
		}
	}
	return out, nil
}

func (h *RegisterDebugHandler) timestamp() string {
	return h.now().Format(time.RFC3339)
}

// configModeOnly reports whether the chip ignores or misbehaves on writes to
// addr outside CONFIG mode: SYS_TRIGGER and the offset/radius block.
func configModeOnly(addr uint8) bool {
	return addr == 0x3F || (addr >= 0x55 && addr <= 0x6A)
}

func errorResponse(format string, args ...interface{}) RegisterResponse {
	return RegisterResponse{Type: "error", Message: fmt.Sprintf(format, args...)}
}

func parseHexByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	return uint8(v), err
}

func hexByte(b uint8) string {
	return fmt.Sprintf("0x%02X", b)
}

// SampleHandler serves one fresh sample per request as JSON.
func SampleHandler(r sensors.SampleReader, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		s, err := sensors.ReadSample(r)
		if err != nil {
			logger.Warnf("register_debug: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		if err := json.NewEncoder(w).Encode(s); err != nil {
			logger.Warnf("register_debug: json encode error: %v", err)
		}
	}
}

// RunRegisterDebug opens the BNO055 and serves the register debug tool on
// addr until ctx is done.
func RunRegisterDebug(ctx context.Context, cfg *config.Config, addr string, logger *zap.SugaredLogger) (err error) {
	dev, err := sensors.OpenIMU(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dev.Close()) }()

	mux := http.NewServeMux()
	mux.Handle("/ws", NewRegisterDebugHandler(dev, logger))
	mux.Handle("/api/sample", SampleHandler(dev, logger))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return serveUntilDone(ctx, srv, logger)
}
