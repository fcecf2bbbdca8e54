// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/relabs-tech/bno055_node/internal/bno055"
	"github.com/relabs-tech/bno055_node/internal/calibration"
	"github.com/relabs-tech/bno055_node/internal/config"
	"github.com/relabs-tech/bno055_node/internal/sensors"
)

// WSMessage is a request from the calibration page.
type WSMessage struct {
	Action string `json:"action"` // status, wait, cancel, save, load, reset
}

// WSResponse is pushed to the calibration page.
type WSResponse struct {
	Type       string              `json:"type"` // status, progress, complete, saved, loaded, reset, cancelled, error
	Status     *calibration.Status `json:"status,omitempty"`
	Calibrated bool                `json:"calibrated,omitempty"`
	Offsets    *bno055.Offsets     `json:"offsets,omitempty"`
	Message    string              `json:"message,omitempty"`
}

// CalibrationHandler serves the interactive calibration websocket.
type CalibrationHandler struct {
	Manager      *calibration.Manager
	Store        *calibration.Store
	PollInterval time.Duration
	Logger       *zap.SugaredLogger
}

// calibrationSession is one websocket client. Writes come from the read
// loop and the wait goroutine, so they go through send.
type calibrationSession struct {
	h    *CalibrationHandler
	conn *websocket.Conn

	writeMu sync.Mutex

	mu         sync.Mutex
	cancelWait context.CancelFunc
	waitDone   chan struct{}
}

// ServeHTTP implements http.Handler.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warnf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &calibrationSession{h: h, conn: conn}
	defer s.stopWait()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Warnf("calibration: websocket read error: %v", err)
			}
			return
		}
		s.handle(ctx, msg)
	}
}

func (s *calibrationSession) handle(ctx context.Context, msg WSMessage) {
	h := s.h
	switch msg.Action {
	case "status":
		st, err := h.Manager.Poll(ctx)
		if err != nil {
			s.sendError(err)
			return
		}
		s.send(WSResponse{Type: "status", Status: &st, Calibrated: h.Manager.IsFullyCalibrated(st)})

	case "wait":
		s.startWait(ctx)

	case "cancel":
		if s.stopWait() {
			s.send(WSResponse{Type: "cancelled", Message: "calibration wait cancelled"})
		}

	case "save":
		o, err := h.Manager.Export(ctx)
		if err != nil {
			s.sendError(err)
			return
		}
		if err := h.Store.Save(o); err != nil {
			s.sendError(err)
			return
		}
		s.send(WSResponse{Type: "saved", Offsets: &o, Message: h.Store.Path})

	case "load":
		o, ok := h.Store.Load()
		if !ok {
			s.send(WSResponse{Type: "error", Message: "no stored calibration"})
			return
		}
		if err := h.Manager.Apply(ctx, o); err != nil {
			s.sendError(err)
			return
		}
		s.send(WSResponse{Type: "loaded", Offsets: &o})

	case "reset":
		if err := h.Store.Delete(); err != nil {
			s.sendError(err)
			return
		}
		s.send(WSResponse{Type: "reset", Message: "stored calibration removed"})

	default:
		s.send(WSResponse{Type: "error", Message: "unknown action: " + msg.Action})
	}
}

func (s *calibrationSession) startWait(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelWait != nil {
		s.send(WSResponse{Type: "error", Message: "calibration wait already running"})
		return
	}
	waitCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancelWait, s.waitDone = cancel, done

	go func() {
		defer close(done)
		defer s.clearWait(done)

		h := s.h
		st, err := h.Manager.WaitCalibrated(waitCtx, h.PollInterval, func(st calibration.Status) {
			s.send(WSResponse{Type: "progress", Status: &st, Calibrated: h.Manager.IsFullyCalibrated(st)})
		})
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			s.sendError(err)
			return
		}
		o, err := h.Manager.Export(waitCtx)
		if err != nil {
			s.sendError(err)
			return
		}
		s.send(WSResponse{Type: "complete", Status: &st, Calibrated: true, Offsets: &o})
	}()
}

// stopWait cancels a running wait and blocks until it is gone. It reports
// whether there was one.
func (s *calibrationSession) stopWait() bool {
	s.mu.Lock()
	cancel, done := s.cancelWait, s.waitDone
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (s *calibrationSession) clearWait(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waitDone == done {
		s.cancelWait, s.waitDone = nil, nil
	}
}

func (s *calibrationSession) send(resp WSResponse) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(resp); err != nil {
		s.h.Logger.Debugf("calibration: websocket write error: %v", err)
	}
}

func (s *calibrationSession) sendError(err error) {
	s.h.Logger.Warnf("calibration: %v", err)
	s.send(WSResponse{Type: "error", Message: err.Error()})
}

// RunCalibrationServer opens the BNO055 and serves the interactive
// calibration page on addr until ctx is done.
func RunCalibrationServer(ctx context.Context, cfg *config.Config, addr string, logger *zap.SugaredLogger) (err error) {
	dev, err := sensors.OpenIMU(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dev.Close()) }()

	h := &CalibrationHandler{
		Manager:      calibration.NewManager(dev, cfg.CalibrationPolicy, logger),
		Store:        calibration.NewStore(cfg.CalibrationFile, logger),
		PollInterval: cfg.CalibrationPollInterval,
		Logger:       logger,
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/calibration.html")
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return serveUntilDone(ctx, srv, logger)
}
