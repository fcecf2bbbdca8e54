// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	hubWriteWait   = 2 * time.Second
	hubClientQueue = 16
)

// Hub fans messages out to every connected websocket client. A client that
// falls behind by more than hubClientQueue messages is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	last    []byte
	logger  *zap.SugaredLogger
}

// NewHub returns an empty hub.
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{clients: map[*websocket.Conn]chan []byte{}, logger: logger}
}

// Broadcast queues msg for every client. New clients get the last message
// on connect.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = msg
	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.logger.Warnf("ws: dropping slow client %s", conn.RemoteAddr())
			delete(h.clients, conn)
			close(ch)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams broadcasts until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("ws: upgrade error: %v", err)
		return
	}

	ch := make(chan []byte, hubClientQueue)
	h.mu.Lock()
	if h.last != nil {
		ch <- h.last
	}
	h.clients[conn] = ch
	h.mu.Unlock()
	h.logger.Debugf("ws: client %s connected", conn.RemoteAddr())

	go h.writeLoop(conn, ch)

	// Reads only detect the close; clients have nothing to say.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
	conn.Close()
}

func (h *Hub) writeLoop(conn *websocket.Conn, ch chan []byte) {
	for msg := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debugf("ws: write to %s: %v", conn.RemoteAddr(), err)
			h.remove(conn)
			conn.Close()
			return
		}
	}
	// ch is closed when the client left or was dropped as too slow.
	conn.Close()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
}
