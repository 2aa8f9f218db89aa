package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"crowdnav/crowd"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// command is one queued client mutation, applied between ticks so the
// engine itself never sees concurrent calls.
type command struct {
	Type    string  `json:"type"`
	AgentID string  `json:"agentId,omitempty"`
	Group   string  `json:"group,omitempty"`
	DestID  string  `json:"destId,omitempty"`
	X       float64 `json:"x"`
	Z       float64 `json:"z"`
	Radius  float64 `json:"radius,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
}

type stateMessage struct {
	Type       string                `json:"type"`
	Tick       uint64                `json:"tick"`
	Agents     []crowd.AgentSnapshot `json:"agents"`
	Stats      crowd.Stats           `json:"stats"`
	ServerTime int64                 `json:"serverTime"`
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// hub tracks websocket subscribers and buffers their commands for the tick
// loop. It is the only concurrent edge of the process.
type hub struct {
	logger *zap.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	pending     []command
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		logger:      logger,
		subscribers: make(map[*subscriber]struct{}),
	}
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	sub := &subscriber{conn: conn}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(sub)
}

func (h *hub) readLoop(sub *subscriber) {
	defer func() {
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
		sub.conn.Close()
	}()
	for {
		var cmd command
		if err := sub.conn.ReadJSON(&cmd); err != nil {
			return
		}
		h.mu.Lock()
		h.pending = append(h.pending, cmd)
		h.mu.Unlock()
	}
}

// drainCommands hands the queued commands to the tick loop and resets the
// queue.
func (h *hub) drainCommands() []command {
	h.mu.Lock()
	defer h.mu.Unlock()
	drained := h.pending
	h.pending = nil
	return drained
}

// broadcast sends one state frame to every subscriber, dropping any whose
// write fails.
func (h *hub) broadcast(data []byte) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(data); err != nil {
			h.logger.Debug("dropping subscriber", zap.Error(err))
			h.mu.Lock()
			delete(h.subscribers, sub)
			h.mu.Unlock()
			sub.conn.Close()
		}
	}
}
