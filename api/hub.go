package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"BlurServer/logger"
	"BlurServer/ndarray"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 8
)

// Hub streams every emitted frame to the connected websocket clients. Slow
// clients lose frames instead of stalling the engine.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	upgrader websocket.Upgrader
}

type session struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Publish encodes f once and queues it for every session.
func (h *Hub) Publish(f *ndarray.Frame) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.sessions) == 0 {
		return nil
	}
	msg, err := json.Marshal(ndarray.Encode(f))
	if err != nil {
		return err
	}
	for _, s := range h.sessions {
		select {
		case s.send <- msg:
		default:
			logger.Log().Debug("websocket client is behind, frame skipped", zap.String("session", s.id))
		}
	}
	return nil
}

// Len is the number of connected sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the error response
		return
	}
	s := &session{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	logger.Log().Info("websocket session opened", zap.String("session", s.id))

	go h.writePump(s)
	h.readPump(s)
}

func (h *Hub) release(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s.id]
	delete(h.sessions, s.id)
	h.mu.Unlock()
	if ok {
		close(s.send)
	}
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		logger.Log().Info("websocket session closed", zap.String("session", s.id))
	})
}

// readPump only watches for close and pong frames.
func (h *Hub) readPump(s *session) {
	defer h.release(s)
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.release(s)
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()
	for _, s := range sessions {
		h.release(s)
	}
}
