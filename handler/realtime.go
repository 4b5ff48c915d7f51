package handler

import (
	"net/http"
	"sync"
	"time"

	"nfcunha/deckhand/core/broker"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// RealtimeHandler attaches websocket clients to the live stream broker.
type RealtimeHandler struct {
	broker   *broker.Broker
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewRealtimeHandler creates the websocket handler. An allowed origin of "*" accepts any origin.
func NewRealtimeHandler(b *broker.Broker, allowedOrigins []string, logger *logrus.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		broker: b,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Serve handles GET /ws
// The connection lives until the client goes away; every subscription it made is
// closed with it.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	session := h.broker.Connect(sink)
	defer session.Close()

	done := make(chan struct{})
	defer close(done)
	go sink.keepAlive(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg broker.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithFields(logrus.Fields{
					"connection_id": session.ID(),
					"error":         err,
				}).Debug("WebSocket closed unexpectedly")
			}
			return
		}
		session.Handle(msg)
	}
}

// wsSink serializes writes to one websocket connection.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(frame broker.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}

func (s *wsSink) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
