package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cardiocare-risk-server/internal/domain"
	"github.com/cardiocare-risk-server/internal/middleware"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// RecordEvent is one message on the record stream.
type RecordEvent struct {
	Type      string                `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	Record    *domain.PatientRecord `json:"record"`
}

const recordAppendedEvent = "record.appended"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleRecordStream upgrades to a websocket and pushes every record saved
// after the connection opened. Client messages are read and discarded.
func (s *Server) handleRecordStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.WithError(err).Warn("Record stream upgrade failed")
		return
	}
	defer ws.Close()

	updates, cancel := s.records.Subscribe()
	defer cancel()

	log := s.logger.WithField("request_id", c.GetString(middleware.RequestIDKey))
	log.Info("Record stream subscriber connected")
	defer log.Info("Record stream subscriber disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-updates:
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			event := RecordEvent{Type: recordAppendedEvent, Timestamp: time.Now().UTC(), Record: rec}
			if err := ws.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
