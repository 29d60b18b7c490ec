package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/TayDaGreatDIY/phase-2-complete/internal/metrics"
	"github.com/TayDaGreatDIY/phase-2-complete/internal/protocol"
	"github.com/TayDaGreatDIY/phase-2-complete/internal/realtime"
)

const maxFrameSize = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients connect from mobile apps and courtside kiosks
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" {
		return c.String(http.StatusBadRequest, "Missing user id")
	}

	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		metrics.WebSocketConnectionsRejected.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected", "ip", ip, "reason", string(reason))
		return c.String(http.StatusTooManyRequests, "Connection limit reached")
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	connectionID, err := s.registry.Connect(conn, userID)
	if err != nil {
		slog.Error("Failed to register connection", "user_id", userID, "error", err)
		_ = conn.Close()
		return nil
	}
	metrics.WebSocketConnectionsTotal.Inc()

	// Read pump — blocks until the connection closes.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.dispatchFrame(connectionID, data)
	}

	s.registry.Disconnect(connectionID)

	return nil //nolint:nilerr // ReadMessage err is block-scoped; outer err is nil
}

// dispatchFrame decodes one inbound control frame and routes it to the
// registry. Malformed JSON gets an error reply and the connection stays open;
// unrecognized frames are ignored.
func (s *Server) dispatchFrame(connectionID uuid.UUID, data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		metrics.WebSocketMalformedFramesTotal.Inc()
		s.registry.SendTo(connectionID, realtime.NewMessage(realtime.TypeError, map[string]any{
			"message": "Invalid JSON message",
		}))
		return
	}

	switch f := frame.(type) {
	case protocol.SubscribeCourt:
		s.registry.Subscribe(realtime.TopicCourt, f.CourtID, connectionID)
	case protocol.UnsubscribeCourt:
		s.registry.Unsubscribe(realtime.TopicCourt, f.CourtID, connectionID)
	case protocol.SubscribeGame:
		s.registry.Subscribe(realtime.TopicGame, f.GameID, connectionID)
	case protocol.SubscribeTournament:
		s.registry.Subscribe(realtime.TopicTournament, f.TournamentID, connectionID)
	case protocol.Ping:
		s.registry.SendTo(connectionID, realtime.NewMessage(realtime.TypePong, nil))
	case protocol.Unknown:
		slog.Debug("Ignoring unrecognized frame", "connection_id", connectionID.String(), "type", f.Type)
	}
}
