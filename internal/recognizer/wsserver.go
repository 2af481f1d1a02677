// SPDX-License-Identifier: MIT

package recognizer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/signfleet/fleetd/internal/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server hosts the data-plane WebSocket endpoint for one worker process:
// one connection per client, each backed by its own Session.
type Server struct {
	manager *Manager
	logger  zerolog.Logger
}

// NewServer builds a data-plane Server over manager.
func NewServer(manager *Manager) *Server {
	return &Server{manager: manager, logger: log.WithComponent("recognizer-wsserver")}
}

// ServeHTTP upgrades the connection and runs its read loop until the client
// disconnects or a fatal transport error occurs. Malformed individual
// messages are reported with an error frame; the connection stays open.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	clientID := r.RemoteAddr
	session := s.manager.OnConnect(clientID)
	defer s.manager.OnDisconnect(clientID)

	s.logger.Info().Str("client_id", clientID).Msg("client connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Str("client_id", clientID).Msg("websocket read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			s.writeJSON(conn, NewErrorMessage("binary frames are not accepted"))
			continue
		}

		if err := s.handleMessage(conn, session, data); err != nil {
			s.writeJSON(conn, NewErrorMessage(err.Error()))
		}
	}
}

func (s *Server) handleMessage(conn *websocket.Conn, session *Session, raw []byte) error {
	var env InboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}

	switch env.Type {
	case TypePing:
		return s.writeJSON(conn, NewPongMessage())

	case TypeLandmarks:
		var frame Frame
		if err := json.Unmarshal(env.Data, &frame); err != nil {
			return err
		}
		s.processFrame(conn, session, frame)
		return nil

	case TypeLandmarksSequence:
		var payload LandmarksSequencePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return err
		}
		for _, frame := range payload.Sequence {
			s.processFrame(conn, session, frame)
		}
		return nil

	default:
		return errUnknownMessageType(env.Type)
	}
}

func (s *Server) processFrame(conn *websocket.Conn, session *Session, frame Frame) {
	event, ok := s.manager.OnFrame(session, frame)
	if !ok {
		return
	}
	if err := s.writeJSON(conn, NewClassificationResultMessage(event)); err != nil {
		s.logger.Warn().Err(err).Str("client_id", session.ClientID).Msg("failed to write classification result")
	}
}

func (s *Server) writeJSON(conn *websocket.Conn, v interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

type protocolError string

func (e protocolError) Error() string { return string(e) }

func errUnknownMessageType(t string) error {
	return protocolError("unknown message type: " + t)
}
