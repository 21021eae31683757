package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/assessment"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsReadLimit  = 4096
	wsWriteWait  = 5 * time.Second
	wsIdleWindow = 2 * time.Minute
)

// ProctorMessage is sent to the client for every signal it reports.
type ProctorMessage struct {
	Type    string                     `json:"type"` // connected, outcome or error
	Outcome *assessment.ProctorOutcome `json:"outcome,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

// handleProctorWS streams proctoring signals for one session. Each text
// message is a signal; each reply carries the outcome. The server closes
// the stream once the session ends.
func (s *Server) handleProctorWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sess, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	if sess.Final() {
		s.respondEngineError(w, r, &assessment.SessionTerminatedError{SessionID: id, Stage: sess.CurrentStage})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	s.logger.Info("proctor stream connected", zap.String("session_id", id))
	defer s.logger.Info("proctor stream disconnected", zap.String("session_id", id))

	if err := s.sendProctorMessage(conn, ProctorMessage{Type: "connected"}); err != nil {
		return
	}

	ctx := r.Context()
	for {
		conn.SetReadDeadline(time.Now().Add(wsIdleWindow))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var req signalRequest
		if err := json.Unmarshal(data, &req); err != nil || s.validate.Struct(req) != nil {
			if s.sendProctorMessage(conn, ProctorMessage{Type: "error", Error: "invalid signal"}) != nil {
				return
			}
			continue
		}

		out, err := s.engine.ReportViolation(ctx, id, req.signal())
		if err != nil {
			_, body := classify(err)
			s.sendProctorMessage(conn, ProctorMessage{Type: "error", Error: body.Message})
			if body.Code == "session_terminated" || body.Code == "session_not_found" {
				s.closeStream(conn, "session ended")
				return
			}
			continue
		}

		if err := s.sendProctorMessage(conn, ProctorMessage{Type: "outcome", Outcome: out}); err != nil {
			return
		}
		if out.Terminated {
			s.closeStream(conn, "session terminated")
			return
		}
	}
}

func (s *Server) sendProctorMessage(conn *websocket.Conn, msg ProctorMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("failed to send proctor message", zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
