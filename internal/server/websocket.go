package server

import (
	"errors"
	"net/http"

	"CareLens/internal/conversation"
	"CareLens/internal/utility"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// chatSocketHandler streams a conversation over a websocket. Every text frame
// from the client is one user turn; each answer is a utility.ChatFrame.
func (s *Server) chatSocketHandler(c echo.Context) error {
	caseID := c.Param("case_id")
	sess, ok := s.conversations.Get(caseID)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Conversation not found or expired"})
	}
	log := utility.LoggerFromContext(c).With().Str("case_id", caseID).Logger()

	conn, err := utility.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return nil
	}
	s.hub.Register(caseID, conn)
	defer func() {
		s.hub.Unregister(caseID, conn)
		conn.Close()
	}()

	ctx := log.WithContext(c.Request().Context())
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("WebSocket closed unexpectedly")
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply, err := sess.SendTurn(ctx, string(payload))
		var frame utility.ChatFrame
		switch {
		case err == nil:
			frame = utility.ChatFrame{Role: string(conversation.RoleModel), Text: reply}
		case errors.Is(err, conversation.ErrEmptyMessage):
			continue
		case errors.Is(err, conversation.ErrTurnInFlight):
			frame = utility.ChatFrame{Role: string(conversation.RoleModel), Error: err.Error()}
		default:
			log.Error().Err(err).Msg("Follow-up message failed")
			sess.AppendRecovery(recoveryReply)
			frame = utility.ChatFrame{Role: string(conversation.RoleModel), Text: recoveryReply, Error: "Failed to send message"}
		}

		if err := conn.WriteJSON(frame); err != nil {
			log.Warn().Err(err).Msg("Failed to write WebSocket frame")
			return nil
		}
	}
}
