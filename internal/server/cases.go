package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"CareLens/internal/assessment"
	"CareLens/internal/conversation"
	gs "CareLens/internal/geminiservice"
	"CareLens/internal/media"
	"CareLens/internal/utility"
	"github.com/labstack/echo/v4"
)

const (
	sessionCookieName = "carelens_session"
	sessionCaseKey    = "case_id"
	starterCount      = 3

	recoveryReply = "Sorry, I had trouble answering that. Please try asking again."
)

/* =================================================================================
							DTOs (Data Transfer Objects)
=================================================================================*/

// CaseResponse is returned when a case is created or fetched.
type CaseResponse struct {
	CaseID               string                 `json:"case_id"`
	Modality             assessment.Modality    `json:"modality"`
	Assessment           *assessment.Assessment `json:"assessment"`
	ConversationStarters []string               `json:"conversation_starters"`
	Transcript           []conversation.Turn    `json:"transcript"`
	CreatedAt            time.Time              `json:"created_at"`
}

// ChatRequest carries one follow-up message.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the model's reply.
type ChatResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

func newCaseResponse(sess *conversation.Session) CaseResponse {
	return CaseResponse{
		CaseID:               sess.ID,
		Modality:             assessment.ClassifyMedia(sess.MimeType),
		Assessment:           sess.Assessment,
		ConversationStarters: sess.Assessment.ConversationStarters(starterCount),
		Transcript:           sess.Transcript(),
		CreatedAt:            sess.CreatedAt,
	}
}

/*=================================================================================
									HANDLERS
=================================================================================*/

// createCaseHandler is the main entry point.
// It orchestrates: Upload -> Sniffing -> AI Assessment -> Conversation Seeding -> Response.
func (s *Server) createCaseHandler(c echo.Context) error {
	ctx := c.Request().Context()
	log := utility.LoggerFromContext(c)

	// 1. Read the uploaded media
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "A photo, video or PDF file is required"})
	}
	if err := media.CheckSize(fh.Size, s.cfg.MaxUploadBytes); err != nil {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
	}

	f, err := fh.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded file")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Could not read the uploaded file"})
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded file")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Could not read the uploaded file"})
	}
	if err := media.CheckSize(int64(len(data)), s.cfg.MaxUploadBytes); err != nil {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
	}

	// 2. Validate the content type from the bytes themselves
	mimeType, err := media.Detect(data, fh.Header.Get("Content-Type"))
	if err != nil {
		return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
	}
	description := strings.TrimSpace(c.FormValue("description"))

	log.Info().Str("mime_type", mimeType).Int("bytes", len(data)).Msg("Processing assessment request")

	// 3. Request the assessment
	res, err := s.assessor.RequestAssessment(ctx, data, mimeType, description)
	if err != nil {
		return s.aiError(c, err, "The analysis could not be completed. Please try again.")
	}

	// 4. Seed the follow-up conversation with the exact instruction used
	sess, err := conversation.NewSession(s.gen, data, mimeType, res.Instruction, res.Assessment)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start conversation")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to start the conversation"})
	}

	// 5. Replace whatever case this browser had before
	s.conversations.Replace(s.boundCase(c), sess)
	if err := s.bindCase(c, sess.ID); err != nil {
		log.Warn().Err(err).Msg("Failed to save session cookie")
	}

	log.Info().Str("case_id", sess.ID).Str("risk_level", string(res.Assessment.RiskLevel)).Msg("Case created")
	return c.JSON(http.StatusCreated, newCaseResponse(sess))
}

// getCaseHandler returns the assessment and visible chat of a live case.
func (s *Server) getCaseHandler(c echo.Context) error {
	sess, ok := s.conversations.Get(c.Param("case_id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Case not found or expired"})
	}
	return c.JSON(http.StatusOK, newCaseResponse(sess))
}

// chatHandler sends one follow-up message and returns the reply.
func (s *Server) chatHandler(c echo.Context) error {
	ctx := c.Request().Context()
	log := utility.LoggerFromContext(c)

	sess, ok := s.conversations.Get(c.Param("case_id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Conversation not found or expired"})
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	reply, err := sess.SendTurn(ctx, req.Message)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, ChatResponse{Reply: reply})
	case errors.Is(err, conversation.ErrEmptyMessage):
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, conversation.ErrTurnInFlight):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Str("case_id", sess.ID).Msg("Follow-up message failed")
		sess.AppendRecovery(recoveryReply)
		return c.JSON(statusFor(err), ChatResponse{Reply: recoveryReply, Error: "Failed to send message"})
	}
}

// resetSessionHandler forgets the case bound to this browser.
func (s *Server) resetSessionHandler(c echo.Context) error {
	if caseID := s.boundCase(c); caseID != "" {
		s.conversations.Remove(caseID)
	}

	sess, _ := s.cookies.Get(c.Request(), sessionCookieName)
	delete(sess.Values, sessionCaseKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		utility.LoggerFromContext(c).Warn().Err(err).Msg("Failed to clear session cookie")
	}
	return c.NoContent(http.StatusNoContent)
}

/*=================================================================================
								HELPER FUNCTIONS
=================================================================================*/

func (s *Server) boundCase(c echo.Context) string {
	sess, err := s.cookies.Get(c.Request(), sessionCookieName)
	if err != nil {
		return ""
	}
	id, _ := sess.Values[sessionCaseKey].(string)
	return id
}

func (s *Server) bindCase(c echo.Context, caseID string) error {
	// Get returns a fresh session alongside a decode error, so the error is ignored.
	sess, _ := s.cookies.Get(c.Request(), sessionCookieName)
	sess.Values[sessionCaseKey] = caseID
	return sess.Save(c.Request(), c.Response())
}

// aiError maps service errors to a status code and a user-facing message.
func (s *Server) aiError(c echo.Context, err error, fallback string) error {
	utility.LoggerFromContext(c).Error().Err(err).Msg("AI request failed")

	var apiErr *gs.APIError
	msg := fallback
	switch {
	case errors.Is(err, gs.ErrNotConfigured):
		msg = "The AI service is not configured. Please contact the administrator."
	case errors.Is(err, assessment.ErrEmptyResponse):
		msg = "No response was received from the AI model. Please try again."
	case errors.Is(err, assessment.ErrNoMedia):
		msg = "The uploaded file is empty."
	case errors.As(err, &apiErr):
		msg = apiErr.UserMessage()
	case errors.Is(err, context.DeadlineExceeded):
		msg = "The AI service took too long to respond. Please try again."
	}
	return c.JSON(statusFor(err), map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gs.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, assessment.ErrNoMedia):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
