/*
Package conversation keeps the follow-up chat that belongs to one assessment.
A Session is seeded with the original request and the model's assessment so
later questions are grounded without sending the media again.
*/
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"CareLens/internal/assessment"
	gs "CareLens/internal/geminiservice"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Temperature is higher than the assessment's: the structured result is locked in.
const Temperature = 0.7

// Apology is returned when the model answers with no text.
const Apology = "I couldn't generate a response."

// SystemPrompt governs the follow-up phase.
const SystemPrompt = `You are continuing a conversation about a health-information assessment you already produced.

RULES:
- Answer conversationally in Markdown. Use short paragraphs and bullet lists where they help.
- Stay educational. You are not a doctor and you do not diagnose.
- Do NOT output JSON or repeat the structured assessment format.
- Do NOT re-diagnose or change the risk level. If new information sounds serious, tell the user to seek care.
- Stay on the topic of the user's health concern. Politely decline unrelated requests.
- Remind the user to consult a healthcare professional when it matters.`

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrTurnInFlight = errors.New("a message is already being answered for this conversation")
	ErrSendFailed   = errors.New("failed to send message")
)

type Role string

const (
	RoleUser  Role = gs.RoleUser
	RoleModel Role = gs.RoleModel
)

// Turn is one entry of the append-only history.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
	// Seed marks the two turns replayed from the original request.
	Seed bool `json:"-"`
	// Recovery marks a substitute model turn added after a failed exchange.
	Recovery bool `json:"recovery,omitempty"`

	media *gs.Part
}

// Session is the conversation for one Assessment. Turns are processed one at a
// time; a second SendTurn while one is pending fails with ErrTurnInFlight.
type Session struct {
	ID         string
	Assessment *assessment.Assessment
	MimeType   string
	CreatedAt  time.Time

	gen      gs.Generator
	inFlight atomic.Bool
	size     int64

	mu    sync.Mutex
	turns []Turn
}

// NewSession seeds a session with (user: instruction + media) then
// (model: the prior assessment in canonical form). The instruction must be the
// exact text the assessment was requested with.
func NewSession(gen gs.Generator, media []byte, mimeType, instruction string, prior *assessment.Assessment) (*Session, error) {
	if prior == nil {
		return nil, errors.New("conversation requires a prior assessment")
	}
	if len(media) == 0 {
		return nil, assessment.ErrNoMedia
	}

	now := time.Now()
	mediaPart := gs.MediaPart(mimeType, media)
	canonical := prior.Canonical()

	return &Session{
		ID:         uuid.NewString(),
		Assessment: prior,
		MimeType:   mimeType,
		CreatedAt:  now,
		gen:        gen,
		size:       int64(len(mediaPart.InlineData.Data) + len(instruction) + len(canonical)),
		turns: []Turn{
			{Role: RoleUser, Text: instruction, At: now, Seed: true, media: &mediaPart},
			{Role: RoleModel, Text: canonical, At: now, Seed: true},
		},
	}, nil
}

// NewSessionFromDescription rebuilds the instruction from the original inputs.
// Prefer NewSession with the stored instruction when it is available.
func NewSessionFromDescription(gen gs.Generator, media []byte, mimeType, description string, prior *assessment.Assessment) (*Session, error) {
	return NewSession(gen, media, mimeType, assessment.BuildInstruction(mimeType, description), prior)
}

// SendTurn appends userText, asks the model to continue and appends its reply.
// Empty input is rejected without contacting the backend. On backend failure
// the user turn stays in the history and no model turn is added; callers should
// add one with AppendRecovery.
func (s *Session) SendTurn(ctx context.Context, userText string) (string, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return "", ErrTurnInFlight
	}
	defer s.inFlight.Store(false)

	log := zerolog.Ctx(ctx).With().Str("component", "conversation").Str("case_id", s.ID).Logger()

	s.mu.Lock()
	s.turns = append(s.turns, Turn{Role: RoleUser, Text: text, At: time.Now()})
	payload := s.payloadLocked()
	s.mu.Unlock()

	log.Info().Int("turns", len(payload.Contents)).Msg("Sending follow-up message")

	reply, err := s.gen.GenerateContent(ctx, payload)
	if err != nil {
		log.Error().Err(err).Msg("Follow-up message failed")
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if strings.TrimSpace(reply) == "" {
		log.Warn().Msg("Model returned an empty follow-up reply")
		reply = Apology
	}

	s.mu.Lock()
	s.turns = append(s.turns, Turn{Role: RoleModel, Text: reply, At: time.Now()})
	s.mu.Unlock()

	return reply, nil
}

// AppendRecovery adds a substitute model turn after a failed exchange so the
// history keeps alternating between user and model.
func (s *Session) AppendRecovery(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: RoleModel, Text: text, At: time.Now(), Recovery: true})
}

// Busy reports whether a turn is being answered.
func (s *Session) Busy() bool {
	return s.inFlight.Load()
}

// History returns a copy of every turn including the two seed turns.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Transcript returns the turns a user has seen, without the seed turns.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, 0, len(s.turns))
	for _, t := range s.turns {
		if !t.Seed {
			out = append(out, t)
		}
	}
	return out
}

// Size is the memory held by the seed turns, dominated by the encoded media.
func (s *Session) Size() int64 {
	return s.size
}

// Len counts all turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

func (s *Session) payloadLocked() *gs.Payload {
	contents := make([]gs.Content, 0, len(s.turns))
	for _, t := range s.turns {
		parts := []gs.Part{gs.TextPart(t.Text)}
		if t.media != nil {
			parts = append(parts, *t.media)
		}
		contents = append(contents, gs.Content{Role: string(t.Role), Parts: parts})
	}
	return &gs.Payload{
		SystemInstruction: gs.SystemText(SystemPrompt),
		Contents:          contents,
		GenerationConfig: &gs.GenerationConfig{
			Temperature: gs.Temperature(Temperature),
		},
	}
}
