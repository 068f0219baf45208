package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gs "CareLens/internal/geminiservice"
	"github.com/rs/zerolog"
)

// Temperature is fixed and low: this is a safety-relevant classification.
const Temperature = 0.2

var (
	// ErrConfiguration is returned before any network call when the backend has no credential.
	ErrConfiguration = gs.ErrNotConfigured
	ErrEmptyResponse = errors.New("no response received from the AI model")
	ErrNoMedia       = errors.New("no media content provided")
)

// DecodeError means the model returned text that is not a valid assessment
// despite the schema constraint. It is never recovered automatically.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to analyze the media: invalid assessment response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Result is one completed assessment together with the exact instruction it was
// requested with, so a follow-up conversation can be seeded from the same text.
type Result struct {
	Assessment  *Assessment
	Instruction string
}

// Requester issues schema-constrained assessment requests. It is stateless and
// safe for concurrent use.
type Requester struct {
	gen gs.Generator
}

func NewRequester(gen gs.Generator) *Requester {
	return &Requester{gen: gen}
}

// BuildPayload assembles the single request sent for a case.
func BuildPayload(instruction string, media []byte, mimeType string) *gs.Payload {
	return &gs.Payload{
		SystemInstruction: gs.SystemText(SystemPrompt),
		Contents: []gs.Content{{
			Role:  gs.RoleUser,
			Parts: []gs.Part{gs.TextPart(instruction), gs.MediaPart(mimeType, media)},
		}},
		GenerationConfig: &gs.GenerationConfig{
			ResponseMimeType: gs.StructuredMimeType,
			ResponseSchema:   ResponseSchema,
			Temperature:      gs.Temperature(Temperature),
		},
	}
}

// RequestAssessment sends one request and decodes the result. There are no
// retries here; a failure is reported once and retrying is the caller's call.
func (r *Requester) RequestAssessment(ctx context.Context, media []byte, mimeType, description string) (*Result, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "assessment").Logger()

	if !r.gen.Configured() {
		log.Error().Msg("Assessment requested without a configured AI backend")
		return nil, ErrConfiguration
	}
	if len(media) == 0 {
		return nil, ErrNoMedia
	}

	instruction := BuildInstruction(mimeType, description)
	modality := ClassifyMedia(mimeType)

	log.Info().
		Str("mime_type", mimeType).
		Str("modality", string(modality)).
		Int("media_bytes", len(media)).
		Bool("has_description", description != "").
		Msg("Requesting assessment")

	start := time.Now()
	text, err := r.gen.GenerateContent(ctx, BuildPayload(instruction, media, mimeType))
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Assessment request failed")
		return nil, fmt.Errorf("failed to generate assessment: %w", err)
	}
	if text == "" {
		log.Warn().Dur("elapsed", time.Since(start)).Msg("Assessment response was empty")
		return nil, ErrEmptyResponse
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		log.Error().Err(err).Msg("Assessment response is not valid JSON")
		return nil, &DecodeError{Raw: text, Err: err}
	}
	if doc == nil {
		return nil, &DecodeError{Raw: text, Err: errors.New("response is not a JSON object")}
	}
	if missing := ResponseSchema.RequiredMissing(doc); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("Assessment response omitted required fields, applying defaults")
	}

	a, err := Decode(text)
	if err != nil {
		log.Error().Err(err).Msg("Assessment response does not match the schema")
		return nil, &DecodeError{Raw: text, Err: err}
	}

	log.Info().
		Str("risk_level", string(a.RiskLevel)).
		Str("severity", string(a.SymptomSeverity)).
		Float64("visual_confidence", a.VisualConfidenceScore).
		Int("regions", len(a.ImageRegions)).
		Dur("elapsed", time.Since(start)).
		Msg("Assessment generated")

	return &Result{Assessment: a, Instruction: instruction}, nil
}
