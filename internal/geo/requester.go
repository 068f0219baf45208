/*
Package geo finds care facilities near the user with a Maps-grounded model
request. That tool cannot be combined with a response schema, so the answer is
parsed leniently and degrades to an empty list instead of failing.
*/
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CareLens/internal/assessment"
	gs "CareLens/internal/geminiservice"
	"github.com/rs/zerolog"
)

var (
	ErrConfiguration      = gs.ErrNotConfigured
	ErrEmptyResponse      = errors.New("no response received from the places search")
	ErrInvalidCoordinates = errors.New("latitude must be within [-90, 90] and longitude within [-180, 180]")
)

// Query is one search around a point.
type Query struct {
	Latitude  float64
	Longitude float64
	Context   string
	RiskLevel assessment.RiskLevel
}

// Place is one recommended facility. Rating is kept as text.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	Rating    string  `json:"rating"`
	Reason    string  `json:"reason"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Result always carries the caller's search center. An empty Places list is a
// valid answer, not an error.
type Result struct {
	Places       []Place `json:"places"`
	SearchCenter LatLng  `json:"search_center"`
	Stage        Stage   `json:"-"`
}

// Requester issues Maps-grounded searches. It is stateless and safe for concurrent use.
type Requester struct {
	gen gs.Generator
}

func NewRequester(gen gs.Generator) *Requester {
	return &Requester{gen: gen}
}

// BuildPayload enables the Maps tool biased to the query point. No response
// schema is set because the backend rejects it together with the tool.
func BuildPayload(q Query) *gs.Payload {
	return &gs.Payload{
		Contents: []gs.Content{{
			Role:  gs.RoleUser,
			Parts: []gs.Part{gs.TextPart(BuildQuery(q))},
		}},
		Tools: []gs.Tool{{GoogleMaps: &gs.GoogleMaps{}}},
		ToolConfig: &gs.ToolConfig{
			RetrievalConfig: &gs.RetrievalConfig{
				LatLng: &gs.LatLng{Latitude: q.Latitude, Longitude: q.Longitude},
			},
		},
	}
}

// FindNearbyPlaces runs one search. Only a failed call or an empty answer is an
// error; unparseable text becomes an empty result.
func (r *Requester) FindNearbyPlaces(ctx context.Context, q Query) (*Result, error) {
	log := zerolog.Ctx(ctx).With().Str("component", "geo").Logger()

	if !r.gen.Configured() {
		log.Error().Msg("Places search requested without a configured AI backend")
		return nil, ErrConfiguration
	}
	// Written so NaN fails the check too.
	if !(q.Latitude >= -90 && q.Latitude <= 90) || !(q.Longitude >= -180 && q.Longitude <= 180) {
		return nil, ErrInvalidCoordinates
	}

	log.Info().
		Float64("lat", q.Latitude).
		Float64("lng", q.Longitude).
		Str("risk_level", string(q.RiskLevel)).
		Msg("Searching nearby care facilities")

	start := time.Now()
	text, err := r.gen.GenerateContent(ctx, BuildPayload(q))
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Places search failed")
		return nil, fmt.Errorf("failed to find nearby places: %w", err)
	}
	if text == "" {
		log.Warn().Msg("Places search returned no text")
		return nil, ErrEmptyResponse
	}

	rec := Recover(text)
	event := log.Info()
	if rec.Stage != StageDirect {
		event = log.Warn().Int("raw_length", len(text))
	}
	event.Str("stage", string(rec.Stage)).
		Int("places", len(rec.Places)).
		Dur("elapsed", time.Since(start)).
		Msg("Places response recovered")

	return &Result{
		Places:       rec.Places,
		SearchCenter: LatLng{Lat: q.Latitude, Lng: q.Longitude},
		Stage:        rec.Stage,
	}, nil
}
