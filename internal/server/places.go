package server

import (
	"errors"
	"net/http"

	"CareLens/internal/assessment"
	"CareLens/internal/geo"
	"github.com/labstack/echo/v4"
)

// PlacesRequest is the caller's location, plus context for standalone searches.
type PlacesRequest struct {
	Latitude  *float64             `json:"latitude"`
	Longitude *float64             `json:"longitude"`
	Context   string               `json:"context,omitempty"`
	RiskLevel assessment.RiskLevel `json:"risk_level,omitempty"`
}

// casePlacesHandler searches around the user using the case's risk level and findings.
func (s *Server) casePlacesHandler(c echo.Context) error {
	sess, ok := s.conversations.Get(c.Param("case_id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Case not found or expired"})
	}

	var req PlacesRequest
	if err := c.Bind(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "latitude and longitude are required"})
	}

	return s.findPlaces(c, geo.Query{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Context:   sess.Assessment.ContextSummary(),
		RiskLevel: sess.Assessment.RiskLevel,
	})
}

// placesHandler searches without a case, e.g. from a bookmarked map view.
func (s *Server) placesHandler(c echo.Context) error {
	var req PlacesRequest
	if err := c.Bind(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "latitude and longitude are required"})
	}

	return s.findPlaces(c, geo.Query{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Context:   req.Context,
		RiskLevel: req.RiskLevel,
	})
}

func (s *Server) findPlaces(c echo.Context, q geo.Query) error {
	res, err := s.finder.FindNearbyPlaces(c.Request().Context(), q)
	if errors.Is(err, geo.ErrInvalidCoordinates) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if errors.Is(err, geo.ErrEmptyResponse) {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "No response was received from the places search. Please try again."})
	}
	if err != nil {
		return s.aiError(c, err, "Could not search for nearby care. Please try again.")
	}
	return c.JSON(http.StatusOK, res)
}
