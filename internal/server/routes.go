package server

import (
	"fmt"
	"net/http"

	"CareLens/internal/utility"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = utility.IPExtractor(s.cfg.TrustedProxies)
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Use(LoggerMiddleware)

	e.GET("/health", s.healthHandler)

	api := e.Group("/api")
	// Uploads are checked again in the handler; this stops oversized bodies early.
	api.Use(middleware.BodyLimit(fmt.Sprintf("%dK", s.cfg.MaxUploadBytes/1024+64)))

	// Endpoints that reach the model are rate limited per IP.
	limited := api.Group("", s.RateLimitMiddleware)

	// Case (assessment) routes
	limited.POST("/cases", s.createCaseHandler)
	api.GET("/cases/:case_id", s.getCaseHandler)

	// Follow-up conversation routes
	limited.POST("/cases/:case_id/chat", s.chatHandler)
	api.GET("/cases/:case_id/chat/ws", s.chatSocketHandler)

	// Care finder routes
	limited.POST("/cases/:case_id/places", s.casePlacesHandler)
	limited.POST("/places", s.placesHandler)

	// Browser session reset
	api.DELETE("/session", s.resetSessionHandler)

	return e
}

// LoggerMiddleware stamps every request with an ID and a request-scoped logger.
// The logger is also attached to the request context for the service layer.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)
		req := c.Request()
		c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

		err := next(c)

		logger.Info().
			Str("method", req.Method).
			Str("path", c.Path()).
			Int("status", c.Response().Status).
			Msg("Request handled")

		return err
	}
}

// RateLimitMiddleware rejects clients that exceed the per-IP budget.
func (s *Server) RateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ip := c.RealIP()
		if !s.limiter.Allow(ip) {
			utility.LoggerFromContext(c).Warn().Str("ip", ip).Msg("Rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests, please try again later"})
		}
		return next(c)
	}
}
