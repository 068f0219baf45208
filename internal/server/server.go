/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the assessment,
conversation and care-finder services behind an echo router.
*/
package server

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"CareLens/internal/assessment"
	"CareLens/internal/config"
	"CareLens/internal/conversation"
	gs "CareLens/internal/geminiservice"
	"CareLens/internal/geo"
	"CareLens/internal/utility"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	cfg *config.Config

	// gen is the Gemini backend shared by every requester.
	gen gs.Generator

	assessor *assessment.Requester
	finder   *geo.Requester

	// conversations holds the live follow-up chats, keyed by case ID.
	conversations *conversation.Store

	// hub tracks open chat websockets so an evicted case can close them.
	hub *utility.Hub

	// cookies binds a browser to its current case.
	cookies *sessions.CookieStore

	limiter   *utility.IPRateLimiter
	startedAt time.Time
}

// New builds a Server around gen.
func New(cfg *config.Config, gen gs.Generator) *Server {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		log.Warn().Msg("SESSION_SECRET is not set, using a random key; sessions will not survive a restart")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Fatal().Err(err).Msg("could not generate a session key")
		}
	}

	store := sessions.NewCookieStore(secret)
	store.MaxAge(int(cfg.SessionTTL / time.Second))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.IsProduction()
	store.Options.SameSite = http.SameSiteLaxMode

	// A session leaving the store for any reason takes its live socket with it.
	hub := utility.NewHub()
	conversations := conversation.NewStore(conversation.StoreOptions{
		Capacity: cfg.SessionCapacity,
		TTL:      cfg.SessionTTL,
		MaxBytes: cfg.SessionMemoryBytes,
		OnEvict:  hub.Close,
	})

	return &Server{
		port:          cfg.Port,
		cfg:           cfg,
		gen:           gen,
		assessor:      assessment.NewRequester(gen),
		finder:        geo.NewRequester(gen),
		conversations: conversations,
		hub:           hub,
		cookies:       store,
		limiter:       utility.NewIPRateLimiter(cfg.RateLimitPerMinute),
		startedAt:     time.Now(),
	}
}

// NewServer initializes a new Server instance and returns a configured *http.Server.
func NewServer(cfg *config.Config) *http.Server {
	client := gs.NewClient(cfg.GeminiOptions())
	if !client.Configured() {
		log.Warn().Msg("GEMINI_API_KEY is not set; AI requests will fail until it is configured")
	}

	newApp := New(cfg, client)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,                   // Uploads can be large.
		WriteTimeout: cfg.GeminiTimeout + 30*time.Second, // Model calls are slow.
	}
}
