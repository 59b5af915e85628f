package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/feedfm/fmsession/internal/auth"
	"github.com/feedfm/fmsession/internal/models"
)

// Deps are the router's collaborators. Metrics and Reinitialize may be nil.
type Deps struct {
	// Player returns the current player, or models.ErrNotInitialized.
	Player   func() (Player, error)
	Streamer Streamer
	Bus      EventBus
	Auth     *auth.Service
	Info     func() models.Info
	Metrics  http.Handler

	// Reinitialize discards the player and starts a new engine lifetime.
	Reinitialize func(ctx context.Context) error
}

// NewRouter creates and returns the main HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{
		player:   d.Player,
		streamer: d.Streamer,
		events:   d.Bus,
		info:     d.Info,
		reinit:   d.Reinitialize,
	}

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	// API routes (auth required)
	r.Group(func(r chi.Router) {
		r.Use(d.Auth.Middleware)

		r.Get("/api", h.getState)
		r.Get("/api/", h.getState)
		r.Get("/api/info", h.getInfo)

		// Station player
		r.Get("/api/player", h.getPlayer)
		r.Get("/api/player/stations", h.getStations)
		r.Get("/api/player/available", h.getAvailable)
		r.Get("/api/player/can_skip", h.getCanSkip)
		r.Get("/api/player/max_seekable", h.getMaxSeekable)
		r.Patch("/api/player/volume", h.setPlayerVolume)
		r.Put("/api/player/station", h.setStation)
		r.Put("/api/player/station/{id}", h.setStationByPath)
		r.Post("/api/player/client_id", h.setClientID)
		r.Post("/api/player/client_id/new", h.newClientID)
		r.Post("/api/player/seek", h.seek)
		r.Post("/api/player/log_event", h.logEvent)
		r.Post("/api/player/reinitialize", h.reinitialize)
		r.Post("/api/player/{cmd}", h.playerCmd)

		// Streamer
		r.Get("/api/streamer", h.getStreamer)
		r.Post("/api/streamer/connect", h.connect)
		r.Post("/api/streamer/switch", h.switchStream)
		r.Post("/api/streamer/disconnect", h.disconnect)
		r.Patch("/api/streamer/volume", h.setStreamerVolume)

		// SSE
		r.Get("/api/subscribe", h.sseEvents)
	})

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, api-key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
