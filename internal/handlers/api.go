// Package handlers exposes the HTTP surface: session launch/status/stop,
// cleanup, the dependency probe, health and the WebSocket relay.
package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gluk-w/firedesk/internal/registrar"
	"github.com/gluk-w/firedesk/internal/session"
)

// API holds the wired session machinery. Handlers are methods so tests and
// main can assemble independent instances; there is no package-level state.
type API struct {
	Registry   *session.Registry
	Launcher   *session.Launcher
	Terminator *session.Terminator
	Reaper     *session.Reaper

	// Registrar is optional; nil disables route registration.
	Registrar *registrar.Client

	RelayConnectTimeout time.Duration
}

// Routes builds the router for the API. Middleware is attached by the caller.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", a.LaunchSession)
		r.Get("/sessions", a.SessionsStatus)
		r.Head("/sessions", a.SessionsAlive)
		r.Delete("/sessions", a.StopAllSessions)
		r.Get("/sessions/history", a.SessionHistory)
		r.Get("/sessions/{port}", a.SessionState)
		r.Post("/cleanup", a.Cleanup)
		r.Post("/reap", a.Reap)
		r.Get("/dependencies", a.Dependencies)
	})

	r.Get("/ws", a.Relay)
	r.Get("/health", a.Health)

	return r
}
