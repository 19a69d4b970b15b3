// Package api provides the HTTP API for driving game states.
// GET endpoints are public. POST endpoints require a bearer token when an
// admin key is configured.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/ascension/internal/actions"
	"github.com/talgya/ascension/internal/characters"
	"github.com/talgya/ascension/internal/engine"
	apperrors "github.com/talgya/ascension/internal/errors"
	"github.com/talgya/ascension/internal/game"
	"github.com/talgya/ascension/internal/investigation"
	"github.com/talgya/ascension/internal/stream"
)

const maxBodyBytes = 1 << 20

// Server serves game states over HTTP.
type Server struct {
	Games    *game.Service
	Hub      *stream.Hub   // optional; reported in status
	Stream   http.Handler  // websocket endpoint; nil disables streaming
	Clock    *engine.Clock // optional; reported in status
	Limiter  *RateLimiter  // applied to advance; nil disables
	Port     int
	AdminKey string   // Bearer token for POST endpoints. Empty = open.
	Origins  []string // extra CORS origins

	started time.Time
	srv     *http.Server
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "streaming", s.Stream != nil)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)

	mux.HandleFunc("GET /api/v1/games", s.handleListGames)
	mux.HandleFunc("POST /api/v1/games", s.adminOnly(s.handleCreateGame))
	mux.HandleFunc("GET /api/v1/games/{id}", s.handleGetGame)
	mux.HandleFunc("POST /api/v1/games/{id}/advance", s.adminOnly(RateLimitMiddleware(s.Limiter, s.handleAdvance)))
	mux.HandleFunc("POST /api/v1/games/{id}/characters", s.adminOnly(s.handleAddCharacter))
	mux.HandleFunc("POST /api/v1/games/{id}/characters/{characterID}/actions", s.adminOnly(s.handleAction))
	mux.HandleFunc("POST /api/v1/games/{id}/investigations", s.adminOnly(s.handleCreateInvestigation))
	mux.HandleFunc("POST /api/v1/games/{id}/events", s.adminOnly(s.handleAddEvent))

	mux.HandleFunc("POST /api/v1/investigations/{id}/progress", s.adminOnly(s.handleProgress))
	mux.HandleFunc("GET /api/v1/investigations/{id}/leads", s.handleLeads)
	mux.HandleFunc("POST /api/v1/investigations/{id}/leads/{leadID}/examine", s.adminOnly(s.handleExamineLead))
	mux.HandleFunc("POST /api/v1/investigations/{id}/leads/{leadID}/exhaust", s.adminOnly(s.handleExhaustLead))

	if s.Stream != nil {
		mux.Handle("GET /api/v1/stream", s.Stream)
	}

	return corsMiddleware(s.Origins, mux)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminOnly requires the admin bearer token when one is configured.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && r.Header.Get("Authorization") != "Bearer "+s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Games.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	status := map[string]any{
		"name":       "Ascension",
		"games":      len(ids),
		"started":    humanize.Time(s.started),
		"started_at": s.started.UTC(),
	}
	if s.Hub != nil {
		status["connections"] = s.Hub.Connections()
		status["dropped_events"] = s.Hub.Dropped()
	}
	if s.Clock != nil {
		status["clock"] = map[string]any{
			"running":  s.Clock.Running(),
			"steps":    s.Clock.Steps(),
			"interval": s.Clock.Interval.String(),
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Games.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": ids})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req game.CreateOptions
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	gs, err := s.Games.CreateGameState(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, gs)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gs, err := s.Games.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hours int `json:"hours"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Games.AdvanceTime(r.Context(), r.PathValue("id"), req.Hours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddCharacter(w http.ResponseWriter, r *http.Request) {
	var c characters.Character
	if err := readJSON(w, r, &c); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Games.AddCharacter(r.Context(), r.PathValue("id"), &c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var a actions.Action
	if err := readJSON(w, r, &a); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Games.ResolveAction(r.Context(), r.PathValue("id"), r.PathValue("characterID"), &a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateInvestigation(w http.ResponseWriter, r *http.Request) {
	var inv investigation.Investigation
	if err := readJSON(w, r, &inv); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Games.CreateInvestigation(r.Context(), r.PathValue("id"), &inv)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var ev engine.GlobalEvent
	if err := readJSON(w, r, &ev); err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Games.AddGlobalEvent(r.Context(), r.PathValue("id"), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubObjectiveID string   `json:"sub_objective_id"`
		Progress       *float64 `json:"progress"`
		CharacterID    string   `json:"character_id"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Progress == nil || req.SubObjectiveID == "" || req.CharacterID == "" {
		writeError(w, apperrors.Validation("sub_objective_id, progress and character_id are required"))
		return
	}
	upd, err := s.Games.UpdateInvestigationProgress(r.Context(), r.PathValue("id"), req.SubObjectiveID, *req.Progress, req.CharacterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, upd)
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.Games.ActiveLeads(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if leads == nil {
		leads = []investigation.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (s *Server) handleExamineLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CharacterID string `json:"character_id"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	lead, err := s.Games.ExamineLead(r.Context(), r.PathValue("id"), r.PathValue("leadID"), req.CharacterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleExhaustLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.Games.ExhaustLead(r.Context(), r.PathValue("id"), r.PathValue("leadID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// readJSON decodes a request body. Malformed bodies are validation errors.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, "invalid json: "+err.Error(), err)
	}
	return nil
}

// writeError renders err as {"error":{"code","message"}}. Errors without a
// domain code are logged and reported as internal.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	message := err.Error()
	var e *apperrors.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		code, message = apperrors.CodeInternal, "internal error"
	}
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    string(code),
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
