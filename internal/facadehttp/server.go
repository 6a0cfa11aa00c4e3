// Package facadehttp exposes the Query/Command Facade (spec §4.I) as a
// thin JSON-over-HTTP surface for the operator UI, following the
// teacher's chi-based router conventions.
package facadehttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fieldcone/controller/internal/domain"
	"github.com/fieldcone/controller/internal/facade"
)

// Server wraps a Facade with an HTTP handler.
type Server struct {
	facade *facade.Facade
	log    zerolog.Logger
}

// New creates a Server.
func New(f *facade.Facade, logger zerolog.Logger) *Server {
	return &Server{facade: f, log: logger.With().Str("component", "facadehttp").Logger()}
}

// Handler builds the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleSessionCreate)
		r.Post("/sessions/{id}/start", s.handleSessionStart)
		r.Post("/sessions/{id}/stop", s.handleSessionStop)
		r.Post("/sessions/{id}/next-athlete", s.handleSessionNextAthlete)
		r.Get("/sessions/{id}/status", s.handleSessionStatus)
		r.Post("/sessions/{id}/continue", s.handleSessionContinue)
		r.Post("/sessions/{id}/repeat", s.handleSessionRepeat)

		r.Post("/courses/{name}/deploy", s.handleCourseDeploy)
		r.Post("/courses/activate", s.handleCourseActivate)
		r.Post("/courses/deactivate", s.handleCourseDeactivate)

		r.Get("/registry/snapshot", s.handleRegistrySnapshot)
		r.Get("/registry/logs", s.handleRegistryLogs)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug().Str("event", "http.request").Str("method", r.Method).Str("path", r.URL.Path).Msg("handling request")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type createSessionRequest struct {
	TeamID        string                `json:"team_id"`
	CourseID      string                `json:"course_id"`
	Athletes      []domain.Athlete      `json:"athletes"`
	AudioVoice    domain.AudioVoice     `json:"audio_voice"`
	PatternConfig *domain.PatternConfig `json:"pattern_config,omitempty"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.facade.SessionCreate(r.Context(), req.TeamID, req.CourseID, req.Athletes, req.AudioVoice, req.PatternConfig)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, s.facade.SessionStart(r.Context(), id))
}

type stopRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req stopRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	ok, msg := s.facade.SessionStop(r.Context(), id, req.Reason)
	writeJSON(w, http.StatusOK, map[string]any{"success": ok, "message": msg})
}

func (s *Server) handleSessionNextAthlete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, msg := s.facade.SessionNextAthlete(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{"success": ok, "message": msg})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.facade.SessionStatus(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSessionContinue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.facade.SessionContinue(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleSessionRepeat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	newID, err := s.facade.SessionRepeat(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"new_session_id": newID})
}

func (s *Server) handleCourseDeploy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	c, err := s.facade.CourseDeploy(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCourseActivate(w http.ResponseWriter, r *http.Request) {
	if err := s.facade.CourseActivate(r.Context()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCourseDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.facade.CourseDeactivate(r.Context()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleRegistrySnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.RegistrySnapshot())
}

func (s *Server) handleRegistryLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	logs, err := s.facade.RegistryLogs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
