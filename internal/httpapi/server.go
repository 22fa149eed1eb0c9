// Package httpapi exposes the operator surface: Copilot suggestions and
// feedback, loop status, and model management.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/gamepilot/gamepilot/internal/loop"
	"github.com/gamepilot/gamepilot/internal/modelstore"
	"github.com/gamepilot/gamepilot/internal/rl"
	"github.com/gamepilot/gamepilot/internal/types"
)

const maxFeedbackBody = 32 * 1024

// Server wires HTTP handlers to the decision loop and model store.
type Server struct {
	engine *loop.Engine
	store  *modelstore.Store
	logger *zerolog.Logger
}

// NewServer constructs a Server instance.
func NewServer(engine *loop.Engine, store *modelstore.Store, logger *zerolog.Logger) *Server {
	return &Server{engine: engine, store: store, logger: logger}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(CorrelationID)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/suggestions", s.handleSuggestions)
		r.Post("/suggestions/{suggestionID}/feedback", s.handleFeedback)
		r.Post("/interaction", s.handleInteraction)
		r.Get("/models", s.handleListModels)
		r.Get("/models/{gameID}", s.handleGameModels)
		r.Delete("/models/{gameID}", s.handleDeleteModels)
	})
	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.CurrentStatus())
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions := s.engine.Suggestions()
	if suggestions == nil {
		suggestions = []*types.Suggestion{}
	}
	s.writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFeedbackBody)
	defer r.Body.Close()

	var payload struct {
		Reward  *float32 `json:"reward"`
		Success bool     `json:"success"`
		Rating  *int     `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid feedback payload")
		return
	}

	fb := types.Feedback{
		SuggestionID: chi.URLParam(r, "suggestionID"),
		Success:      payload.Success,
	}
	switch {
	case payload.Reward != nil:
		fb.Reward = *payload.Reward
	case payload.Rating != nil:
		// Explicit 1-5 effectiveness rating maps onto [-1, 1].
		fb.Reward = (float32(*payload.Rating) - 3) / 2
		fb.Success = *payload.Rating >= 4
	default:
		s.writeError(w, http.StatusBadRequest, "reward or rating is required")
		return
	}

	if err := s.engine.SubmitFeedback(r.Context(), fb); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	s.engine.NotifyUserInteraction()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "paused"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	games, err := s.store.ListGames()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if games == nil {
		games = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"games": games})
}

func (s *Server) handleGameModels(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	typs, err := s.store.ListModels(gameID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	models := make([]map[string]string, 0, len(typs))
	for _, t := range typs {
		models = append(models, map[string]string{
			"type":      strconv.Itoa(int(t)),
			"algorithm": rl.Type(t).String(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"game_id": gameID, "models": models})
}

func (s *Server) handleDeleteModels(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if err := s.store.DeleteAll(gameID); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "game_id": gameID})
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, modelstore.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
