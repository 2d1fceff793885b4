package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/modelviz/modelviz/internal/inspect"
)

// Handler maps the HTTP surface onto the inspection engine
type Handler struct {
	inspector *inspect.Inspector
	assistant *Assistant
	logger    *zap.Logger
}

// NewHandler creates the API handler. assistant may be nil when no
// external text generator is configured.
func NewHandler(inspector *inspect.Inspector, assistant *Assistant, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		inspector: inspector,
		assistant: assistant,
		logger:    logger,
	}
}

// Router builds the chi router for the API
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", h.listModels)
		r.Get("/schema", h.schema)
		r.Get("/models/{model}/records", h.listRecords)
		r.Get("/models/{model}/{id}", h.show)
		r.Get("/models/{model}/{id}/relations/{relation}", h.expandRelation)
		r.Post("/assistant", h.runAssistant)
	})

	return r
}

// GET /api/models
func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"models": h.inspector.Models(),
	})
}

// GET /api/schema
func (h *Handler) schema(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.inspector.Schema())
}

// GET /api/models/{model}/records
func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 25)

	result, err := h.inspector.ListRecords(r.Context(), model, page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GET /api/models/{model}/{id}
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	id := chi.URLParam(r, "id")

	node, err := h.inspector.Inspect(r.Context(), model, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"node": node})
}

// GET /api/models/{model}/{id}/relations/{relation}
func (h *Handler) expandRelation(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	id := chi.URLParam(r, "id")
	relation := chi.URLParam(r, "relation")
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 0)

	result, err := h.inspector.Expand(r.Context(), model, id, relation, page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// POST /api/assistant
func (h *Handler) runAssistant(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		respondJSON(w, http.StatusNotFound, errorBody("no assistant command configured"))
		return
	}

	var body struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Input == "" {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody("input is required"))
		return
	}

	response, err := h.assistant.Run(r.Context(), body.Input)
	if err != nil {
		h.logger.Error("assistant command failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"response": response})
}

// respondError maps engine errors onto HTTP statuses: lookup failures are
// client-addressable 404s, everything else is an internal failure
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, inspect.ErrModelNotFound), errors.Is(err, inspect.ErrRecordNotFound):
		respondJSON(w, http.StatusNotFound, errorBody(err.Error()))
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
