package watchlists

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stockfolio/internal/modules/auth"
)

// Handler handles watchlist HTTP requests
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new watchlist handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "watchlists").Logger(),
	}
}

// RegisterRoutes registers all watchlist routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/watchlists", h.HandleGetWatchlists)
	r.Put("/watchlists", h.HandlePutWatchlists)
	r.Get("/api/watchlist-counts", h.HandleSymbolCounts)
}

// HandleGetWatchlists returns the user's three watchlists.
func (h *Handler) HandleGetWatchlists(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	lists, err := h.repo.Get(userID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"watchlists": lists})
}

// HandlePutWatchlists replaces the user's three watchlists.
func (h *Handler) HandlePutWatchlists(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Watchlists [][]string `json:"watchlists"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(input.Watchlists) > ListCount {
		h.writeError(w, http.StatusBadRequest, "too many watchlists")
		return
	}

	var lists [ListCount][]string
	for i := range lists {
		if i < len(input.Watchlists) {
			lists[i] = input.Watchlists[i]
		} else {
			lists[i] = []string{}
		}
	}

	userID := auth.UserIDFromContext(r.Context())
	if err := h.repo.Put(userID, lists); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleSymbolCounts returns how often each symbol appears across the user's
// watchlists.
func (h *Handler) HandleSymbolCounts(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	counts, err := h.repo.SymbolCounts(userID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
