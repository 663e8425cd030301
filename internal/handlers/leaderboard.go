package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/projectsentinel/apiserver/internal/services"
)

// LeaderboardHandler serves public standings.
type LeaderboardHandler struct {
	leaderboard *services.LeaderboardService
	prizes      *services.PrizeService
	admission   *services.AdmissionService
}

func NewLeaderboardHandler(
	leaderboard *services.LeaderboardService,
	prizes *services.PrizeService,
	admission *services.AdmissionService,
) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard, prizes: prizes, admission: admission}
}

// PublicRouter registers the leaderboard, prize and advisory status routes.
func PublicRouter(
	r chi.Router,
	leaderboard *services.LeaderboardService,
	prizes *services.PrizeService,
	admission *services.AdmissionService,
) {
	handler := NewLeaderboardHandler(leaderboard, prizes, admission)

	r.Get("/leaderboard", handler.Leaderboard)
	r.Get("/prizes", handler.Prizes)
	r.Get("/prizes/standings", handler.Standings)
	r.Get("/advisory/status", handler.AdvisoryStatus)
}

// Leaderboard lists ranked entries. ?sentinel=true restricts the board to
// sentinel members.
func (h *LeaderboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	sentinelOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("sentinel")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid sentinel flag")
			return
		}
		sentinelOnly = parsed
	}

	entries, err := h.leaderboard.List(r.Context(), sentinelOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *LeaderboardHandler) Prizes(w http.ResponseWriter, r *http.Request) {
	prizes, err := h.prizes.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load prizes")
		return
	}
	writeJSON(w, http.StatusOK, prizes)
}

func (h *LeaderboardHandler) Standings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.prizes.Standings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load prize standings")
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

// AdvisoryStatusResponse reports whether advisory scoring is enabled.
type AdvisoryStatusResponse struct {
	Configured bool `json:"configured"`
}

func (h *LeaderboardHandler) AdvisoryStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AdvisoryStatusResponse{Configured: h.admission.AdvisoryConfigured()})
}
