package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Tanner253/ClaudeLotto/internal/auth"
)

// requireAdmin gates a handler behind the bearer secret.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !auth.VerifyAdminAuth(r.Header.Get("Authorization"), s.adminSecret) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}

// handleListFlagged returns conversations the detector flagged, newest
// first. ?all=true includes already-reviewed entries.
func (s *Server) handleListFlagged(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	unreviewedOnly := r.URL.Query().Get("all") != "true"
	flagged, err := s.history.ListFlagged(r.Context(), unreviewedOnly, 50)
	if err != nil {
		slog.Error("[Admin] Flagged list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load flagged conversations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"flagged": flagged})
}

type reviewRequest struct {
	Note string `json:"note"`
}

// handleReviewFlagged marks a flagged conversation as reviewed.
func (s *Server) handleReviewFlagged(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	id, err := strconv.ParseInt(muxVar(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid flagged conversation ID")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.history.ReviewFlagged(r.Context(), id, req.Note); err != nil {
		slog.Error("[Admin] Review failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to record review")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reviewed"})
}
