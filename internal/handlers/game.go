package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Tanner253/ClaudeLotto/internal/auth"
	"github.com/Tanner253/ClaudeLotto/internal/history"
)

// maxSessionMessageAge bounds how old a signed session-creation message may
// be. Old signed messages must not be replayable.
const maxSessionMessageAge = 5 * time.Minute

type createSessionRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
}

// handleCreateSession starts a session after proving wallet ownership: the
// client signs a freshly-timestamped message with the wallet's key.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "Wallet address is required")
		return
	}
	if req.Signature == "" {
		writeError(w, http.StatusBadRequest, "Signature is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	if reason := validateSessionMessage(req.Message, req.WalletAddress); reason != "" {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	if !auth.VerifyWalletSignature(req.WalletAddress, req.Signature, req.Message) {
		writeError(w, http.StatusUnauthorized, "Invalid wallet signature")
		return
	}

	sess, err := s.sessions.Create(r.Context(), req.WalletAddress)
	if err != nil {
		slog.Error("[Session] Create failed", "wallet", req.WalletAddress, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": sess.ID,
		"message":   "Session created successfully",
	})
}

// validateSessionMessage checks the signed message's format, wallet binding
// and timestamp freshness. Returns a client-facing reason, or "" when valid.
func validateSessionMessage(message, walletAddress string) string {
	lines := strings.Split(message, "\n")
	if len(lines) < 3 {
		return "Invalid message format"
	}
	if !strings.Contains(lines[0], "Claude Lotto Session") {
		return "Invalid message type"
	}

	var walletLine, timestampLine string
	for _, line := range lines {
		if strings.HasPrefix(line, "Wallet:") {
			walletLine = line
		}
		if strings.HasPrefix(line, "Timestamp:") {
			timestampLine = line
		}
	}
	if walletLine == "" || !strings.Contains(walletLine, walletAddress) {
		return "Wallet address mismatch"
	}
	if timestampLine == "" {
		return "Missing timestamp"
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(timestampLine, "Timestamp:")), 10, 64)
	if err != nil {
		return "Invalid timestamp format"
	}

	now := time.Now().UnixMilli()
	if ts > now+30_000 {
		return "Timestamp is in the future"
	}
	if now-ts > maxSessionMessageAge.Milliseconds() {
		return "Session message expired. Please try again."
	}
	return ""
}

// handleGetSession reports whether a session is alive. Only the message
// count goes back; the history itself stays server-side.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := muxVar(r, "id")
	walletAddress := r.Header.Get("X-Wallet-Address")
	if sessionID == "" || walletAddress == "" {
		writeError(w, http.StatusBadRequest, "Session ID and wallet address required")
		return
	}

	sess, err := s.sessions.Get(r.Context(), sessionID, walletAddress)
	if err != nil || sess == nil {
		writeError(w, http.StatusNotFound, "Session not found or expired")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":        true,
		"messageCount": len(sess.Messages),
	})
}

// handleStatus is the public game-state endpoint: pot size, recent winners
// (masked) and win totals. Failures degrade to zeros rather than erroring;
// the frontend polls this.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pot, err := s.prizes.PotBalance(ctx)
	if err != nil {
		slog.Warn("[Status] Pot balance read failed", "error", err)
	} else {
		s.metrics.PotBalance.Set(float64(pot))
	}

	wins, err := s.history.RecentWins(ctx, 5)
	if err != nil {
		slog.Warn("[Status] Recent wins read failed", "error", err)
		wins = nil
	}
	for i := range wins {
		wins[i].WalletAddress = maskWalletAddress(wins[i].WalletAddress)
		wins[i].PayoutSignature = truncateSignature(wins[i].PayoutSignature)
		wins[i].PaymentSignature = ""
		wins[i].PrizeReason = ""
	}

	total, err := s.history.TotalWins(ctx)
	if err != nil {
		slog.Warn("[Status] Win count failed", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"potBalance":          pot,
		"messageCostLamports": s.rules.MessageCostLamports,
		"recentWins":          emptyIfNil(wins),
		"totalWins":           total,
	})
}

// handleBalance reports the pot size by itself. Clients poll this between
// turns, so readings are cached briefly instead of hitting the RPC node on
// every request.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	s.balanceMu.Lock()
	if time.Now().Before(s.balanceExpires) {
		pot := s.balanceCached
		s.balanceMu.Unlock()
		writeBalance(w, pot)
		return
	}
	s.balanceMu.Unlock()

	pot, err := s.prizes.PotBalance(r.Context())
	if err != nil {
		slog.Error("[Balance] Pot balance read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read balance")
		return
	}
	s.metrics.PotBalance.Set(float64(pot))

	s.balanceMu.Lock()
	s.balanceCached = pot
	s.balanceExpires = time.Now().Add(balanceCacheTTL)
	s.balanceMu.Unlock()

	writeBalance(w, pot)
}

func writeBalance(w http.ResponseWriter, pot uint64) {
	w.Header().Set("Cache-Control", "public, s-maxage=10, stale-while-revalidate=60")
	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": pot})
}

// handleHistory returns the attempt log alongside win totals and recent
// winners. Public callers get masked wallets and no payment signatures;
// valid admin auth returns the records as stored.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	isAdmin := auth.VerifyAdminAuth(r.Header.Get("Authorization"), s.adminSecret)
	ctx := r.Context()

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	attempts, totalAttempts, err := s.history.ListAttempts(ctx, limit)
	if err != nil {
		slog.Error("[History] Attempt list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if attempts == nil {
		attempts = []history.Attempt{}
	}

	winners, err := s.history.RecentWins(ctx, 10)
	if err != nil {
		slog.Warn("[History] Recent wins read failed", "error", err)
		winners = nil
	}
	totalWins, err := s.history.TotalWins(ctx)
	if err != nil {
		slog.Warn("[History] Win count failed", "error", err)
	}

	if !isAdmin {
		for i := range attempts {
			attempts[i].WalletAddress = maskWalletAddress(attempts[i].WalletAddress)
			attempts[i].PaymentSignature = ""
		}
		for i := range winners {
			winners[i].WalletAddress = maskWalletAddress(winners[i].WalletAddress)
			winners[i].PayoutSignature = truncateSignature(winners[i].PayoutSignature)
			winners[i].PaymentSignature = ""
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempts":      attempts,
		"totalAttempts": totalAttempts,
		"totalWins":     totalWins,
		"recentWinners": emptyIfNil(winners),
	})
}

// handleRecentWins lists recent winners. With valid admin auth the records
// come back unmasked.
func (s *Server) handleRecentWins(w http.ResponseWriter, r *http.Request) {
	isAdmin := auth.VerifyAdminAuth(r.Header.Get("Authorization"), s.adminSecret)

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	wins, err := s.history.RecentWins(r.Context(), limit)
	if err != nil {
		slog.Error("[Wins] List failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load wins")
		return
	}

	if !isAdmin {
		for i := range wins {
			wins[i].WalletAddress = maskWalletAddress(wins[i].WalletAddress)
			wins[i].PayoutSignature = truncateSignature(wins[i].PayoutSignature)
			wins[i].PaymentSignature = ""
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"wins": emptyIfNil(wins)})
}

// handleAuthChallenge hands the client a fresh message to sign and submit
// back through session creation.
func (s *Server) handleAuthChallenge(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"challenge": auth.GenerateAuthChallenge(wallet),
	})
}

func maskWalletAddress(addr string) string {
	if len(addr) <= 8 {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[:4], addr[len(addr)-4:])
}

func truncateSignature(sig string) string {
	if len(sig) <= 8 {
		return sig
	}
	return sig[:8] + "..."
}

func emptyIfNil(wins []history.Win) []history.Win {
	if wins == nil {
		return []history.Win{}
	}
	return wins
}
