package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Tanner253/ClaudeLotto/internal/history"
	"github.com/Tanner253/ClaudeLotto/internal/replay"
	"github.com/Tanner253/ClaudeLotto/internal/session"
)

type chatRequest struct {
	Message              string `json:"message"`
	TransactionSignature string `json:"transactionSignature"`
	SessionID            string `json:"sessionId"`
}

type chatResponse struct {
	Response         string `json:"response"`
	Won              bool   `json:"won"`
	PrizeTransaction string `json:"prizeTransaction,omitempty"`
	PrizeLamports    uint64 `json:"prizeLamports,omitempty"`
}

// handleChat runs the paid-message pipeline. Order matters: the injection
// gate runs before any payment state is touched, the signature is reserved
// before the expensive ledger call, and every rejection after the
// reservation releases it so the player can retry with the same payment.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if len(req.Message) > s.rules.MaxMessageLength {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Message too long (max %d characters)", s.rules.MaxMessageLength))
		return
	}

	// Injection gate. A block is part of the game, not an error: the
	// detector's reason goes back as the reply with status 200, and no
	// payment is consumed.
	assessment := s.detector.Assess(req.Message)
	s.metrics.InjectionScore.Observe(float64(assessment.Score))
	if assessment.Blocked {
		s.metrics.MessagesTotal.WithLabelValues("blocked").Inc()
		s.metrics.InjectionBlocks.WithLabelValues(assessment.Reason).Inc()
		s.flagBlocked(req, assessment.Flags, assessment.Score)
		writeJSON(w, http.StatusOK, chatResponse{Response: assessment.Reason})
		return
	}

	if !validSignatureFormat(req.TransactionSignature) {
		writeError(w, http.StatusBadRequest, "Invalid transaction signature format")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	// Reserve before verifying: the reservation is the atomic gate, the
	// ledger call is the expensive part.
	outcome := s.reserver.Reserve(ctx, req.TransactionSignature)
	s.metrics.Reservations.WithLabelValues(outcome.String()).Inc()
	switch outcome {
	case replay.AlreadyUsed:
		writeError(w, http.StatusBadRequest, "Transaction signature already used")
		return
	case replay.Failed:
		writeError(w, http.StatusInternalServerError, "Failed to process request")
		return
	}

	verifyStart := time.Now()
	verification, err := s.verifier.Verify(ctx, req.TransactionSignature, s.rules.MessageCostLamports)
	s.metrics.VerificationDuration.Observe(time.Since(verifyStart).Seconds())
	if err != nil {
		s.reserver.Release(ctx, req.TransactionSignature)
		s.metrics.VerificationFailures.WithLabelValues("rpc_error").Inc()
		slog.Error("[Chat] Payment verification errored", "signature", req.TransactionSignature, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to verify transaction")
		return
	}
	if !verification.Valid {
		s.reserver.Release(ctx, req.TransactionSignature)
		s.metrics.VerificationFailures.WithLabelValues(verification.Reason).Inc()
		writeError(w, http.StatusBadRequest, verification.Reason)
		return
	}

	// The wallet is whoever actually paid. Client claims are never used.
	wallet := verification.ActualPayer

	sess, err := s.sessions.Get(ctx, req.SessionID, wallet)
	if err != nil || sess == nil {
		s.reserver.Release(ctx, req.TransactionSignature)
		writeError(w, http.StatusUnauthorized, "Invalid or expired session")
		return
	}

	if len(sess.Messages) >= s.rules.MaxConversationLength {
		s.reserver.Release(ctx, req.TransactionSignature)
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Conversation limit reached (%d messages). Please start a new session.", s.rules.MaxConversationLength))
		return
	}

	if res := s.throttle.Check(ctx, wallet); !res.Allowed {
		s.reserver.Release(ctx, req.TransactionSignature)
		s.metrics.ThrottleRejections.Inc()
		w.Header().Set("Retry-After", strconv.FormatInt(int64(res.RetryAfter.Seconds())+1, 10))
		writeError(w, http.StatusTooManyRequests, "Too fast! Please wait a moment between messages.")
		return
	}

	// Every gate passed: burn the signature and start the throttle window.
	s.reserver.Confirm(ctx, req.TransactionSignature, wallet)
	s.throttle.Record(ctx, wallet)

	pot, err := s.prizes.PotBalance(ctx)
	if err != nil {
		slog.Warn("[Chat] Pot balance read failed", "error", err)
	} else {
		s.metrics.PotBalance.Set(float64(pot))
	}

	result, err := s.guardian.Chat(ctx, sess.Messages, req.Message, pot, wallet)
	if err != nil {
		// The payment is consumed at this point. Matching the reservation
		// contract: a confirmed signature is never released.
		s.metrics.MessagesTotal.WithLabelValues("error").Inc()
		slog.Error("[Chat] Guardian request failed", "wallet", wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "An error occurred processing your request")
		return
	}

	if err := s.sessions.Append(ctx, sess,
		session.Message{Role: "user", Content: req.Message},
		session.Message{Role: "assistant", Content: result.Response},
	); err != nil {
		slog.Error("[Chat] Session append failed", "sessionId", sess.ID, "error", err)
	}

	resp := chatResponse{Response: result.Response}
	if result.PrizeSent {
		resp.PrizeTransaction, resp.PrizeLamports = s.payOut(r, wallet, pot, result.PrizeReason, req.TransactionSignature)
		resp.Won = resp.PrizeTransaction != ""
	}

	s.logAttempt(req, wallet, assessment.Score, resp.Won)
	s.metrics.MessagesTotal.WithLabelValues("answered").Inc()
	writeJSON(w, http.StatusOK, resp)
}

// payOut sends the prize and records the win. A payout failure is logged
// and swallowed: the guardian's decision stands and an operator settles it
// by hand from the attempt log.
func (s *Server) payOut(r *http.Request, wallet string, pot uint64, reason, paymentSig string) (string, uint64) {
	ctx := r.Context()

	payoutSig, err := s.prizes.SendPrize(ctx, wallet)
	if err != nil {
		slog.Error("[Chat] Prize send failed", "wallet", wallet, "error", err)
		return "", 0
	}
	s.metrics.PrizesSent.Inc()

	amount := uint64(float64(pot) * s.rules.WinnerShare)
	win := &history.Win{
		WalletAddress:    wallet,
		AmountLamports:   amount,
		PrizeReason:      reason,
		PayoutSignature:  payoutSig,
		PaymentSignature: paymentSig,
	}
	if err := s.history.RecordWin(ctx, win); err != nil {
		slog.Error("[Chat] Win record failed", "wallet", wallet, "error", err)
	}
	slog.Info("[Chat] PRIZE SENT", "wallet", wallet, "amountLamports", amount, "payoutSignature", payoutSig)
	return payoutSig, amount
}

func (s *Server) logAttempt(req chatRequest, wallet string, score int, won bool) {
	attempt := &history.Attempt{
		WalletAddress:    wallet,
		Message:          req.Message,
		InjectionScore:   score,
		PrizeSent:        won,
		PaymentSignature: req.TransactionSignature,
	}
	if err := s.history.LogAttempt(context.Background(), attempt); err != nil {
		slog.Warn("[Chat] Attempt log failed", "wallet", wallet, "error", err)
	}
}

// flagBlocked stores a blocked message for admin review and logs it as an
// attempt. Both are best-effort.
func (s *Server) flagBlocked(req chatRequest, flags []string, score int) {
	ctx := context.Background()
	flagged := &history.FlaggedConversation{
		SessionID: req.SessionID,
		Message:   req.Message,
		Flags:     flags,
		Score:     score,
	}
	if err := s.history.FlagConversation(ctx, flagged); err != nil {
		slog.Warn("[Chat] Flagging failed", "error", err)
	}
	attempt := &history.Attempt{
		Message:        req.Message,
		Blocked:        true,
		InjectionScore: score,
		InjectionFlags: flags,
	}
	if err := s.history.LogAttempt(ctx, attempt); err != nil {
		slog.Warn("[Chat] Attempt log failed", "error", err)
	}
}

// validSignatureFormat is the cheap pre-check before touching Redis or the
// ledger: base58 signatures encode to roughly 88 characters.
func validSignatureFormat(sig string) bool {
	if len(sig) < 80 || len(sig) > 100 {
		return false
	}
	for _, c := range sig {
		switch {
		case c >= '1' && c <= '9', c >= 'A' && c <= 'H', c >= 'J' && c <= 'N',
			c >= 'P' && c <= 'Z', c >= 'a' && c <= 'k', c >= 'm' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
