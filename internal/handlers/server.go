// Package handlers wires the game pipeline to its HTTP surface. The Server
// depends on small interfaces so each stage can be faked in tests; the
// concrete implementations are assembled in cmd/api.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/Tanner253/ClaudeLotto/internal/agent"
	"github.com/Tanner253/ClaudeLotto/internal/history"
	"github.com/Tanner253/ClaudeLotto/internal/injection"
	"github.com/Tanner253/ClaudeLotto/internal/ledger"
	"github.com/Tanner253/ClaudeLotto/internal/metrics"
	"github.com/Tanner253/ClaudeLotto/internal/replay"
	"github.com/Tanner253/ClaudeLotto/internal/session"
	"github.com/Tanner253/ClaudeLotto/internal/throttle"
)

// Detector scores a message for manipulation.
type Detector interface {
	Assess(message string) injection.Assessment
}

// SignatureReserver is the at-most-once gate on payment signatures.
type SignatureReserver interface {
	Reserve(ctx context.Context, signature string) replay.ReserveOutcome
	Confirm(ctx context.Context, signature, wallet string) bool
	Release(ctx context.Context, signature string) bool
}

// PaymentVerifier checks a signature against the ledger.
type PaymentVerifier interface {
	Verify(ctx context.Context, signature string, expectedLamports uint64) (ledger.VerifyResult, error)
}

// Throttler bounds per-wallet request rate.
type Throttler interface {
	Check(ctx context.Context, wallet string) throttle.Result
	Record(ctx context.Context, wallet string)
}

// SessionManager owns conversation state.
type SessionManager interface {
	Create(ctx context.Context, wallet string) (*session.Session, error)
	Get(ctx context.Context, sessionID, wallet string) (*session.Session, error)
	Append(ctx context.Context, sess *session.Session, messages ...session.Message) error
}

// Guardian is the model holding the send_prize tool.
type Guardian interface {
	Chat(ctx context.Context, hist []session.Message, newMessage string, potLamports uint64, wallet string) (agent.Result, error)
}

// PrizeSender reads the pot and pays winners.
type PrizeSender interface {
	PotBalance(ctx context.Context) (uint64, error)
	SendPrize(ctx context.Context, winnerWallet string) (string, error)
}

// HistoryStore is the durable audit trail.
type HistoryStore interface {
	LogAttempt(ctx context.Context, attempt *history.Attempt) error
	ListAttempts(ctx context.Context, limit int) ([]history.Attempt, int64, error)
	RecordWin(ctx context.Context, win *history.Win) error
	RecentWins(ctx context.Context, limit int) ([]history.Win, error)
	TotalWins(ctx context.Context) (int64, error)
	FlagConversation(ctx context.Context, flagged *history.FlaggedConversation) error
	ListFlagged(ctx context.Context, unreviewedOnly bool, limit int) ([]history.FlaggedConversation, error)
	ReviewFlagged(ctx context.Context, id int64, note string) error
}

// GameRules are the policy knobs the handlers enforce.
type GameRules struct {
	MessageCostLamports   uint64
	MaxMessageLength      int
	MaxConversationLength int
	WinnerShare           float64
}

// Server holds every pipeline stage.
type Server struct {
	detector    Detector
	reserver    SignatureReserver
	verifier    PaymentVerifier
	throttle    Throttler
	sessions    SessionManager
	guardian    Guardian
	prizes      PrizeSender
	history     HistoryStore
	metrics     *metrics.Metrics
	rules       GameRules
	adminSecret string

	// The public balance endpoint is polled aggressively by clients, so the
	// pot read is cached for a short window instead of hitting the RPC node
	// on every request.
	balanceMu      sync.Mutex
	balanceCached  uint64
	balanceExpires time.Time
}

// balanceCacheTTL is how long a pot reading serves the balance endpoint.
const balanceCacheTTL = 10 * time.Second

// NewServer assembles the HTTP layer.
func NewServer(
	detector Detector,
	reserver SignatureReserver,
	verifier PaymentVerifier,
	throttler Throttler,
	sessions SessionManager,
	guardian Guardian,
	prizes PrizeSender,
	historyStore HistoryStore,
	m *metrics.Metrics,
	rules GameRules,
	adminSecret string,
) *Server {
	return &Server{
		detector:    detector,
		reserver:    reserver,
		verifier:    verifier,
		throttle:    throttler,
		sessions:    sessions,
		guardian:    guardian,
		prizes:      prizes,
		history:     historyStore,
		metrics:     m,
		rules:       rules,
		adminSecret: adminSecret,
	}
}

// Register mounts all game routes on the router.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/session/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/wins", s.handleRecentWins).Methods(http.MethodGet)
	api.HandleFunc("/auth/challenge", s.handleAuthChallenge).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/flagged", s.handleListFlagged).Methods(http.MethodGet)
	admin.HandleFunc("/flagged/{id}/review", s.handleReviewFlagged).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func muxVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
