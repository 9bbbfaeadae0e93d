// Package history persists the game's durable records in Supabase: every
// paid attempt, every win, and conversations flagged for admin review. Hot
// state (sessions, signature reservations) lives in Redis; this is the
// audit trail.
package history

import (
	"context"
	"fmt"
	"time"

	supabase "github.com/supabase-community/supabase-go"
)

// Attempt is one paid message and what the pipeline decided about it.
type Attempt struct {
	WalletAddress    string   `json:"wallet_address"`
	Message          string   `json:"message"`
	Blocked          bool     `json:"blocked"`
	BlockReason      string   `json:"block_reason,omitempty"`
	InjectionScore   int      `json:"injection_score"`
	InjectionFlags   []string `json:"injection_flags,omitempty"`
	PrizeSent        bool     `json:"prize_sent"`
	PaymentSignature string   `json:"payment_signature"`
	CreatedAt        string   `json:"created_at,omitempty"`
}

// Win is a successful convincing of the guardian.
type Win struct {
	ID               int64  `json:"id,omitempty"`
	WalletAddress    string `json:"wallet_address"`
	AmountLamports   uint64 `json:"amount_lamports"`
	PrizeReason      string `json:"prize_reason"`
	PayoutSignature  string `json:"payout_signature"`
	PaymentSignature string `json:"payment_signature"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// FlaggedConversation is an exchange the detector scored as suspicious,
// kept for human review.
type FlaggedConversation struct {
	ID            int64    `json:"id,omitempty"`
	WalletAddress string   `json:"wallet_address"`
	SessionID     string   `json:"session_id"`
	Message       string   `json:"message"`
	Flags         []string `json:"flags"`
	Score         int      `json:"score"`
	Reviewed      bool     `json:"reviewed"`
	ReviewNote    string   `json:"review_note,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

// Store wraps the Supabase client with the game's table operations.
type Store struct {
	client *supabase.Client
}

// NewStore creates a history store against the given Supabase project.
func NewStore(url, serviceKey string) (*Store, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service key must be set")
	}
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Store{client: client}, nil
}

// LogAttempt records one paid message outcome.
func (s *Store) LogAttempt(ctx context.Context, attempt *Attempt) error {
	if attempt.CreatedAt == "" {
		attempt.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	var result []Attempt
	_, err := s.client.From("attempts").
		Insert(attempt, false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("log attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the newest attempts, capped at limit, along with the
// total attempt count across all time.
func (s *Store) ListAttempts(ctx context.Context, limit int) ([]Attempt, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	var attempts []Attempt
	count, err := s.client.From("attempts").
		Select("*", "exact", false).
		Order("created_at", nil).
		Limit(limit, "").
		ExecuteTo(&attempts)
	if err != nil {
		return nil, 0, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, count, nil
}

// RecordWin stores a payout that actually happened.
func (s *Store) RecordWin(ctx context.Context, win *Win) error {
	if win.CreatedAt == "" {
		win.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	var result []Win
	_, err := s.client.From("wins").
		Insert(win, false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("record win: %w", err)
	}
	return nil
}

// RecentWins lists the newest wins, capped at limit.
func (s *Store) RecentWins(ctx context.Context, limit int) ([]Win, error) {
	if limit <= 0 {
		limit = 10
	}
	var wins []Win
	_, err := s.client.From("wins").
		Select("*", "", false).
		Order("created_at", nil).
		Limit(limit, "").
		ExecuteTo(&wins)
	if err != nil {
		return nil, fmt.Errorf("list wins: %w", err)
	}
	return wins, nil
}

// TotalWins counts all wins ever.
func (s *Store) TotalWins(ctx context.Context) (int64, error) {
	_, count, err := s.client.From("wins").
		Select("id", "exact", false).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("count wins: %w", err)
	}
	return count, nil
}

// FlagConversation stores a suspicious exchange for admin review.
func (s *Store) FlagConversation(ctx context.Context, flagged *FlaggedConversation) error {
	if flagged.CreatedAt == "" {
		flagged.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	var result []FlaggedConversation
	_, err := s.client.From("flagged_conversations").
		Insert(flagged, false, "", "", "").
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("flag conversation: %w", err)
	}
	return nil
}

// ListFlagged returns flagged conversations, optionally only the ones not
// yet reviewed.
func (s *Store) ListFlagged(ctx context.Context, unreviewedOnly bool, limit int) ([]FlaggedConversation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.client.From("flagged_conversations").
		Select("*", "", false).
		Order("created_at", nil)
	if unreviewedOnly {
		query = query.Eq("reviewed", "false")
	}
	var flagged []FlaggedConversation
	_, err := query.Limit(limit, "").ExecuteTo(&flagged)
	if err != nil {
		return nil, fmt.Errorf("list flagged: %w", err)
	}
	return flagged, nil
}

// ReviewFlagged marks a flagged conversation as reviewed with a note.
func (s *Store) ReviewFlagged(ctx context.Context, id int64, note string) error {
	var result []FlaggedConversation
	_, err := s.client.From("flagged_conversations").
		Update(map[string]interface{}{
			"reviewed":    true,
			"review_note": note,
		}, "", "").
		Eq("id", fmt.Sprintf("%d", id)).
		ExecuteTo(&result)
	if err != nil {
		return fmt.Errorf("review flagged %d: %w", id, err)
	}
	return nil
}
