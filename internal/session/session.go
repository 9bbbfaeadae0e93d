// Package session keeps per-wallet conversation state in Redis with a TTL.
// Sessions are bound to the wallet that created them; a session ID alone is
// not enough to read or extend someone else's conversation.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RedisClient is the minimal Redis surface the session manager needs.
type RedisClient interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Del(ctx context.Context, keys ...string) error
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is a wallet's running conversation.
type Session struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Messages      []Message `json:"messages"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ErrWalletMismatch is returned when a session exists but belongs to a
// different wallet than the caller claims.
var ErrWalletMismatch = fmt.Errorf("session does not belong to this wallet")

// Manager creates, loads and extends sessions. Every write refreshes the
// TTL, so a session dies only after the full idle window.
type Manager struct {
	client    RedisClient
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// NewManager creates a session manager with the given idle TTL.
func NewManager(client RedisClient, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		client:    client,
		keyPrefix: "lotto:session:",
		ttl:       ttl,
		now:       time.Now,
	}
}

// Create starts an empty session for the wallet and persists it.
func (m *Manager) Create(ctx context.Context, wallet string) (*Session, error) {
	now := m.now().UTC()
	sess := &Session{
		ID:            uuid.NewString(),
		WalletAddress: wallet,
		Messages:      []Message{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session and checks wallet ownership. A missing or expired
// session is (nil, nil).
func (m *Manager) Get(ctx context.Context, sessionID, wallet string) (*Session, error) {
	raw, found, err := m.client.Get(ctx, m.keyPrefix+sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return nil, nil
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	if sess.WalletAddress != wallet {
		return nil, ErrWalletMismatch
	}
	return &sess, nil
}

// appendScript pushes turns onto the stored message list inside Redis, so
// two requests appending to the same session cannot overwrite each other's
// turns. Returns 0 when the session key has expired.
const appendScript = `
local raw = redis.call('GET', KEYS[1])
if not raw then
	return 0
end
local sess = cjson.decode(raw)
for _, m in ipairs(cjson.decode(ARGV[1])) do
	table.insert(sess.messages, m)
end
sess.updatedAt = ARGV[2]
redis.call('SET', KEYS[1], cjson.encode(sess), 'EX', tonumber(ARGV[3]))
return 1
`

// Append adds turns to the session and refreshes its TTL. The append is a
// single atomic script on the stored record, not a read-modify-write of the
// caller's copy.
func (m *Manager) Append(ctx context.Context, sess *Session, messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	now := m.now().UTC()

	batch, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}
	res, err := m.client.Eval(ctx, appendScript,
		[]string{m.keyPrefix + sess.ID},
		string(batch), now.Format(time.RFC3339Nano), int64(m.ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("append to session: %w", err)
	}

	sess.Messages = append(sess.Messages, messages...)
	sess.UpdatedAt = now
	if n, ok := res.(int64); !ok || n != 1 {
		// The session expired between load and append; write the caller's
		// copy back whole so the conversation survives.
		return m.save(ctx, sess)
	}
	return nil
}

// Delete removes a session immediately.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.client.Del(ctx, m.keyPrefix+sessionID)
}

func (m *Manager) save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.client.Set(ctx, m.keyPrefix+sess.ID, raw, m.ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}
