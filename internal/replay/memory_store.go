package replay

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-backed Store for tests and single-process use. The
// uniqueness guarantee only holds within one process; production deployments
// use RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory signature store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) InsertUnique(_ context.Context, rec Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.Signature]; exists {
		return false, nil
	}
	s.records[rec.Signature] = rec
	return true, nil
}

func (s *MemoryStore) ConfirmPending(_ context.Context, signature, wallet string, usedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.records[signature]
	if !exists || rec.Status != StatusPending {
		return false, nil
	}
	rec.Status = StatusConfirmed
	rec.WalletAddress = wallet
	rec.UsedAt = usedAt
	s.records[signature] = rec
	return true, nil
}

func (s *MemoryStore) DeletePending(_ context.Context, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.records[signature]
	if !exists || rec.Status != StatusPending {
		return false, nil
	}
	delete(s.records, signature)
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, signature string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.records[signature]
	if !exists {
		return nil, nil
	}
	return &rec, nil
}
