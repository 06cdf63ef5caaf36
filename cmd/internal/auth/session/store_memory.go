package session

import (
	"context"
	"sync"
	"time"
)

// memoryPruneEvery spaces out the expired-row scans done by Create.
const memoryPruneEvery = time.Minute

// MemoryStore keeps sessions in process memory. Rows past their expiry,
// revoked or not, are dropped by Create.
type MemoryStore struct {
	mu        sync.Mutex
	rows      map[string]Row
	byUser    map[string]map[string]struct{}
	lastPrune time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[string]Row),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Create(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now := row.CreatedAt; now.Sub(s.lastPrune) >= memoryPruneEvery {
		s.pruneLocked(now)
		s.lastPrune = now
	}

	s.rows[row.ID] = row
	ids := s.byUser[row.UserID]
	if ids == nil {
		ids = make(map[string]struct{})
		s.byUser[row.UserID] = ids
	}
	ids[row.ID] = struct{}{}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[sessionID]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return row, nil
}

func (s *MemoryStore) Touch(_ context.Context, now time.Time, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	row.LastUsedAt = &now
	s.rows[sessionID] = row
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, now time.Time, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revokeLocked(now, sessionID)
	return nil
}

func (s *MemoryStore) RevokeAll(_ context.Context, now time.Time, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.byUser[userID] {
		s.revokeLocked(now, id)
	}
	return nil
}

func (s *MemoryStore) revokeLocked(now time.Time, sessionID string) {
	row, ok := s.rows[sessionID]
	if !ok || row.RevokedAt != nil {
		return
	}
	row.RevokedAt = &now
	s.rows[sessionID] = row
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for id, row := range s.rows {
		if row.ExpiresAt.After(now) {
			continue
		}
		delete(s.rows, id)
		if ids := s.byUser[row.UserID]; ids != nil {
			delete(ids, id)
			if len(ids) == 0 {
				delete(s.byUser, row.UserID)
			}
		}
	}
}

// Len reports how many rows are held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
