package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository"
)

// Resets is an in-memory password reset store.
type Resets struct {
	mu     sync.Mutex
	resets map[string]model.PasswordReset
}

// NewResets creates an empty reset store.
func NewResets() *Resets {
	return &Resets{resets: make(map[string]model.PasswordReset)}
}

// Create replaces any outstanding reset for the account.
func (s *Resets) Create(_ context.Context, rec *model.PasswordReset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteByAccountLocked(rec.AccountID)
	s.resets[rec.ID] = *rec
	return nil
}

// GetByTokenHash returns the reset with hash or ErrNotFound.
func (s *Resets) GetByTokenHash(_ context.Context, hash string) (*model.PasswordReset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.resets {
		if rec.TokenHash == hash {
			cp := rec
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Delete removes a reset by id, or returns ErrNotFound if it is absent.
func (s *Resets) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.resets, id)
	return nil
}

// DeleteByAccount removes every reset for accountID.
func (s *Resets) DeleteByAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteByAccountLocked(accountID)
	return nil
}

// DeleteExpired removes resets that expired before now.
func (s *Resets) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.resets {
		if rec.ExpiresAt.Before(now) {
			delete(s.resets, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many resets are stored.
func (s *Resets) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resets)
}

func (s *Resets) deleteByAccountLocked(accountID string) {
	for id, rec := range s.resets {
		if rec.AccountID == accountID {
			delete(s.resets, id)
		}
	}
}
