package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository"
	"github.com/iliyamo/homestay-auth/internal/utils"
)

// Otps is an in-memory one-time code store.
type Otps struct {
	mu      sync.Mutex
	clock   Clock
	newCode func() (string, error)
	codes   map[string]model.OneTimeCode
}

// NewOtps creates an empty code store.
func NewOtps(clock Clock) *Otps {
	return &Otps{clock: clock, newCode: utils.NewOTPCode, codes: make(map[string]model.OneTimeCode)}
}

// WithCodeSource replaces the code generator. Tests use it to get predictable codes.
func (s *Otps) WithCodeSource(fn func() (string, error)) *Otps {
	s.newCode = fn
	return s
}

// Create drops every code for email and stores a new one.
func (s *Otps) Create(_ context.Context, email string) (*model.OneTimeCode, error) {
	code, err := s.newCode()
	if err != nil {
		return nil, err
	}
	email = model.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteAllLocked(email)
	rec := model.OneTimeCode{
		ID:        ulid.Make().String(),
		Email:     email,
		Code:      code,
		CreatedAt: s.clock.now(),
	}
	s.codes[rec.ID] = rec
	return &rec, nil
}

// FindByEmailAndCode returns the matching code or ErrNotFound.
func (s *Otps) FindByEmailAndCode(_ context.Context, email, code string) (*model.OneTimeCode, error) {
	email = model.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.codes {
		if rec.Email == email && rec.Code == code {
			cp := rec
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Delete removes the code with id, or returns ErrNotFound if it is gone.
func (s *Otps) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.codes, id)
	return nil
}

// DeleteAllFor removes every code for email.
func (s *Otps) DeleteAllFor(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteAllLocked(model.NormalizeEmail(email))
	return nil
}

// DeleteOlderThan removes codes created before cutoff.
func (s *Otps) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.codes {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.codes, id)
			n++
		}
	}
	return n, nil
}

// Count reports how many codes are live for email.
func (s *Otps) Count(email string) int {
	email = model.NormalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.codes {
		if rec.Email == email {
			n++
		}
	}
	return n
}

func (s *Otps) deleteAllLocked(email string) {
	for id, rec := range s.codes {
		if rec.Email == email {
			delete(s.codes, id)
		}
	}
}
