// Package memory provides map-backed implementations of the account, one-time
// code and password reset stores. They honor the same contracts as the MySQL
// repositories, including the single-winner delete and the conditional
// verification transition, and are used by tests and by `serve --store=memory`.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/homestay-auth/internal/model"
	"github.com/iliyamo/homestay-auth/internal/repository"
)

// Clock returns the current time. A nil Clock means time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// Accounts is an in-memory account store.
type Accounts struct {
	mu      sync.RWMutex
	clock   Clock
	byID    map[string]*model.Account
	byEmail map[string]string
}

// NewAccounts creates an empty account store.
func NewAccounts(clock Clock) *Accounts {
	return &Accounts{
		clock:   clock,
		byID:    make(map[string]*model.Account),
		byEmail: make(map[string]string),
	}
}

// Create stores a copy of a.
func (s *Accounts) Create(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.Email = model.NormalizeEmail(a.Email)
	if _, ok := s.byEmail[a.Email]; ok {
		return repository.ErrEmailExists
	}
	now := s.clock.now()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	s.byID[a.ID] = &cp
	s.byEmail[a.Email] = a.ID
	return nil
}

func (s *Accounts) get(id string, withCredentials bool) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	if !withCredentials {
		cp = cp.WithoutCredentials()
	}
	return &cp, nil
}

func (s *Accounts) idFor(email string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[model.NormalizeEmail(email)]
	if !ok {
		return "", repository.ErrNotFound
	}
	return id, nil
}

// GetByID returns the account without credentials.
func (s *Accounts) GetByID(_ context.Context, id string) (*model.Account, error) {
	return s.get(id, false)
}

// GetByEmail returns the account without credentials.
func (s *Accounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	id, err := s.idFor(email)
	if err != nil {
		return nil, err
	}
	return s.get(id, false)
}

// GetCredentialsByEmail returns the account including credential fields.
func (s *Accounts) GetCredentialsByEmail(_ context.Context, email string) (*model.Account, error) {
	id, err := s.idFor(email)
	if err != nil {
		return nil, err
	}
	return s.get(id, true)
}

// GetCredentialsByID returns the account including credential fields.
func (s *Accounts) GetCredentialsByID(_ context.Context, id string) (*model.Account, error) {
	return s.get(id, true)
}

func (s *Accounts) update(id string, fn func(a *model.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = s.clock.now()
	return nil
}

// SetRefreshTokenHash overwrites the stored refresh token hash.
func (s *Accounts) SetRefreshTokenHash(_ context.Context, id, hash string) error {
	return s.update(id, func(a *model.Account) { a.RefreshTokenHash = hash })
}

// UpdatePassword replaces the password hash and clears the refresh token.
func (s *Accounts) UpdatePassword(_ context.Context, id, passwordHash string) error {
	return s.update(id, func(a *model.Account) {
		a.PasswordHash = passwordHash
		a.RefreshTokenHash = ""
	})
}

// SetBlocked sets the blocked flag.
func (s *Accounts) SetBlocked(_ context.Context, id string, blocked bool) error {
	return s.update(id, func(a *model.Account) { a.IsBlocked = blocked })
}

// TransitionVerification applies t atomically under the store lock.
func (s *Accounts) TransitionVerification(_ context.Context, id string, t model.VerificationTransition) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok || a.Role != model.RoleHost {
		return nil, repository.ErrNotFound
	}
	if !t.Allows(a.VerificationStatus) {
		return nil, repository.ErrStateConflict
	}
	a.VerificationStatus = t.To
	a.IsVerified = t.IsVerified
	a.RejectionReason = t.Reason
	a.UpdatedAt = s.clock.now()

	cp := a.WithoutCredentials()
	return &cp, nil
}

// ListHosts returns hosts, optionally filtered by status, newest first.
func (s *Accounts) ListHosts(_ context.Context, status model.VerificationStatus) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Account
	for _, a := range s.byID {
		if a.Role != model.RoleHost {
			continue
		}
		if status != model.VerificationNone && a.VerificationStatus != status {
			continue
		}
		out = append(out, a.WithoutCredentials())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
