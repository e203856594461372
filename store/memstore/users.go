package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/bakeryauth/account"
	"github.com/google/uuid"
)

// Users is a map-backed account.CredentialStore.
type Users struct {
	mu      sync.RWMutex
	hasher  account.PasswordHasher
	now     func() time.Time
	byID    map[string]*account.User
	byEmail map[string]string
}

// NewUsers returns an empty store that hashes passwords with h.
func NewUsers(h account.PasswordHasher) *Users {
	return &Users{
		hasher:  h,
		now:     time.Now,
		byID:    make(map[string]*account.User),
		byEmail: make(map[string]string),
	}
}

// WithClock overrides the timestamp source.
func (s *Users) WithClock(now func() time.Time) *Users {
	s.now = now
	return s
}

func (s *Users) FindByEmail(_ context.Context, email string, withHidden bool) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[account.NormalizeEmail(email)]
	if !ok {
		return nil, account.ErrNotFound
	}
	return project(s.byID[id], withHidden), nil
}

func (s *Users) FindByID(_ context.Context, id string, withHidden bool) (*account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return project(u, withHidden), nil
}

func (s *Users) Create(_ context.Context, u *account.User) error {
	if err := account.PreparePassword(s.hasher, u); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := account.NormalizeEmail(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return account.ErrDuplicate
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := s.now()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now

	s.byID[u.ID] = u.Clone()
	s.byEmail[email] = u.ID
	return nil
}

func (s *Users) Save(_ context.Context, u *account.User) error {
	if err := account.PreparePassword(s.hasher, u); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := account.NormalizeEmail(u.Email)
	if owner, exists := s.byEmail[email]; exists && owner != u.ID {
		return account.ErrDuplicate
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if prev, ok := s.byID[u.ID]; ok {
		delete(s.byEmail, prev.Email)
		if u.CreatedAt.IsZero() {
			u.CreatedAt = prev.CreatedAt
		}
	}
	u.Email = email
	u.UpdatedAt = s.now()

	s.byID[u.ID] = u.Clone()
	s.byEmail[email] = u.ID
	return nil
}

func (s *Users) UpdateByID(_ context.Context, id string, patch account.UserPatch) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	next := cur.Clone()
	patch.Apply(next)
	if err := account.PreparePassword(s.hasher, next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	s.byID[id] = next
	return project(next, false), nil
}

// Len reports how many users are stored.
func (s *Users) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func project(u *account.User, withHidden bool) *account.User {
	if withHidden {
		return u.Clone()
	}
	return u.Sanitized()
}
