package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/bakeryauth/account"
)

// OTPs is a map-backed account.OTPStore with lazy TTL expiry.
type OTPs struct {
	mu      sync.Mutex
	mailer  account.Mailer
	now     func() time.Time
	ttl     time.Duration
	records map[string]account.OTPRecord
}

// NewOTPs returns an empty store that mails codes through m.
func NewOTPs(m account.Mailer) *OTPs {
	return &OTPs{
		mailer:  m,
		now:     time.Now,
		ttl:     account.OTPTTL,
		records: make(map[string]account.OTPRecord),
	}
}

// WithClock overrides the clock used for createdAt and expiry.
func (s *OTPs) WithClock(now func() time.Time) *OTPs {
	s.now = now
	return s
}

// live returns the record for email, purging it when expired. Caller holds mu.
func (s *OTPs) live(email string) (account.OTPRecord, bool) {
	rec, ok := s.records[email]
	if !ok {
		return rec, false
	}
	if !s.now().Before(rec.CreatedAt.Add(s.ttl)) {
		delete(s.records, email)
		return rec, false
	}
	return rec, true
}

func (s *OTPs) FindOne(_ context.Context, email, code string) (*account.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(account.NormalizeEmail(email))
	if !ok || (code != "" && rec.Code != code) {
		return nil, account.ErrNotFound
	}
	return &rec, nil
}

func (s *OTPs) Create(ctx context.Context, rec *account.OTPRecord) error {
	email := account.NormalizeEmail(rec.Email)

	s.mu.Lock()
	if _, exists := s.live(email); exists {
		s.mu.Unlock()
		return account.ErrDuplicate
	}
	s.mu.Unlock()

	if rec.Count > account.MaxOTPCount {
		return account.ErrCountExceeded
	}
	if err := account.DispatchOTP(ctx, s.mailer, rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := *rec
	next.Email = email
	next.CreatedAt = s.now()
	s.records[email] = next
	rec.CreatedAt = next.CreatedAt
	return nil
}

// Save rewrites the live record for rec.Email, keeping its creation time.
// A missing or expired record reports account.ErrNotFound.
func (s *OTPs) Save(ctx context.Context, rec *account.OTPRecord) error {
	email := account.NormalizeEmail(rec.Email)
	if rec.Count > account.MaxOTPCount {
		return account.ErrCountExceeded
	}

	s.mu.Lock()
	_, ok := s.live(email)
	s.mu.Unlock()
	if !ok {
		return account.ErrNotFound
	}
	if err := account.DispatchOTP(ctx, s.mailer, rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.live(email)
	if !ok {
		return account.ErrNotFound
	}
	next := *rec
	next.Email = email
	next.CreatedAt = prev.CreatedAt
	s.records[email] = next
	rec.CreatedAt = prev.CreatedAt
	return nil
}

func (s *OTPs) DeleteOne(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = account.NormalizeEmail(email)
	rec, ok := s.records[email]
	if !ok {
		return nil
	}
	if code != "" && rec.Code != code {
		return nil
	}
	delete(s.records, email)
	return nil
}
