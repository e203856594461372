package account

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeHasher struct {
	err error
}

func (f fakeHasher) Hash(p string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "hashed:" + p, nil
}

type recordingMailer struct {
	err  error
	sent []string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject+"|"+body)
	return nil
}

func TestPreparePasswordHashesPendingValue(t *testing.T) {
	u := &User{AuthMethod: AuthLocal, Password: "pw123"}
	if err := PreparePassword(fakeHasher{}, u); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if u.PasswordHash != "hashed:pw123" || u.Password != "" {
		t.Fatalf("unexpected state: hash=%q pending=%q", u.PasswordHash, u.Password)
	}
}

func TestPreparePasswordKeepsExistingHash(t *testing.T) {
	u := &User{AuthMethod: AuthLocal, PasswordHash: "existing"}
	if err := PreparePassword(fakeHasher{err: errors.New("must not be called")}, u); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if u.PasswordHash != "existing" {
		t.Fatalf("hash changed: %q", u.PasswordHash)
	}
}

func TestPreparePasswordEnforcesMethodInvariant(t *testing.T) {
	if err := PreparePassword(fakeHasher{}, &User{AuthMethod: AuthLocal}); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}
	if err := PreparePassword(fakeHasher{}, &User{AuthMethod: AuthGoogle, Password: "x"}); !errors.Is(err, ErrPasswordNotAllowed) {
		t.Fatalf("expected ErrPasswordNotAllowed, got %v", err)
	}
	if err := PreparePassword(fakeHasher{}, &User{AuthMethod: AuthGoogle}); err != nil {
		t.Fatalf("federated without password must pass: %v", err)
	}
}

func TestPreparePasswordPropagatesHashFailure(t *testing.T) {
	boom := errors.New("boom")
	if err := PreparePassword(fakeHasher{err: boom}, &User{AuthMethod: AuthLocal, Password: "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected hash failure, got %v", err)
	}
}

func TestDispatchOTPRendersMail(t *testing.T) {
	m := &recordingMailer{}
	if err := DispatchOTP(context.Background(), m, &OTPRecord{Email: "a@x.com", Code: "1234"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "<h3>Your OTP is : 1234</h3>") || !strings.Contains(m.sent[0], OTPMailSubject) {
		t.Fatalf("unexpected mail: %v", m.sent)
	}
}

func TestDispatchOTPFailureIsWrapped(t *testing.T) {
	m := &recordingMailer{err: errors.New("smtp down")}
	err := DispatchOTP(context.Background(), m, &OTPRecord{Email: "a@x.com", Code: "1"})
	if !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected ErrDispatch, got %v", err)
	}
	if err := DispatchOTP(context.Background(), nil, &OTPRecord{}); !errors.Is(err, ErrDispatch) {
		t.Fatalf("expected ErrDispatch for nil mailer, got %v", err)
	}
}

func TestSanitizedStripsHiddenFields(t *testing.T) {
	u := &User{ID: "1", Password: "p", PasswordHash: "h", RefreshTokens: []string{"t"}}
	s := u.Sanitized()
	if s.PasswordHash != "" || s.Password != "" || s.RefreshTokens != nil {
		t.Fatalf("hidden fields leaked: %+v", s)
	}
	if u.PasswordHash != "h" {
		t.Fatal("Sanitized must not mutate the receiver")
	}
}
