package bakeryauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/bakeryauth/account"
	"github.com/MrEthical07/bakeryauth/password"
	"github.com/MrEthical07/bakeryauth/store/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type testMailer struct {
	err  error
	sent []string
}

func (m *testMailer) Send(_ context.Context, to, _, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+" "+body)
	return nil
}

type testEnv struct {
	engine *Engine
	users  *memstore.Users
	otps   *memstore.OTPs
	mail   *testMailer
	redis  *miniredis.Miniredis
	audit  *ChannelSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-for-tests-0123")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-for-tests-0123")
	cfg.Password = PasswordConfig{
		Memory:         8 * 1024,
		Time:           1,
		Parallelism:    1,
		SaltLength:     16,
		KeyLength:      16,
		UpgradeOnLogin: true,
	}
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}

	mail := &testMailer{}
	users := memstore.NewUsers(hasher)
	otps := memstore.NewOTPs(mail)
	sink := NewChannelSink(256)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithOTPStore(otps).
		WithPasswordHasher(hasher).
		WithAuditSink(sink).
		WithOTPGenerator(func(digits int) (string, error) {
			if digits == 4 {
				return "1234", nil
			}
			return "123456", nil
		}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, users: users, otps: otps, mail: mail, redis: mr, audit: sink}
}

func (env *testEnv) registerVerified(t *testing.T, name, email string) *User {
	t.Helper()
	ctx := context.Background()
	if _, err := env.engine.Register(ctx, RegisterRequest{Username: name, Email: email, Password: "pw123", Role: RoleBuyer}); err != nil {
		t.Fatalf("register: %v", err)
	}
	u, err := env.engine.VerifyOTP(ctx, email, "1234")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	return u
}

func (env *testEnv) tokens(t *testing.T, id string) []string {
	t.Helper()
	u, err := env.users.FindByID(context.Background(), id, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return u.RefreshTokens
}

func (env *testEnv) drainAudit() []AuditEvent {
	env.engine.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-env.audit.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestAliceRegistersAndVerifies(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	u, err := env.engine.Register(ctx, RegisterRequest{Username: "alice", Email: "a@x.com", Password: "pw123", Role: RoleBuyer})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Status != "pending" || u.AuthMethod != "local" || u.EmailVerified {
		t.Fatalf("unexpected state after register: %+v", u)
	}
	rec, err := env.otps.FindOne(ctx, "a@x.com", "")
	if err != nil || rec.Count != 0 || rec.Code != "1234" {
		t.Fatalf("unexpected otp record: %+v err=%v", rec, err)
	}
	if len(env.mail.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(env.mail.sent))
	}

	verified, err := env.engine.VerifyOTP(ctx, "a@x.com", "1234")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Status != "verified" || !verified.EmailVerified {
		t.Fatalf("unexpected state after verify: %+v", verified)
	}
	if _, err := env.otps.FindOne(ctx, "a@x.com", ""); err == nil {
		t.Fatal("otp record must be gone after verify")
	}
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.engine.Register(ctx, RegisterRequest{Email: "a@x.com", Password: "p", Role: RoleBuyer})
	if !errors.Is(err, ErrAllFieldsRequired) || KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = env.engine.Register(ctx, RegisterRequest{Username: "a", Email: "a@x.com", Password: "p", Role: "admin"})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected invalid role, got %v", err)
	}

	env.registerVerified(t, "alice", "a@x.com")
	_, err = env.engine.Register(ctx, RegisterRequest{Username: "b", Email: "a@x.com", Password: "p", Role: RoleSeller})
	if !errors.Is(err, ErrUserExists) || KindOf(err).HTTPStatus() != 400 {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterMailFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mail.err = errors.New("smtp down")

	_, err := env.engine.Register(context.Background(), RegisterRequest{Username: "a", Email: "a@x.com", Password: "p", Role: RoleBuyer})
	if !errors.Is(err, ErrMailFailed) || KindOf(err) != KindInternal {
		t.Fatalf("expected mail failure, got %v", err)
	}
	if env.users.Len() != 1 {
		t.Fatal("user must stay persisted after mail failure")
	}
}

func TestVerifyOTPErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.engine.Register(ctx, RegisterRequest{Username: "a", Email: "a@x.com", Password: "p", Role: RoleBuyer}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := env.engine.VerifyOTP(ctx, "a@x.com", "0000"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected invalid otp, got %v", err)
	}
	if _, err := env.engine.VerifyOTP(ctx, "b@x.com", "1234"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected invalid otp for other email, got %v", err)
	}
}

func TestFourthResendHitsLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.engine.Register(ctx, RegisterRequest{Username: "a", Email: "a@x.com", Password: "p", Role: RoleBuyer}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := env.engine.ResendOTP(ctx, "a@x.com"); err != nil {
			t.Fatalf("resend %d: %v", i+1, err)
		}
	}
	err := env.engine.ResendOTP(ctx, "a@x.com")
	if !errors.Is(err, ErrOTPLimitExceeded) || KindOf(err) != KindLimitExceeded {
		t.Fatalf("expected limit exceeded, got %v", err)
	}
	if err := env.engine.ResendOTP(ctx, "nobody@x.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.registerVerified(t, "alice", "a@x.com")

	if err := env.engine.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	rec, err := env.otps.FindOne(ctx, "a@x.com", "")
	if err != nil || rec.Code != "123456" {
		t.Fatalf("expected 6-digit code, got %+v err=%v", rec, err)
	}
	if err := env.engine.ResetPassword(ctx, "a@x.com", "000000", "newpass"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected invalid otp, got %v", err)
	}
	if err := env.engine.ResetPassword(ctx, "a@x.com", "123456", "newpass"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, err := env.engine.Login(ctx, "a@x.com", "pw123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must fail, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "a@x.com", "newpass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestPasswordResetRefusesGoogleAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.engine.ProvisionFederated(ctx, FederatedProfile{Email: "g@x.com", Name: "Gee"}); err != nil {
		t.Fatalf("provision: %v", err)
	}
	sent := len(env.mail.sent)

	err := env.engine.ForgotPassword(ctx, "g@x.com")
	if !errors.Is(err, ErrNotLocalAccount) || KindOf(err).HTTPStatus() != 400 {
		t.Fatalf("expected not-local refusal, got %v", err)
	}
	if len(env.mail.sent) != sent {
		t.Fatal("no reset code may be mailed to a google account")
	}
	if _, err := env.otps.FindOne(ctx, "g@x.com", ""); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("expected no otp record, got %v", err)
	}

	// A code left over from registration-time resends must not reach the store.
	if err := env.otps.Create(ctx, &account.OTPRecord{Email: "g@x.com", Code: "123456"}); err != nil {
		t.Fatalf("seed otp: %v", err)
	}
	err = env.engine.ResetPassword(ctx, "g@x.com", "123456", "newpass")
	if !errors.Is(err, ErrNotLocalAccount) || KindOf(err) == KindInternal {
		t.Fatalf("expected not-local refusal, got %v", err)
	}
	if _, err := env.otps.FindOne(ctx, "g@x.com", ""); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("refused reset must drop the code, got %v", err)
	}
	u, err := env.users.FindByEmail(ctx, "g@x.com", true)
	if err != nil || u.PasswordHash != "" || u.AuthMethod != account.AuthGoogle {
		t.Fatalf("google account must stay password-less: %+v err=%v", u, err)
	}
}

func TestLoginVerifiesLegacyBcryptAndUpgrades(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("pw123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &User{
		Username:      "old",
		Email:         "old@x.com",
		Role:          RoleBuyer,
		AuthMethod:    account.AuthLocal,
		Status:        account.StatusVerified,
		EmailVerified: true,
		PasswordHash:  string(legacy),
	}
	if err := env.users.Create(ctx, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if _, err := env.engine.Login(ctx, "old@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "old@x.com", "pw123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	stored, err := env.users.FindByEmail(ctx, "old@x.com", true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Fatalf("expected argon2 rehash, got %q", stored.PasswordHash)
	}
	if !password.VerifyPassword(stored.PasswordHash, "pw123") {
		t.Fatal("rehashed password must still verify")
	}
}

func TestLocalVerifierUpgradeGate(t *testing.T) {
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	legacy, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)

	on := localVerifier{hasher: hasher, upgrade: true}
	if ok, err := on.Verify("pw", string(legacy)); !ok || err != nil {
		t.Fatalf("expected bcrypt match: ok=%v err=%v", ok, err)
	}
	if ok, _ := on.Verify("pw", "garbage"); ok {
		t.Fatal("malformed hash must not match")
	}
	if up, _ := on.NeedsUpgrade(string(legacy)); !up {
		t.Fatal("bcrypt must be upgraded when enabled")
	}
	off := localVerifier{hasher: hasher}
	if up, _ := off.NeedsUpgrade(string(legacy)); up {
		t.Fatal("upgrade disabled must never rehash")
	}
}

func TestUpgradeOnLoginRequiresSharedHasher(t *testing.T) {
	cfg := testConfig()
	_, err := New().
		WithConfig(cfg).
		WithUserStore(memstore.NewUsers(nil)).
		WithOTPStore(memstore.NewOTPs(nil)).
		Build()
	if err == nil || !strings.Contains(err.Error(), "WithPasswordHasher") {
		t.Fatalf("expected build error without a shared hasher, got %v", err)
	}

	cfg.Password.UpgradeOnLogin = false
	engine, err := New().
		WithConfig(cfg).
		WithUserStore(memstore.NewUsers(nil)).
		WithOTPStore(memstore.NewOTPs(nil)).
		Build()
	if err != nil {
		t.Fatalf("build without upgrades: %v", err)
	}
	engine.Close()
}

func TestLoginRefreshRotation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.registerVerified(t, "alice", "a@x.com")

	login, err := env.engine.Login(ctx, "a@x.com", "pw123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.PasswordHash != "" || login.User.RefreshTokens != nil {
		t.Fatal("login user must be stripped")
	}

	pair, err := env.engine.Refresh(ctx, login.RefreshToken, login.AccessToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	tokens := env.tokens(t, u.ID)
	if len(tokens) != 1 || tokens[0] != pair.RefreshToken {
		t.Fatalf("collection not rotated: %v", tokens)
	}

	_, err = env.engine.Refresh(ctx, login.RefreshToken, login.AccessToken)
	if !errors.Is(err, ErrInvalidToken) || KindOf(err) != KindForbidden {
		t.Fatalf("reuse must be forbidden, got %v", err)
	}

	var reuse bool
	for _, ev := range env.drainAudit() {
		if ev.EventType == auditEventRefreshReuseDetected && ev.UserID == u.ID {
			reuse = true
		}
	}
	if !reuse {
		t.Fatal("expected refresh_reuse_detected audit event")
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got != 1 {
		t.Fatalf("expected reuse counter 1, got %d", got)
	}
}

func TestRefreshInputErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := env.registerVerified(t, "alice", "a@x.com")
	bob := env.registerVerified(t, "bob", "b@x.com")

	a, err := env.engine.CompleteLogin(ctx, alice)
	if err != nil {
		t.Fatalf("login alice: %v", err)
	}
	b, err := env.engine.CompleteLogin(ctx, bob)
	if err != nil {
		t.Fatalf("login bob: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, "", a.AccessToken); !errors.Is(err, ErrBothTokensRequired) || KindOf(err) != KindUnauthorized {
		t.Fatalf("expected both tokens required, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, "garbage", a.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, a.RefreshToken, b.AccessToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected token mismatch, got %v", err)
	}
}

func TestSixLoginsKeepFiveNewest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.registerVerified(t, "alice", "a@x.com")

	var issued []string
	for i := 0; i < 6; i++ {
		res, err := env.engine.CompleteLogin(ctx, u)
		if err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
		issued = append(issued, res.RefreshToken)
	}

	tokens := env.tokens(t, u.ID)
	if len(tokens) != 5 {
		t.Fatalf("expected 5 tokens, got %d", len(tokens))
	}
	for _, tok := range tokens {
		if tok == issued[0] {
			t.Fatal("oldest token must be evicted")
		}
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.registerVerified(t, "alice", "a@x.com")

	first, err := env.engine.CompleteLogin(ctx, u)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.engine.CompleteLogin(ctx, u); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := env.engine.Logout(ctx, u.ID, first.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if n := len(env.tokens(t, u.ID)); n != 1 {
		t.Fatalf("expected 1 token left, got %d", n)
	}
	if err := env.engine.Logout(ctx, u.ID, first.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if n := len(env.tokens(t, u.ID)); n != 1 {
		t.Fatalf("second logout must not change the collection, got %d", n)
	}
	if err := env.engine.Logout(ctx, u.ID, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginRateLimitedAfterFailures(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Security.MaxLoginAttempts = 2
	})
	ctx := WithClientIP(context.Background(), "10.0.0.1")
	env.registerVerified(t, "alice", "a@x.com")

	for i := 0; i < 2; i++ {
		if _, err := env.engine.Login(ctx, "a@x.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, err)
		}
	}
	_, err := env.engine.Login(ctx, "a@x.com", "pw123")
	if !errors.Is(err, ErrLoginRateLimited) || KindOf(err).HTTPStatus() != 429 {
		t.Fatalf("expected rate limit, got %v", err)
	}

	env.redis.FastForward(16 * time.Minute)
	if _, err := env.engine.Login(ctx, "a@x.com", "pw123"); err != nil {
		t.Fatalf("login after cooldown: %v", err)
	}
}

func TestFederatedProvisionAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	u, err := env.engine.ProvisionFederated(ctx, FederatedProfile{Email: "g@x.com", Name: "Gee", Picture: "https://p"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if u.AuthMethod != "google" || u.Status != "verified" || !u.EmailVerified {
		t.Fatalf("unexpected federated user: %+v", u)
	}
	if _, err := env.engine.Login(ctx, "g@x.com", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("federated account must not password-login, got %v", err)
	}
	res, err := env.engine.CompleteLogin(ctx, u)
	if err != nil || res.AccessToken == "" {
		t.Fatalf("complete login: %v", err)
	}

	claims, err := env.engine.ValidateAccess(res.AccessToken)
	if err != nil || claims.UserID != u.ID || claims.Role != RoleBuyer {
		t.Fatalf("unexpected claims: %+v err=%v", claims, err)
	}
}

func TestMeAndProfilePicture(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.registerVerified(t, "alice", "a@x.com")

	updated, err := env.engine.SetProfilePicture(ctx, u.ID, "https://cdn/x.jpg")
	if err != nil || updated.ProfilePicture != "https://cdn/x.jpg" {
		t.Fatalf("set picture: %+v err=%v", updated, err)
	}
	me, err := env.engine.Me(ctx, u.ID)
	if err != nil || me.ProfilePicture != "https://cdn/x.jpg" || me.PasswordHash != "" {
		t.Fatalf("me: %+v err=%v", me, err)
	}
	if _, err := env.engine.Me(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSerializedRefreshRequiresRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Refresh.SerializePerUser = true
	cfg.Password.UpgradeOnLogin = false
	_, err := New().
		WithConfig(cfg).
		WithUserStore(memstore.NewUsers(nil)).
		WithOTPStore(memstore.NewOTPs(nil)).
		Build()
	if err == nil {
		t.Fatal("expected build error without redis")
	}
}

func TestSerializedRefreshRotates(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Refresh.SerializePerUser = true
	})
	ctx := context.Background()
	u := env.registerVerified(t, "alice", "a@x.com")

	login, err := env.engine.CompleteLogin(ctx, u)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, login.RefreshToken, login.AccessToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	for _, k := range env.redis.Keys() {
		if strings.HasPrefix(k, "bk:rlock") {
			t.Fatalf("lock must be released, found %s", k)
		}
	}
}
