package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/bakeryauth/account"
	"github.com/MrEthical07/bakeryauth/jwt"
	"github.com/MrEthical07/bakeryauth/store/memstore"
)

type prefixHasher struct{}

func (prefixHasher) Hash(p string) (string, error) { return "h:" + p, nil }

func (prefixHasher) Verify(p, hash string) (bool, error) { return hash == "h:"+p, nil }

func (prefixHasher) NeedsUpgrade(string) (bool, error) { return false, nil }

type outbox struct {
	err   error
	mails []string
}

func (o *outbox) Send(_ context.Context, to, _, body string) error {
	if o.err != nil {
		return o.err
	}
	o.mails = append(o.mails, to+" "+body)
	return nil
}

type fixture struct {
	users  *memstore.Users
	otps   *memstore.OTPs
	mail   *outbox
	tokens *jwt.Manager
	code   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr, err := jwt.NewManager(jwt.Config{
		AccessSecret:  []byte("access-secret-0123456789"),
		RefreshSecret: []byte("refresh-secret-0123456789"),
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	mail := &outbox{}
	return &fixture{
		users:  memstore.NewUsers(prefixHasher{}),
		otps:   memstore.NewOTPs(mail),
		mail:   mail,
		tokens: mgr,
		code:   "1234",
	}
}

func (f *fixture) otpDeps() OTPDeps {
	return OTPDeps{
		Store: f.otps,
		Generate: func(digits int) (string, error) {
			if len(f.code) != digits {
				return strings.Repeat("7", digits), nil
			}
			return f.code, nil
		},
	}
}

func (f *fixture) register(t *testing.T, name, email string, role account.Role) *account.User {
	t.Helper()
	res := RunRegister(context.Background(), RegisterRequest{
		Username: name, Email: email, Password: "pw123", Role: role,
	}, RegisterDeps{Users: f.users, OTP: f.otpDeps()})
	if res.Failure != RegisterFailureNone {
		t.Fatalf("register failed: %v %v", res.Failure, res.Err)
	}
	return res.User
}

func (f *fixture) login(t *testing.T, userID string) CompleteLoginResult {
	t.Helper()
	res := RunCompleteLogin(context.Background(), userID, CompleteLoginDeps{Users: f.users, Tokens: f.tokens})
	if res.Failure != LoginFailureNone {
		t.Fatalf("complete login failed: %v %v", res.Failure, res.Err)
	}
	return res
}

func (f *fixture) refreshDeps() RefreshDeps {
	return RefreshDeps{Users: f.users, Tokens: f.tokens, CrossCheckAccess: true}
}

func (f *fixture) stored(t *testing.T, id string) *account.User {
	t.Helper()
	u, err := f.users.FindByID(context.Background(), id, true)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u
}

func TestRegisterCreatesPendingUserAndOTP(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice", "a@x.com", account.RoleBuyer)

	if u.AuthMethod != account.AuthLocal || u.Status != account.StatusPending || u.EmailVerified {
		t.Fatalf("unexpected user state: %+v", u)
	}
	if u.PasswordHash != "" || u.RefreshTokens != nil {
		t.Fatal("returned user must be stripped")
	}
	rec, err := f.otps.FindOne(context.Background(), "a@x.com", "")
	if err != nil {
		t.Fatalf("otp record: %v", err)
	}
	if rec.Count != 0 || rec.Code != "1234" {
		t.Fatalf("unexpected otp record: %+v", rec)
	}
	if len(f.mail.mails) != 1 {
		t.Fatalf("expected one mail, got %d", len(f.mail.mails))
	}
}

func TestRegisterValidationAndDuplicate(t *testing.T) {
	f := newFixture(t)
	deps := RegisterDeps{Users: f.users, OTP: f.otpDeps()}
	ctx := context.Background()

	bad := []RegisterRequest{
		{Email: "a@x.com", Password: "p", Role: account.RoleBuyer},
		{Username: "a", Email: "a@x.com", Password: "p", Role: "admin"},
		{Username: "a", Email: "nope", Password: "p", Role: account.RoleBuyer},
	}
	for i, req := range bad {
		if res := RunRegister(ctx, req, deps); res.Failure != RegisterFailureValidation {
			t.Fatalf("case %d: expected validation failure, got %v", i, res.Failure)
		}
	}

	f.register(t, "alice", "a@x.com", account.RoleBuyer)
	res := RunRegister(ctx, RegisterRequest{Username: "b", Email: "A@X.COM", Password: "p", Role: account.RoleSeller}, deps)
	if res.Failure != RegisterFailureDuplicate {
		t.Fatalf("expected duplicate, got %v", res.Failure)
	}
}

func TestRegisterDispatchFailureKeepsUser(t *testing.T) {
	f := newFixture(t)
	f.mail.err = errors.New("smtp down")

	res := RunRegister(context.Background(), RegisterRequest{
		Username: "alice", Email: "a@x.com", Password: "pw123", Role: account.RoleBuyer,
	}, RegisterDeps{Users: f.users, OTP: f.otpDeps()})
	if res.Failure != RegisterFailureOTP || res.OTPFailure != OTPFailureDispatch {
		t.Fatalf("expected otp dispatch failure, got %v/%v", res.Failure, res.OTPFailure)
	}
	if f.users.Len() != 1 {
		t.Fatal("user must stay persisted after dispatch failure")
	}
	if _, err := f.otps.FindOne(context.Background(), "a@x.com", ""); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("no otp record expected, got %v", err)
	}
}

func TestVerifyEmailPromotesBuyerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deps := VerifyEmailDeps{Users: f.users, OTP: f.otpDeps()}

	f.register(t, "alice", "a@x.com", account.RoleBuyer)
	if res := RunVerifyEmail(ctx, "a@x.com", "9999", deps); res.Failure != VerifyEmailFailureInvalidOTP {
		t.Fatalf("expected invalid otp, got %v", res.Failure)
	}
	res := RunVerifyEmail(ctx, "a@x.com", "1234", deps)
	if res.Failure != VerifyEmailFailureNone {
		t.Fatalf("verify failed: %v %v", res.Failure, res.Err)
	}
	if res.User.Status != account.StatusVerified || !res.User.EmailVerified {
		t.Fatalf("buyer not promoted: %+v", res.User)
	}
	if _, err := f.otps.FindOne(ctx, "a@x.com", ""); !errors.Is(err, account.ErrNotFound) {
		t.Fatal("otp record must be consumed")
	}
	if res := RunVerifyEmail(ctx, "a@x.com", "1234", deps); res.Failure != VerifyEmailFailureInvalidOTP {
		t.Fatalf("second verify must fail, got %v", res.Failure)
	}

	f.register(t, "sam", "s@x.com", account.RoleSeller)
	res = RunVerifyEmail(ctx, "s@x.com", "1234", deps)
	if res.Failure != VerifyEmailFailureNone {
		t.Fatalf("seller verify failed: %v", res.Failure)
	}
	if res.User.Status != account.StatusPending || !res.User.EmailVerified {
		t.Fatalf("seller must stay pending with verified email: %+v", res.User)
	}
}

func TestVerifyEmailWithoutUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if res := IssueOTP(ctx, "ghost@x.com", 4, f.otpDeps()); res.Failure != OTPFailureNone {
		t.Fatalf("issue: %v", res.Failure)
	}
	res := RunVerifyEmail(ctx, "ghost@x.com", "1234", VerifyEmailDeps{Users: f.users, OTP: f.otpDeps()})
	if res.Failure != VerifyEmailFailureUserNotFound {
		t.Fatalf("expected user not found, got %v", res.Failure)
	}
}

func TestResendLimitOnFourthAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "a@x.com", account.RoleBuyer)
	deps := RequestOTPDeps{Users: f.users, OTP: f.otpDeps()}

	for i := 1; i <= account.MaxOTPCount; i++ {
		f.code = strconv.Itoa(5000 + i)
		res := RunRequestOTP(ctx, "a@x.com", RegistrationDigits, deps)
		if res.Failure != RequestOTPFailureNone {
			t.Fatalf("resend %d failed: %v", i, res.Failure)
		}
		if res.Record.Count != i || res.Record.Code != f.code {
			t.Fatalf("resend %d: unexpected record %+v", i, res.Record)
		}
	}
	if res := RunRequestOTP(ctx, "a@x.com", RegistrationDigits, deps); res.Failure != RequestOTPFailureLimit {
		t.Fatalf("fourth resend must hit limit, got %v", res.Failure)
	}
	if res := RunRequestOTP(ctx, "nobody@x.com", RegistrationDigits, deps); res.Failure != RequestOTPFailureUserNotFound {
		t.Fatalf("expected user not found, got %v", res.Failure)
	}
}

func TestForgotPasswordIssuesSixDigitsWhenAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "a@x.com", account.RoleBuyer)
	if err := f.otps.DeleteOne(ctx, "a@x.com", ""); err != nil {
		t.Fatalf("delete: %v", err)
	}

	res := RunRequestOTP(ctx, "a@x.com", ResetDigits, RequestOTPDeps{Users: f.users, OTP: f.otpDeps()})
	if res.Failure != RequestOTPFailureNone {
		t.Fatalf("forgot failed: %v", res.Failure)
	}
	if len(res.Record.Code) != ResetDigits || res.Record.Count != 0 {
		t.Fatalf("unexpected record: %+v", res.Record)
	}
}

func TestPasswordResetReplacesPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "a@x.com", account.RoleBuyer)
	deps := PasswordResetDeps{Users: f.users, OTP: f.otpDeps()}

	if res := RunPasswordReset(ctx, "a@x.com", "", "new", deps); res.Failure != PasswordResetFailureValidation {
		t.Fatalf("expected validation, got %v", res.Failure)
	}
	if res := RunPasswordReset(ctx, "a@x.com", "0000", "new", deps); res.Failure != PasswordResetFailureInvalidOTP {
		t.Fatalf("expected invalid otp, got %v", res.Failure)
	}
	if res := RunPasswordReset(ctx, "a@x.com", "1234", "newpass", deps); res.Failure != PasswordResetFailureNone {
		t.Fatalf("reset failed: %v %v", res.Failure, res.Err)
	}
	if got := f.stored(t, u.ID).PasswordHash; got != "h:newpass" {
		t.Fatalf("password not replaced: %q", got)
	}
	if _, err := f.otps.FindOne(ctx, "a@x.com", ""); !errors.Is(err, account.ErrNotFound) {
		t.Fatal("otp record must be deleted after reset")
	}
}

func TestPasswordResetRefusesFederatedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if res := RunProvisionFederated(ctx, FederatedProfile{Email: "g@x.com", Name: "Gee"}, FederatedDeps{Users: f.users}); res.Failure != FederatedFailureNone {
		t.Fatalf("provision: %v", res.Failure)
	}

	forgot := RequestOTPDeps{Users: f.users, OTP: f.otpDeps(), LocalOnly: true}
	if res := RunRequestOTP(ctx, "g@x.com", ResetDigits, forgot); res.Failure != RequestOTPFailureNotLocal {
		t.Fatalf("expected not-local, got %v", res.Failure)
	}
	if len(f.mail.mails) != 0 {
		t.Fatal("no mail may be sent to a federated account")
	}

	f.code = "123456"
	if res := IssueOTP(ctx, "g@x.com", ResetDigits, f.otpDeps()); res.Failure != OTPFailureNone {
		t.Fatalf("seed otp: %v", res.Failure)
	}
	deps := PasswordResetDeps{Users: f.users, OTP: f.otpDeps()}
	if res := RunPasswordReset(ctx, "g@x.com", "123456", "newpass", deps); res.Failure != PasswordResetFailureNotLocal {
		t.Fatalf("expected not-local, got %v %v", res.Failure, res.Err)
	}
	if _, err := f.otps.FindOne(ctx, "g@x.com", ""); !errors.Is(err, account.ErrNotFound) {
		t.Fatal("refused reset must delete the code")
	}
}

func TestAuthenticateLocalRejectsUniformly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "a@x.com", account.RoleBuyer)
	if res := RunProvisionFederated(ctx, FederatedProfile{Email: "g@x.com", Name: "Gee"}, FederatedDeps{Users: f.users}); res.Failure != FederatedFailureNone {
		t.Fatalf("provision: %v", res.Failure)
	}
	deps := LoginDeps{Users: f.users, Verifier: prefixHasher{}}

	cases := [][2]string{{"a@x.com", "wrong"}, {"missing@x.com", "pw123"}, {"g@x.com", "anything"}}
	for _, c := range cases {
		if res := RunAuthenticateLocal(ctx, c[0], c[1], "", deps); res.Failure != LoginFailureInvalidCredentials {
			t.Fatalf("%s: expected invalid credentials, got %v", c[0], res.Failure)
		}
	}
	res := RunAuthenticateLocal(ctx, "A@x.com", "pw123", "", deps)
	if res.Failure != LoginFailureNone || res.User.Email != "a@x.com" {
		t.Fatalf("login failed: %v", res.Failure)
	}
}

func TestCompleteLoginCapsAtFiveNewest(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice", "a@x.com", account.RoleBuyer)

	var issued []string
	for i := 0; i < 6; i++ {
		res := f.login(t, u.ID)
		if res.User.RefreshTokens != nil || res.User.PasswordHash != "" {
			t.Fatal("login result must be stripped")
		}
		issued = append(issued, res.RefreshToken)
	}

	got := f.stored(t, u.ID).RefreshTokens
	if len(got) != 5 {
		t.Fatalf("expected 5 tokens, got %d", len(got))
	}
	for i, tok := range issued[1:] {
		if got[i] != tok {
			t.Fatalf("token %d is not the expected newest entry", i)
		}
	}
}

func TestCompleteLoginUnknownUser(t *testing.T) {
	f := newFixture(t)
	res := RunCompleteLogin(context.Background(), "missing", CompleteLoginDeps{Users: f.users, Tokens: f.tokens})
	if res.Failure != LoginFailureUserNotFound {
		t.Fatalf("expected user not found, got %v", res.Failure)
	}
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "a@x.com", account.RoleBuyer)
	login := f.login(t, u.ID)

	res := RunRefresh(ctx, login.RefreshToken, login.AccessToken, f.refreshDeps())
	if res.Failure != RefreshFailureNone {
		t.Fatalf("refresh failed: %v %v", res.Failure, res.Err)
	}
	tokens := f.stored(t, u.ID).RefreshTokens
	if len(tokens) != 1 || tokens[0] != res.RefreshToken {
		t.Fatalf("collection not rotated: %v", tokens)
	}

	again := RunRefresh(ctx, login.RefreshToken, login.AccessToken, f.refreshDeps())
	if again.Failure != RefreshFailureReuse {
		t.Fatalf("reused token must be rejected, got %v", again.Failure)
	}
}

func TestRefreshRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "a@x.com", account.RoleBuyer)
	bob := f.register(t, "bob", "b@x.com", account.RoleBuyer)
	a := f.login(t, alice.ID)
	b := f.login(t, bob.ID)

	if res := RunRefresh(ctx, a.RefreshToken, "", f.refreshDeps()); res.Failure != RefreshFailureMissing {
		t.Fatalf("expected missing, got %v", res.Failure)
	}
	if res := RunRefresh(ctx, a.AccessToken, a.AccessToken, f.refreshDeps()); res.Failure != RefreshFailureInvalid {
		t.Fatalf("access token must not verify as refresh, got %v", res.Failure)
	}
	if res := RunRefresh(ctx, a.RefreshToken, b.AccessToken, f.refreshDeps()); res.Failure != RefreshFailureMismatch {
		t.Fatalf("expected mismatch, got %v", res.Failure)
	}

	deps := f.refreshDeps()
	deps.CrossCheckAccess = false
	if res := RunRefresh(ctx, a.RefreshToken, "", deps); res.Failure != RefreshFailureNone {
		t.Fatalf("refresh without cross-check failed: %v", res.Failure)
	}
}

func TestRefreshRevokeAllOnReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "a@x.com", account.RoleBuyer)
	first := f.login(t, u.ID)
	f.login(t, u.ID)

	if res := RunRefresh(ctx, first.RefreshToken, first.AccessToken, f.refreshDeps()); res.Failure != RefreshFailureNone {
		t.Fatalf("refresh: %v", res.Failure)
	}

	deps := f.refreshDeps()
	deps.RevokeAllOnReuse = true
	res := RunRefresh(ctx, first.RefreshToken, first.AccessToken, deps)
	if res.Failure != RefreshFailureReuse || !res.Revoked {
		t.Fatalf("expected reuse with revocation, got %v revoked=%v", res.Failure, res.Revoked)
	}
	if n := len(f.stored(t, u.ID).RefreshTokens); n != 0 {
		t.Fatalf("collection must be cleared, has %d", n)
	}
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string) (func(), error) {
	return nil, errors.New("held")
}

func TestRefreshBusyWhenLockHeld(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice", "a@x.com", account.RoleBuyer)
	login := f.login(t, u.ID)

	deps := f.refreshDeps()
	deps.Locker = heldLocker{}
	if res := RunRefresh(context.Background(), login.RefreshToken, login.AccessToken, deps); res.Failure != RefreshFailureBusy {
		t.Fatalf("expected busy, got %v", res.Failure)
	}
}

func TestLogoutRemovesExactlyOneToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice", "a@x.com", account.RoleBuyer)
	first := f.login(t, u.ID)
	f.login(t, u.ID)
	deps := LogoutDeps{Users: f.users}

	res := RunLogout(ctx, u.ID, first.RefreshToken, deps)
	if res.Failure != LogoutFailureNone || !res.Removed {
		t.Fatalf("logout failed: %+v", res)
	}
	if n := len(f.stored(t, u.ID).RefreshTokens); n != 1 {
		t.Fatalf("expected 1 remaining token, got %d", n)
	}

	res = RunLogout(ctx, u.ID, first.RefreshToken, deps)
	if res.Failure != LogoutFailureNone || res.Removed {
		t.Fatalf("second logout must be a no-op: %+v", res)
	}
	if res := RunLogout(ctx, "missing", "tok", deps); res.Failure != LogoutFailureNone {
		t.Fatalf("unknown user must be a no-op, got %v", res.Failure)
	}
	if res := RunLogout(ctx, u.ID, "", deps); res.Failure != LogoutFailureMissing {
		t.Fatalf("expected missing, got %v", res.Failure)
	}
}

func TestProvisionFederatedCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deps := FederatedDeps{Users: f.users}

	res := RunProvisionFederated(ctx, FederatedProfile{Email: "g@x.com", Picture: "https://img"}, deps)
	if res.Failure != FederatedFailureNone || !res.Created {
		t.Fatalf("provision failed: %+v", res)
	}
	u := res.User
	if u.AuthMethod != account.AuthGoogle || u.Status != account.StatusVerified || !u.EmailVerified {
		t.Fatalf("unexpected federated user: %+v", u)
	}
	if u.Username != "g" || u.ProfilePicture != "https://img" {
		t.Fatalf("unexpected profile fields: %+v", u)
	}
	if f.stored(t, u.ID).PasswordHash != "" {
		t.Fatal("federated user must not have a password")
	}

	again := RunProvisionFederated(ctx, FederatedProfile{Email: "G@x.com"}, deps)
	if again.Created || again.User.ID != u.ID {
		t.Fatalf("second provision must return the existing user: %+v", again)
	}
}

func TestResendAfterExpiryIssuesFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.otps.WithClock(func() time.Time { return now })

	if res := IssueOTP(ctx, "a@x.com", 4, f.otpDeps()); res.Failure != OTPFailureNone {
		t.Fatalf("issue: %v", res.Failure)
	}
	now = now.Add(account.OTPTTL + time.Second)
	res := ResendOTP(ctx, "a@x.com", 4, f.otpDeps())
	if res.Failure != OTPFailureNone || res.Record.Count != 0 {
		t.Fatalf("expected fresh record, got %+v", res)
	}
}
