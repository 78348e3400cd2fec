package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestAuthService(users *mockUserRepo, pending *mockPendingRepo, sender *mockSender) *AuthService {
	hasher := NewPasswordHasher(10000)
	otp := NewOTPService(zap.NewNop(), users, pending, hasher, sender, NewOTPRateLimiter(time.Minute, 1000), 10*time.Minute, 5)
	tokens := NewTokenService("testsecret", 24*time.Hour)
	return NewAuthService(zap.NewNop(), users, otp, hasher, tokens)
}

func registerAndConfirm(t *testing.T, svc *AuthService, sender *mockSender, email, password string) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Register(ctx, email, password); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.ConfirmRegistration(ctx, email, sender.code()); err != nil {
		t.Fatalf("confirm: %v", err)
	}
}

func TestAuthService_FullFlow(t *testing.T) {
	users := newMockUserRepo()
	pending := newMockPendingRepo()
	sender := &mockSender{}
	svc := newTestAuthService(users, pending, sender)
	registerAndConfirm(t, svc, sender, "bob@example.com", "hunter22")

	ctx := context.Background()
	token, err := svc.Login(ctx, "bob@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	identity, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Email != "bob@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	user, err := users.GetByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login stamped")
	}
}

func TestAuthService_PasswordUsedVerbatim(t *testing.T) {
	users := newMockUserRepo()
	pending := newMockPendingRepo()
	sender := &mockSender{}
	svc := newTestAuthService(users, pending, sender)

	// La password se registra y se verifica tal cual, espacios incluidos.
	registerAndConfirm(t, svc, sender, "bob@example.com", "  hunter22  ")

	ctx := context.Background()
	if _, err := svc.Login(ctx, "bob@example.com", "  hunter22  "); err != nil {
		t.Fatalf("login with registered password: %v", err)
	}
	if _, err := svc.Login(ctx, "bob@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected trimmed variant rejected, got %v", err)
	}

	if err := svc.ChangePassword(ctx, "bob@example.com", "  hunter22  ", " newpassword "); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, "bob@example.com", " newpassword "); err != nil {
		t.Fatalf("login with new padded password: %v", err)
	}
}

func TestAuthService_LoginUniformError(t *testing.T) {
	users := newMockUserRepo()
	pending := newMockPendingRepo()
	sender := &mockSender{}
	svc := newTestAuthService(users, pending, sender)
	registerAndConfirm(t, svc, sender, "bob@example.com", "hunter22")

	ctx := context.Background()
	_, errWrongPw := svc.Login(ctx, "bob@example.com", "wrongpw")
	_, errNoUser := svc.Login(ctx, "nonexistent@example.com", "anything")

	if !errors.Is(errWrongPw, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", errWrongPw)
	}
	if !errors.Is(errNoUser, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", errNoUser)
	}
	if errWrongPw.Error() != errNoUser.Error() {
		t.Fatalf("expected indistinguishable errors, got %q vs %q", errWrongPw, errNoUser)
	}
}

func TestAuthService_LogoutRevokesSession(t *testing.T) {
	users := newMockUserRepo()
	pending := newMockPendingRepo()
	sender := &mockSender{}
	svc := newTestAuthService(users, pending, sender)
	registerAndConfirm(t, svc, sender, "bob@example.com", "hunter22")

	token, err := svc.Login(context.Background(), "bob@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	users := newMockUserRepo()
	pending := newMockPendingRepo()
	sender := &mockSender{}
	svc := newTestAuthService(users, pending, sender)
	registerAndConfirm(t, svc, sender, "bob@example.com", "hunter22")

	ctx := context.Background()
	if err := svc.ChangePassword(ctx, "bob@example.com", "wrongpw", "newpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, "bob@example.com", "hunter22", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := svc.ChangePassword(ctx, "bob@example.com", "hunter22", "newpassword"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := svc.Login(ctx, "bob@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := svc.Login(ctx, "bob@example.com", "newpassword"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAuthService_DeleteAccount(t *testing.T) {
	users := newMockUserRepo()
	pending := newMockPendingRepo()
	sender := &mockSender{}
	svc := newTestAuthService(users, pending, sender)
	registerAndConfirm(t, svc, sender, "bob@example.com", "hunter22")

	ctx := context.Background()
	if err := svc.DeleteAccount(ctx, "bob@example.com", "wrongpw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.DeleteAccount(ctx, "bob@example.com", "hunter22"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if users.count() != 0 {
		t.Fatalf("expected user removed, got %d", users.count())
	}
	if _, err := svc.Login(ctx, "bob@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after deletion, got %v", err)
	}
}
