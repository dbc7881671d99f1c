package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kawal234/HelpDeskMIni/internal/clock"
	"github.com/kawal234/HelpDeskMIni/internal/config"
	"github.com/kawal234/HelpDeskMIni/internal/domain"
)

func newAuthEnv(t *testing.T) (*AuthService, *memDB) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	db := newMemDB(clk)
	guard := NewIdempotencyGuard(newFakeIdempotencyRepo(), 24*time.Hour, clk, zap.NewNop())
	cfg := config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            4,
	}
	return NewAuthService(cfg, &fakeUserRepo{db: db}, guard), db
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthEnv(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{
		Username: "alex",
		Email:    "alex@example.com",
		Password: "hunter22",
	}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.User.Role != domain.RoleUser {
		t.Errorf("role = %s, want default user", result.User.Role)
	}
	if result.Token == "" {
		t.Error("register returned no token")
	}
	if result.User.PasswordHash == "hunter22" {
		t.Error("password stored in clear")
	}

	user, token, _, err := svc.Login(ctx, "alex@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != result.User.ID || token == "" {
		t.Error("login did not return the registered account")
	}

	_, _, _, err = svc.Login(ctx, "alex@example.com", "wrong")
	assertCode(t, err, "UNAUTHORIZED")

	_, _, _, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assertCode(t, err, "UNAUTHORIZED")
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _ := newAuthEnv(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "pw"}, ""); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err := svc.Register(ctx, RegisterInput{Username: "b", Email: "a@example.com", Password: "pw"}, "")
	assertCode(t, err, "CONFLICT")

	_, err = svc.Register(ctx, RegisterInput{Username: "a", Email: "b@example.com", Password: "pw"}, "")
	assertCode(t, err, "CONFLICT")
}

func TestRegisterIdempotentReplay(t *testing.T) {
	svc, db := newAuthEnv(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "pw"}, "reg-1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	second, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "pw"}, "reg-1")
	if err != nil {
		t.Fatalf("replay register: %v", err)
	}
	if !second.Replayed {
		t.Fatal("duplicate submission not replayed")
	}
	if second.User.ID != first.User.ID {
		t.Error("replay returned a different account")
	}
	if second.Token != "" {
		t.Error("replay must not mint a fresh token")
	}
	if len(db.users) != 1 {
		t.Errorf("store holds %d users, want 1", len(db.users))
	}
}

func TestUpdateProfileUniqueness(t *testing.T) {
	svc, _ := newAuthEnv(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "pw"}, "")
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Username: "b", Email: "b@example.com", Password: "pw"}, ""); err != nil {
		t.Fatalf("register b: %v", err)
	}

	_, err = svc.UpdateProfile(ctx, first.User, "b", "")
	assertCode(t, err, "CONFLICT")

	updated, err := svc.UpdateProfile(ctx, first.User, "a-renamed", "")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if updated.Username != "a-renamed" || updated.Email != "a@example.com" {
		t.Errorf("profile = %s/%s, want a-renamed/a@example.com", updated.Username, updated.Email)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _ := newAuthEnv(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "old-pw"}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	err = svc.ChangePassword(ctx, result.User, "wrong", "new-pw")
	assertCode(t, err, "UNAUTHORIZED")

	if err := svc.ChangePassword(ctx, result.User, "old-pw", "new-pw"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, _, err := svc.Login(ctx, "a@example.com", "new-pw"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	_, _, _, err = svc.Login(ctx, "a@example.com", "old-pw")
	assertCode(t, err, "UNAUTHORIZED")
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newAuthEnv(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{
		Username: "a", Email: "a@example.com", Password: "pw", Role: domain.RoleAgent,
	}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	claims, err := svc.TokenManager().ParseToken(result.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Errorf("token subject = %s, want %s", claims.UserID, result.User.ID)
	}
	if claims.Role != domain.RoleAgent {
		t.Errorf("token role = %s, want agent", claims.Role)
	}

	if _, err := svc.TokenManager().ParseToken(result.Token + "tampered"); err == nil {
		t.Error("tampered token accepted")
	}
}
