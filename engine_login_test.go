package rotauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := mustLogin(t, engine, "alice", "alice-secret")

	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("both tokens must be returned")
	}
	if result.AccessToken == result.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
	if result.Principal.ID != "u-1" || result.Principal.Username != "alice" {
		t.Fatalf("principal = %+v", result.Principal)
	}

	auth, err := engine.ValidateAccess(context.Background(), result.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if auth.UserID != "u-1" {
		t.Errorf("userID = %q, want u-1", auth.UserID)
	}
	if len(auth.Scope) != 1 || auth.Scope[0] != "user" {
		t.Errorf("scope = %v, want [user]", auth.Scope)
	}

	if got := engine.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Errorf("login success counter = %d, want 1", got)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("Login = %v, want ErrAuthenticationFailed", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginFailure]; got != 1 {
		t.Errorf("login failure counter = %d, want 1", got)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	engine, _ := newTestEngine(t)

	// Unknown users and wrong passwords are indistinguishable to callers.
	_, err := engine.Login(context.Background(), "mallory", "whatever")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("Login = %v, want ErrAuthenticationFailed", err)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	engine, _ := newTestEngine(t, withAccounts(Account{
		ID:           "u-2",
		Username:     "bob",
		PasswordHash: "bob-secret",
		Enabled:      false,
	}))

	_, err := engine.Login(context.Background(), "bob", "bob-secret")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("Login = %v, want ErrAuthenticationFailed", err)
	}
}

func TestLoginInvalidatesPreviousSession(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first := mustLogin(t, engine, "alice", "alice-secret")
	second := mustLogin(t, engine, "alice", "alice-secret")

	// The first session's refresh token must be gone, not merely revoked:
	// presenting it is an unknown-token failure, not a reuse incident.
	if _, err := engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("old refresh = %v, want ErrInvalidToken", err)
	}

	if _, err := engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("new refresh: %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	engine, _ := newTestEngine(t, withConfig(func(cfg *Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.Login = BucketConfig{Capacity: 2, RefillTokens: 2, RefillPeriod: time.Minute}
	}))

	ctx := WithClientIP(context.Background(), "203.0.113.9")

	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	_, err := engine.Login(ctx, "alice", "alice-secret")
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("Login = %v, want ErrRateLimitExceeded", err)
	}

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatal("error must be a *RateLimitError")
	}
	if rle.Endpoint != "login" || rle.RetryAfter <= 0 {
		t.Fatalf("rate limit error = %+v", rle)
	}

	if got := engine.MetricsSnapshot().Counters[MetricLoginRateLimited]; got != 1 {
		t.Errorf("rate limited counter = %d, want 1", got)
	}
}

func TestLoginRateLimitKeysByClientIP(t *testing.T) {
	engine, _ := newTestEngine(t, withConfig(func(cfg *Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.Login = BucketConfig{Capacity: 1, RefillTokens: 1, RefillPeriod: time.Minute}
	}))

	first := WithClientIP(context.Background(), "203.0.113.1")
	second := WithClientIP(context.Background(), "203.0.113.2")

	if _, err := engine.Login(first, "alice", "alice-secret"); err != nil {
		t.Fatalf("first IP: %v", err)
	}
	if _, err := engine.Login(first, "alice", "alice-secret"); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("first IP second attempt = %v, want ErrRateLimitExceeded", err)
	}
	if _, err := engine.Login(second, "alice", "alice-secret"); err != nil {
		t.Fatalf("second IP must have its own bucket: %v", err)
	}
}

func TestValidateAccessRejectsRefreshToken(t *testing.T) {
	engine, _ := newTestEngine(t)

	result := mustLogin(t, engine, "alice", "alice-secret")

	if _, err := engine.ValidateAccess(context.Background(), result.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateAccess(refresh) = %v, want ErrInvalidToken", err)
	}
}

func TestValidateAccessGarbage(t *testing.T) {
	engine, _ := newTestEngine(t)

	if _, err := engine.ValidateAccess(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ValidateAccess = %v, want ErrInvalidToken", err)
	}
}
