package httpapi

import (
	"errors"
	"testing"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/bindtoken"
)

func TestTokenAuthorityRoundTrip(t *testing.T) {
	ta, err := NewTokenAuthority("test-secret")
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}

	token, expires, err := ta.Generate(42, "user@example.com", true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !expires.After(time.Now()) {
		t.Fatalf("expiry in the past: %v", expires)
	}

	user, err := ta.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.ID != 42 || user.Email != "user@example.com" || !user.Admin {
		t.Fatalf("principal = %+v", user)
	}
}

func TestTokenAuthorityRejectsExpired(t *testing.T) {
	ta, err := NewTokenAuthority("test-secret")
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ta.now = func() time.Time { return issued }

	token, _, err := ta.Generate(1, "u@example.com", false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ta.now = func() time.Time { return issued.Add(DefaultUserTokenTTL + time.Minute) }
	if _, err := ta.Verify(token); !errors.Is(err, ErrInvalidUserToken) {
		t.Fatalf("expired token: want ErrInvalidUserToken, got %v", err)
	}
}

// Bind tokens share the signing secret but carry a different issuer; they must
// never authenticate a user session.
func TestTokenAuthorityRejectsBindToken(t *testing.T) {
	ta, err := NewTokenAuthority("test-secret")
	if err != nil {
		t.Fatalf("new authority: %v", err)
	}
	bt, err := bindtoken.NewService("test-secret")
	if err != nil {
		t.Fatalf("bind tokens: %v", err)
	}
	raw, err := bt.Generate(7, "", "sensor", 1, "fleet")
	if err != nil {
		t.Fatalf("generate bind token: %v", err)
	}

	if _, err := ta.Verify(raw); !errors.Is(err, ErrInvalidUserToken) {
		t.Fatalf("bind token as session: want ErrInvalidUserToken, got %v", err)
	}
}
