package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseBearerToken(t *testing.T) {
	secret := []byte("test-secret")

	token, err := IssueToken(secret, "owner-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	claims, err := ParseBearerToken(secret, token, nil)
	if err != nil {
		t.Fatalf("ParseBearerToken failed: %v", err)
	}
	if claims.UserID() != "owner-1" {
		t.Errorf("Expected owner-1, got %s", claims.UserID())
	}

	if _, err := ParseBearerToken([]byte("other"), token, nil); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
	}

	later := func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := ParseBearerToken(secret, token, later); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := ParseBearerToken(secret, "not-a-token", nil); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestOwnerID(t *testing.T) {
	ctx := context.Background()
	if OwnerID(ctx) != "" {
		t.Error("Expected empty owner without claims")
	}
	ctx = SetUserClaims(ctx, &JWTClaims{OwnerID: "owner-2"})
	if OwnerID(ctx) != "owner-2" {
		t.Errorf("Expected owner-2, got %s", OwnerID(ctx))
	}
}
