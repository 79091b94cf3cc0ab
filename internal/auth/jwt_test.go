package auth

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{
		UserID:   "user-1",
		Role:     "driver",
		FullName: "Test Driver",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if claims.UserID != "user-1" || claims.Role != "driver" || claims.FullName != "Test Driver" {
		t.Fatalf("unexpected claims")
	}
}

func TestParseTokenRejectsWrongSecretOrIssuer(t *testing.T) {
	token, err := NewAccessToken("secret", "issuer", time.Minute, Claims{UserID: "user-1", Role: "admin"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("other-secret", "issuer", token); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
	if _, err := ParseToken("secret", "other-issuer", token); err == nil {
		t.Fatalf("expected wrong issuer to fail")
	}
}

func TestManagementRoles(t *testing.T) {
	cases := map[string]bool{
		"admin":      true,
		"manager":    true,
		"driver":     false,
		"contractor": false,
		"":           false,
	}
	for role, expect := range cases {
		claims := &Claims{Role: role}
		if claims.Management() != expect {
			t.Fatalf("expected Management()=%v for role %q", expect, role)
		}
	}
}
