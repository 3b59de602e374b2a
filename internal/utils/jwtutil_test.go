package utils

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, exp, err := GenerateToken(7, "vendedor", "Seller", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Errorf("expiry %v is sooner than requested", exp)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserId != 7 || claims.Username != "vendedor" || claims.Role != "Seller" {
		t.Errorf("claims = %+v, want id=7 name=vendedor role=Seller", claims)
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, _, err := GenerateToken(1, "admin", "Admin", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, _, err := GenerateToken(1, "admin", "Admin", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	orig := JwtSecret
	JwtSecret = []byte("another-secret")
	defer func() { JwtSecret = orig }()

	if _, err := ParseToken(token); err == nil {
		t.Error("token signed with a different secret accepted")
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.token"); err == nil {
		t.Error("garbage token accepted")
	}
}
