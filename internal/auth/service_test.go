package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const testSecret = "test-secret-0123456789"

func signedToken(t *testing.T, secret string, mutate func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()
	now := time.Now()
	b := jwt.NewBuilder().
		Issuer("toko").
		Subject("user-1").
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Claim("name", "Budi").
		Claim("phone", "+628123456789").
		Claim("address", "Jl. Sudirman 1")
	if mutate != nil {
		b = mutate(b)
	}
	token, err := b.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(secret)))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Secret: testSecret, Issuer: "toko"})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestParseAccessTokenSuccess(t *testing.T) {
	svc := newTestService(t)
	raw := signedToken(t, testSecret, nil)

	subject, profile, err := svc.ParseAccessToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if profile.Name != "Budi" || profile.Phone != "+628123456789" || profile.Address != "Jl. Sudirman 1" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
	svc := newTestService(t)
	raw := signedToken(t, "other-secret-9876543210", nil)

	if _, _, err := svc.ParseAccessToken(raw); err == nil {
		t.Fatal("expected signature mismatch error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	svc := newTestService(t)
	raw := signedToken(t, testSecret, func(b *jwt.Builder) *jwt.Builder {
		return b.Expiration(time.Now().Add(-time.Hour))
	})

	if _, _, err := svc.ParseAccessToken(raw); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestParseAccessTokenIssuerMismatch(t *testing.T) {
	svc := newTestService(t)
	raw := signedToken(t, testSecret, func(b *jwt.Builder) *jwt.Builder {
		return b.Issuer("someone-else")
	})

	if _, _, err := svc.ParseAccessToken(raw); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestParseAccessTokenMissingSubject(t *testing.T) {
	svc := newTestService(t)
	raw := signedToken(t, testSecret, func(b *jwt.Builder) *jwt.Builder {
		return b.Subject("")
	})

	if _, _, err := svc.ParseAccessToken(raw); err == nil {
		t.Fatal("expected missing subject error")
	}
}

func TestParseAccessTokenPartialProfile(t *testing.T) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Issuer("toko").
		Subject("user-2").
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	svc := newTestService(t)
	_, profile, err := svc.ParseAccessToken(string(signed))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if profile != (Profile{}) {
		t.Fatalf("expected empty profile, got %+v", profile)
	}
}
