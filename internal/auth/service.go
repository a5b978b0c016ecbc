package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Profile carries the claims the storefront uses to pre-fill the checkout
// confirmation summary. Tokens are issued by the upstream platform; this
// service only consumes them.
type Profile struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Config wires the token verifier.
type Config struct {
	Secret    string
	Issuer    string
	ClockSkew time.Duration
	Now       func() time.Time
}

// Service validates bearer tokens and extracts the authentication signal.
type Service struct {
	secret []byte
	issuer string
	skew   time.Duration
	now    func() time.Time
}

// NewService constructs the token verifier.
func NewService(cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		secret: []byte(cfg.Secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		skew:   cfg.ClockSkew,
		now:    now,
	}, nil
}

// ParseAccessToken verifies the token signature and temporal claims, and
// returns the subject and profile claims.
func (s *Service) ParseAccessToken(raw string) (string, Profile, error) {
	if s == nil {
		return "", Profile{}, errors.New("auth: service not configured")
	}
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	}
	if s.skew > 0 {
		options = append(options, jwt.WithAcceptableSkew(s.skew))
	}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}
	tok, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return "", Profile{}, fmt.Errorf("auth: parse token: %w", err)
	}
	subject := strings.TrimSpace(tok.Subject())
	if subject == "" {
		return "", Profile{}, errors.New("auth: token missing subject")
	}
	return subject, profileFromToken(tok), nil
}

func profileFromToken(tok jwt.Token) Profile {
	return Profile{
		Name:    stringClaim(tok, "name"),
		Phone:   stringClaim(tok, "phone"),
		Address: stringClaim(tok, "address"),
	}
}

func stringClaim(tok jwt.Token, claim string) string {
	v, ok := tok.Get(claim)
	if !ok {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}

type profileKey struct{}

func withProfile(ctx context.Context, p Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// ProfileFromContext extracts the authenticated profile from the context.
func ProfileFromContext(ctx context.Context) (Profile, bool) {
	v := ctx.Value(profileKey{})
	if v == nil {
		return Profile{}, false
	}
	p, ok := v.(Profile)
	return p, ok
}
