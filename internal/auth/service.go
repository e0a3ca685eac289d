package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/emberloaf/loyalty/internal/models"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Service verifies identity-provider access tokens. Customers never log in
// here; the provider issues the tokens and shares the HS256 secret.
type Service interface {
	ValidateToken(ctx context.Context, token string) (*models.Identity, error)
	IssueToken(id models.Identity, ttl time.Duration) (string, error)
}

type service struct {
	secret   []byte
	audience string
	now      func() time.Time
}

// NewService returns a verifier. An empty audience skips the aud check.
func NewService(secret, audience string) *service {
	return &service{secret: []byte(secret), audience: audience, now: time.Now}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type userMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email"`
	UserMetadata userMetadata `json:"user_metadata"`
}

func (s *service) ValidateToken(_ context.Context, token string) (*models.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &models.Identity{
		UserID:      c.Subject,
		Email:       c.Email,
		DisplayName: c.UserMetadata.FullName,
		AvatarURL:   c.UserMetadata.AvatarURL,
	}, nil
}

// IssueToken signs a token in the provider's format. Used by local tooling and tests.
func (s *service) IssueToken(id models.Identity, ttl time.Duration) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:        id.Email,
		UserMetadata: userMetadata{FullName: id.DisplayName, AvatarURL: id.AvatarURL},
	}
	if s.audience != "" {
		c.Audience = jwt.ClaimStrings{s.audience}
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}
