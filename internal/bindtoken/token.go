// Package bindtoken issues and validates the short-lived capability tokens
// that let an application bind one new grant or topic permission to itself.
// Tokens are stateless: possession of a valid, unexpired token for an
// application is necessary and sufficient for the one bound operation, and a
// token cannot be revoked once issued.
package bindtoken

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuerName = "dds-permissions-manager"

// DefaultTTL bounds the exposure of an unrevocable token.
const DefaultTTL = 48 * time.Hour

var (
	// ErrInvalidToken indicates the token failed signature or expiry checks.
	ErrInvalidToken = errors.New("bindtoken: invalid token")
	// ErrTokenParse indicates the subject claim is missing or non-numeric.
	ErrTokenParse = errors.New("bindtoken: subject claim unparsable")
)

// Claims is the signed claim set carried by a bind token.
type Claims struct {
	Email     string `json:"email,omitempty"`
	AppName   string `json:"application_name,omitempty"`
	GroupID   int64  `json:"group_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	jwt.RegisteredClaims
}

// ApplicationID parses the subject claim as the authorizing application id.
func (c *Claims) ApplicationID() (int64, error) {
	sub := strings.TrimSpace(c.Subject)
	if sub == "" {
		return 0, fmt.Errorf("%w: subject missing", ErrTokenParse)
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrTokenParse, sub)
	}
	return id, nil
}

// Service signs and verifies bind tokens with a shared HS256 secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service. The secret is required.
func NewService(secret string, opts ...Option) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("bindtoken: secret is required")
	}
	s := &Service{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate signs a bind token authorizing the given application.
func (s *Service) Generate(applicationID int64, email, appName string, groupID int64, groupName string) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		Email:     email,
		AppName:   appName,
		GroupID:   groupID,
		GroupName: groupName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   strconv.FormatInt(applicationID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign bind token: %w", err)
	}
	return signed, nil
}

// Validate verifies the token signature and required claims.
func (s *Service) Validate(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != issuerName {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ApplicationIDFromToken validates the token and resolves its subject. It is
// the single entry point the grant and permission services redeem through.
func (s *Service) ApplicationIDFromToken(raw string) (int64, error) {
	claims, err := s.Validate(raw)
	if err != nil {
		return 0, err
	}
	return claims.ApplicationID()
}
