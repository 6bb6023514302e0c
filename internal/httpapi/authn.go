package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// ErrInvalidUserToken indicates a user token failed verification.
var ErrInvalidUserToken = errors.New("httpapi: invalid user token")

type userClaims struct {
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenAuthority signs and verifies user session tokens. It shares the HS256
// secret with the bind-token service but uses a distinct issuer so the two
// token kinds cannot be swapped.
type TokenAuthority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

const userTokenIssuer = "dds-permissions-manager/users"

// DefaultUserTokenTTL bounds user session tokens.
const DefaultUserTokenTTL = 12 * time.Hour

// NewTokenAuthority constructs a TokenAuthority.
func NewTokenAuthority(secret string) (*TokenAuthority, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("httpapi: token secret is required")
	}
	return &TokenAuthority{
		secret: []byte(secret),
		ttl:    DefaultUserTokenTTL,
		now:    time.Now,
	}, nil
}

// Generate issues a user session token.
func (t *TokenAuthority) Generate(userID int64, email string, admin bool) (string, time.Time, error) {
	now := t.now().UTC()
	expires := now.Add(t.ttl)
	claims := userClaims{
		Email: email,
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    userTokenIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify parses a user token into a principal.
func (t *TokenAuthority) Verify(raw string) (authz.UserPrincipal, error) {
	parsed, err := jwt.ParseWithClaims(raw, &userClaims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidUserToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil {
		return authz.UserPrincipal{}, ErrInvalidUserToken
	}
	claims, ok := parsed.Claims.(*userClaims)
	if !ok || !parsed.Valid || claims.Issuer != userTokenIssuer {
		return authz.UserPrincipal{}, ErrInvalidUserToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return authz.UserPrincipal{}, ErrInvalidUserToken
	}
	return authz.UserPrincipal{ID: userID, Email: claims.Email, Admin: claims.Admin}, nil
}

// withAuth resolves the caller: Bearer tokens become user principals, Basic
// credentials become application principals. Unauthenticated requests pass
// through on public paths only; everything else is rejected here so handlers
// can assume a principal or an explicitly anonymous artifact read.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := strings.TrimSpace(r.Header.Get(authHeader))
		switch {
		case strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)):
			token := strings.TrimSpace(header[len(bearer):])
			user, err := a.userTokens.Verify(token)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := authz.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		case strings.HasPrefix(header, "Basic "):
			id, passphrase, ok := r.BasicAuth()
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "invalid credentials")
				return
			}
			appID, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "invalid credentials")
				return
			}
			app, err := a.applications.Authenticate(r.Context(), appID, passphrase)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "invalid credentials")
				return
			}
			ctx := authz.ContextWithApplication(r.Context(), authz.ApplicationPrincipal{
				ID:      app.ID,
				GroupID: app.GroupID,
				Name:    app.Name,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		default:
			if isPublicApplicationRead(r) {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, r, http.StatusUnauthorized, "authentication required")
		}
	})
}

// isPublicApplicationRead matches unauthenticated reads of an application's
// direct permissions. Whether the application is actually publicly visible is
// decided in the handler; the request only gets past authentication here.
func isPublicApplicationRead(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	rest, ok := strings.CutPrefix(r.URL.Path, "/api/applications/")
	if !ok {
		return false
	}
	id, suffix, ok := strings.Cut(rest, "/")
	if !ok || suffix != "permissions" {
		return false
	}
	_, err := strconv.ParseInt(id, 10, 64)
	return err == nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
