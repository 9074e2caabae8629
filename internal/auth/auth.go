// Package auth verifies Supabase access tokens and carries the resulting
// user through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAudience is the audience Supabase puts on signed-in user tokens.
const DefaultAudience = "authenticated"

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrTokenExpired = errors.New("token expired")
)

// User is the identity every ledger operation is performed for.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Claims mirrors the parts of a Supabase access token we read.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email,omitempty"`
	Role         string       `json:"role,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata,omitempty"`
}

type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
}

// Verifier checks HS256 tokens signed with the project's JWT secret.
type Verifier struct {
	secret   []byte
	audience string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), audience: DefaultAudience}
}

// CurrentUser resolves a bearer token to a user. Any problem with the token
// is reported as ErrAuthRequired, wrapped with the reason.
func (v *Verifier) CurrentUser(_ context.Context, token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrAuthRequired
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return User{}, fmt.Errorf("%w: %w", ErrAuthRequired, ErrTokenExpired)
		}
		return User{}, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return User{}, fmt.Errorf("%w: invalid login token", ErrAuthRequired)
	}

	return User{
		ID:       claims.Subject,
		Email:    claims.Email,
		FullName: claims.UserMetadata.FullName,
	}, nil
}

// Sign issues a token for u the way Supabase would. It is used by tests and
// local tooling.
func (v *Verifier) Sign(u User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Audience:  jwt.ClaimStrings{v.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:        u.Email,
		Role:         DefaultAudience,
		UserMetadata: UserMetadata{FullName: u.FullName},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the access token from the Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

type contextKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(contextKey{}).(User)
	return u, ok && u.ID != ""
}

// Middleware rejects requests without a valid token via onFail and stores
// the user in the request context otherwise.
func (v *Verifier) Middleware(onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := v.CurrentUser(r.Context(), BearerToken(r))
			if err != nil {
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
