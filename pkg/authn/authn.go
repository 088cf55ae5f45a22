// Package authn verifies bearer tokens on 2FA API requests and exposes the
// authenticated principal to handlers.
package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

const ACCESS_TOKEN_NAME = "access_token"

// Principal is the authenticated caller of the 2FA API.
type Principal struct {
	UserID      string
	LoginID     uuid.UUID
	Email       string
	PhoneNumber string
	DisplayName string
}

func (p Principal) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", p.UserID),
		slog.String("login_id", p.LoginID.String()),
	)
}

// principalClaims are the token claims a Principal is read from.
type principalClaims struct {
	Subject     string `json:"sub,omitempty"`
	LoginID     string `json:"login_id,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Name        string `json:"name,omitempty"`
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "authn context value " + k.name
}

var PrincipalKey = &contextKey{"Principal"}

// NewContext returns ctx carrying p.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// FromContext returns the principal stored by Middleware.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(*Principal)
	return p, ok && p != nil
}

func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// TokenFromHeader accepts both "Token <jwt>" and "Bearer <jwt>".
func TokenFromHeader(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		return strings.TrimSpace(token)
	default:
		return ""
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Verifier verifies the request token with ja and stores the result for
// Middleware.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return jwtauth.Verify(ja, TokenFromHeader, TokenFromCookie)
}

// Middleware turns verified claims into a Principal. Requests without a
// valid token or without a login id are rejected with 401.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || claims == nil {
			slog.Debug("Rejected unauthenticated request", "path", r.URL.Path, "error", err)
			unauthorized(w, r, "Unauthorized")
			return
		}

		p, err := PrincipalFromClaims(claims)
		if err != nil {
			slog.Warn("Invalid token claims", "error", err)
			unauthorized(w, r, "Invalid token claims")
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), p)))
	})
}

// PrincipalFromClaims reads the principal from top-level claims, overridden
// by a nested "extra_claims" object when present.
func PrincipalFromClaims(claims map[string]interface{}) (*Principal, error) {
	c := new(principalClaims)
	if err := LoadFromMap(claims, c); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if raw, exists := claims["extra_claims"]; exists {
		extra, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid extra claims format")
		}
		if err := LoadFromMap(extra, c); err != nil {
			return nil, fmt.Errorf("failed to parse extra claims: %w", err)
		}
	}

	if c.LoginID == "" {
		return nil, fmt.Errorf("missing login_id in token")
	}
	loginID, err := uuid.Parse(c.LoginID)
	if err != nil {
		return nil, fmt.Errorf("invalid login_id %q: %w", c.LoginID, err)
	}
	return &Principal{
		UserID:      c.Subject,
		LoginID:     loginID,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		DisplayName: c.Name,
	}, nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"message": msg})
}
