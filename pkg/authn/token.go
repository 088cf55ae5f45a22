package authn

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClaims are the claims minted for development tokens.
type TokenClaims struct {
	LoginID     string `json:"login_id"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the principal, valid for ttl from now.
func IssueToken(secret []byte, issuer string, p Principal, now time.Time, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("jwt secret is required")
	}
	if p.LoginID == uuid.Nil {
		return "", fmt.Errorf("login id is required")
	}

	subject := p.UserID
	if subject == "" {
		subject = p.LoginID.String()
	}
	claims := TokenClaims{
		LoginID:     p.LoginID.String(),
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		DisplayName: p.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}
