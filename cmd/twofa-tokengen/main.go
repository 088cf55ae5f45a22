package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-2fa/pkg/authn"
	"github.com/tendant/simple-2fa/pkg/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	config.LoadEnvFile()

	defaultSecret := os.Getenv("JWT_SECRET")
	if defaultSecret == "" {
		defaultSecret = "very-secure-jwt-secret"
	}

	secret := flag.String("secret", defaultSecret, "Secret key for signing the token (defaults to JWT_SECRET)")
	issuer := flag.String("issuer", "simple-2fa", "Issuer of the token")
	loginID := flag.String("login-id", "", "Login ID (UUID); a random one is used when empty")
	email := flag.String("email", "", "Email address claim")
	phone := flag.String("phone", "", "Phone number claim")
	name := flag.String("name", "", "Display name claim")
	expiry := flag.Duration("expiry", time.Hour, "Token expiry duration (e.g., 30m, 1h, 24h)")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	id := uuid.New()
	if *loginID != "" {
		parsed, err := uuid.Parse(*loginID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid login id %q: %v\n", *loginID, err)
			os.Exit(1)
		}
		id = parsed
	}

	principal := authn.Principal{
		LoginID:     id,
		Email:       *email,
		PhoneNumber: *phone,
		DisplayName: *name,
	}
	now := time.Now()
	tokenStr, err := authn.IssueToken([]byte(*secret), *issuer, principal, now, *expiry)
	if err != nil {
		slog.Error("Failed to generate token", "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to generate token: %v\n", err)
		os.Exit(1)
	}
	expiryTime := now.Add(*expiry)

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nLogin ID: %s\nExpires: %s\n", tokenStr, id, expiryTime.Format(time.RFC3339))
	case "debug":
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			return []byte(*secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			slog.Error("Failed to parse generated token", "err", err)
			fmt.Fprintf(os.Stderr, "Error: Failed to parse generated token: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("=== Token Information ===\n")
		fmt.Printf("Token: %s\n\n", tokenStr)
		fmt.Printf("=== Token Header ===\n")
		headerJSON, _ := json.MarshalIndent(token.Header, "", "  ")
		fmt.Printf("%s\n\n", headerJSON)
		fmt.Printf("=== Token Claims ===\n")
		claimsJSON, _ := json.MarshalIndent(token.Claims, "", "  ")
		fmt.Printf("%s\n\n", claimsJSON)
		fmt.Printf("Expires: %s\n", expiryTime.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}
