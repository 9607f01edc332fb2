package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is the subset of identity-provider claims the pipeline consumes.
type Claims struct {
	Subject string
	Email   string
}

// VerifyFunc validates a bearer token and returns its claims.
type VerifyFunc func(ctx context.Context, token string) (Claims, error)

// HS256VerifierConfig configures local verification of identity-provider
// tokens signed with a shared secret.
type HS256VerifierConfig struct {
	Secret   string
	Issuer   string // optional; enforced when set
	Audience string // optional; enforced when set
}

// HS256Verifier returns a VerifyFunc that validates HS256-signed tokens
// against the provider's signing secret.
func HS256Verifier(cfg HS256VerifierConfig) VerifyFunc {
	secret := []byte(cfg.Secret)

	return func(_ context.Context, raw string) (Claims, error) {
		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		var claims jwt.MapClaims
		_, err := parser.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			return Claims{}, fmt.Errorf("verify token: %w", err)
		}

		if cfg.Issuer != "" && !claims.VerifyIssuer(cfg.Issuer, true) {
			return Claims{}, errors.New("verify token: issuer mismatch")
		}
		if cfg.Audience != "" && !claims.VerifyAudience(cfg.Audience, true) {
			return Claims{}, errors.New("verify token: audience mismatch")
		}

		subject, _ := claims["sub"].(string)
		if subject == "" {
			return Claims{}, errors.New("verify token: missing subject")
		}
		email, _ := claims["email"].(string)

		return Claims{Subject: subject, Email: email}, nil
	}
}

// ExtractBearerToken pulls the token from the Authorization header using a
// case-insensitive scheme match.
func ExtractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(header[len(prefix):]), true
}
