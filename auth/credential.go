// Package auth implements the broker session lifecycle shared by every
// adapter: login, fail-fast credential checks, refresh on 401 and logout.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
)

// Credential is an issued session. It is treated as immutable: a refresh
// produces a new value and calls in flight keep the copy they captured.
type Credential struct {
	ClientID     string
	AccessToken  string
	RefreshToken string
	FeedToken    string
	// ExpiresAt is zero when the broker does not say
	ExpiresAt time.Time
	// Headers are extra per-session headers some brokers require
	Headers map[string]string
}

// LoginRequest carries whatever a broker's login flow needs
type LoginRequest struct {
	ClientID string
	Password string
	// TOTP is a ready code; when empty and TOTPSecret is set a code is generated
	TOTP       string
	TOTPSecret string
	OTP        string
	Extra      map[string]string
}

// Authenticator performs a broker login
type Authenticator interface {
	Login(ctx context.Context, req LoginRequest) (Credential, error)
}

// Refresher is implemented by brokers that can renew a session from a refresh token
type Refresher interface {
	Refresh(ctx context.Context, cred Credential) (Credential, error)
}

// Logouter is implemented by brokers with a logout endpoint
type Logouter interface {
	Logout(ctx context.Context, cred Credential) error
}

// TOTP returns the current time-based code for secret
func TOTP(secret string, t time.Time) (string, error) {
	secret = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	code, err := totp.GenerateCode(secret, t)
	if err != nil {
		return "", fmt.Errorf("generate totp: %w", err)
	}
	return code, nil
}

// TokenExpiry reads the exp claim of a JWT access token without verifying
// its signature. A token without exp gives the zero time.
func TokenExpiry(token string) (time.Time, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
