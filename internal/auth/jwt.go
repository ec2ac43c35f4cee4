package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gatehouse/internal/models"
)

const (
	MinSecretLength       = 32
	DefaultAccessTokenTTL = 15 * time.Minute
	refreshTokenBytes     = 32
)

// ConfigurationError reports an unusable issuer configuration. It is returned
// once, at construction, never from per-call methods.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "token issuer configuration: " + e.Reason
}

type Claims struct {
	UserID string   `json:"userId"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, &ConfigurationError{Reason: "signing secret is required"}
	}
	if len(secret) < MinSecretLength {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("signing secret must be at least %d bytes", MinSecretLength)}
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		return nil, &ConfigurationError{Reason: "refresh token ttl must be positive"}
	}

	return &TokenIssuer{
		secret:          []byte(secret),
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}, nil
}

func (s *TokenIssuer) IssueAccessToken(user *models.User, roles []string, now time.Time) (string, time.Time, error) {
	expiry := now.Add(s.accessTokenTTL)
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.DisplayName,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}

	return signed, expiry, nil
}

// IssueRefreshToken returns 256 bits from crypto/rand, hex encoded.
func (s *TokenIssuer) IssueRefreshToken() (string, error) {
	raw, err := generateSecureToken(refreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return raw, nil
}

func (s *TokenIssuer) RefreshTokenExpiry(now time.Time) time.Time {
	return now.Add(s.refreshTokenTTL)
}

func (s *TokenIssuer) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}

func (s *TokenIssuer) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// HashRefreshToken is the lookup key stored in place of the raw token.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
