package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gatehouse/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()

	issuer, err := NewTokenIssuer(testSecret, 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	return issuer
}

func TestNewTokenIssuerRejectsWeakSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{name: "empty", secret: ""},
		{name: "short", secret: strings.Repeat("a", MinSecretLength-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenIssuer(tt.secret, time.Minute, time.Hour)
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("NewTokenIssuer() error = %v, want *ConfigurationError", err)
			}
		})
	}
}

func TestNewTokenIssuerDefaultsAccessTTL(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, 0, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	if issuer.AccessTokenTTL() != DefaultAccessTokenTTL {
		t.Fatalf("AccessTokenTTL() = %s, want %s", issuer.AccessTokenTTL(), DefaultAccessTokenTTL)
	}
}

func TestIssueAndValidateAccessToken(t *testing.T) {
	issuer := newTestIssuer(t)
	user := &models.User{ID: "usr_1", Email: "alice@example.com", DisplayName: "Alice"}
	now := time.Now()

	token, expiry, err := issuer.IssueAccessToken(user, []string{models.RoleAdmin}, now)
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	if want := now.Add(15 * time.Minute); !expiry.Equal(want) {
		t.Fatalf("expiry = %s, want %s", expiry, want)
	}

	claims, err := issuer.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.UserID != "usr_1" || claims.Subject != "usr_1" {
		t.Fatalf("claims user = %q/%q, want usr_1", claims.UserID, claims.Subject)
	}
	if claims.Email != "alice@example.com" || claims.Name != "Alice" {
		t.Fatalf("claims = %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != models.RoleAdmin {
		t.Fatalf("roles = %v, want [admin]", claims.Roles)
	}
}

func TestValidateAccessTokenRejectsExpired(t *testing.T) {
	issuer := newTestIssuer(t)
	user := &models.User{ID: "usr_1"}

	token, _, err := issuer.IssueAccessToken(user, nil, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	if _, err := issuer.ValidateAccessToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateAccessTokenRejectsOtherSecret(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewTokenIssuer(strings.Repeat("z", 40), time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}

	token, _, err := other.IssueAccessToken(&models.User{ID: "usr_1"}, nil, time.Now())
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}
	if _, err := issuer.ValidateAccessToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestIssueRefreshTokenEntropy(t *testing.T) {
	issuer := newTestIssuer(t)
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		token, err := issuer.IssueRefreshToken()
		if err != nil {
			t.Fatalf("IssueRefreshToken() error = %v", err)
		}
		if len(token) != 64 {
			t.Fatalf("len(token) = %d, want 64 hex chars", len(token))
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate refresh token %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestHashRefreshTokenIsStable(t *testing.T) {
	if HashRefreshToken("abc") != HashRefreshToken("abc") {
		t.Fatal("expected identical hashes")
	}
	if HashRefreshToken("abc") == HashRefreshToken("abd") {
		t.Fatal("expected different hashes")
	}
}
