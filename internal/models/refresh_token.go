package models

import "time"

const (
	RevokeReasonLogout      = "User logout"
	RevokeReasonRotated     = "Replaced by new token"
	RevokeReasonPassword    = "Password changed"
	RevokeReasonDeactivated = "Account deactivated"
	RevokeReasonLogoutAll   = "Logged out from all sessions"
)

type TokenState int

const (
	TokenActive TokenState = iota
	TokenRotated
	TokenRevoked
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenActive:
		return "active"
	case TokenRotated:
		return "rotated"
	case TokenRevoked:
		return "revoked"
	default:
		return "expired"
	}
}

type RefreshToken struct {
	ID              string
	UserID          string
	TokenHash       string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	IsRevoked       bool
	RevokedReason   *string
	ReplacedByToken *string
}

func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}

// State reports the lifecycle state. Revocation wins over expiry so a rotated
// token stays Rotated after its expiry passes.
func (t *RefreshToken) State(now time.Time) TokenState {
	switch {
	case t.IsRevoked && t.ReplacedByToken != nil:
		return TokenRotated
	case t.IsRevoked:
		return TokenRevoked
	case !now.Before(t.ExpiresAt):
		return TokenExpired
	default:
		return TokenActive
	}
}
