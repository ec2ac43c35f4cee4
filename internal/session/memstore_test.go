package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatehouse/internal/models"
	"gatehouse/internal/store"
)

// memStore is an in-memory CredentialStore with the same conditional
// semantics as the SQL repositories.
type memStore struct {
	mu     sync.Mutex
	seq    int
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken

	failWith error
	// failRevokeWith fails only operations that revoke a user's tokens.
	failRevokeWith error
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func (s *memStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = s.nextID("usr")
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memStore) FindUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) UpdatePasswordAndRevokeTokens(_ context.Context, id, passwordHash string, prevUpdatedAt, updatedAt time.Time, reason string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	u, ok := s.users[id]
	if !ok || !u.UpdatedAt.Equal(prevUpdatedAt) {
		return 0, store.ErrNotFound
	}
	if s.failRevokeWith != nil {
		return 0, s.failRevokeWith
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	return s.revokeUserLocked(id, reason, now), nil
}

func (s *memStore) setActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id].Active = active
}

func (s *memStore) CreateRefreshToken(_ context.Context, t *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.insertLocked(t)
	return nil
}

func (s *memStore) insertLocked(t *models.RefreshToken) {
	if t.ID == "" {
		t.ID = s.nextID("rft")
	}
	cp := *t
	s.tokens[t.ID] = &cp
}

func (s *memStore) FindRefreshTokenByHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, t := range s.tokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) MarkTokenRotated(_ context.Context, consumedID string, replacement *models.RefreshToken, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	t, ok := s.tokens[consumedID]
	if !ok || !t.IsActive(now) {
		return store.ErrNotFound
	}
	s.insertLocked(replacement)
	reason := models.RevokeReasonRotated
	t.IsRevoked = true
	t.RevokedReason = &reason
	replacedBy := replacement.ID
	t.ReplacedByToken = &replacedBy
	return nil
}

func (s *memStore) RevokeRefreshToken(_ context.Context, tokenHash, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	for _, t := range s.tokens {
		if t.TokenHash == tokenHash && !t.IsRevoked {
			t.IsRevoked = true
			t.RevokedReason = &reason
			return 1, nil
		}
	}
	return 0, nil
}

func (s *memStore) RevokeTokensForUser(_ context.Context, userID, reason string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	if s.failRevokeWith != nil {
		return 0, s.failRevokeWith
	}
	return s.revokeUserLocked(userID, reason, now), nil
}

func (s *memStore) revokeUserLocked(userID, reason string, now time.Time) int64 {
	var n int64
	for _, t := range s.tokens {
		if t.UserID == userID && t.IsActive(now) {
			t.IsRevoked = true
			t.RevokedReason = &reason
			n++
		}
	}
	return n
}

func (s *memStore) DeleteExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.tokens {
		if !now.Before(t.ExpiresAt) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) activeTokens(userID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID && t.IsActive(now) {
			n++
		}
	}
	return n
}

func (s *memStore) tokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
