package resource

import (
	"context"

	"gatehouse/internal/apperr"
	"gatehouse/internal/auth"
)

type Owned interface {
	Entity
	Owner() string
}

// OwnerOrAdmin allows writes by the item's owner and by admins.
func OwnerOrAdmin[T Owned]() Policy[T] {
	return func(ctx context.Context, item T) error {
		p, ok := auth.PrincipalFrom(ctx)
		if !ok {
			return apperr.Unauthenticated("Authentication required")
		}
		if p.IsAdmin() || p.UserID == item.Owner() {
			return nil
		}
		return apperr.Forbidden("You do not have permission to modify this resource")
	}
}
