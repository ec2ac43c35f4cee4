// Package resource implements tagged reads and optimistic writes for any
// entity stored with an updated_at version.
package resource

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatehouse/internal/apperr"
	"gatehouse/internal/etag"
	"gatehouse/internal/store"
)

type Entity interface {
	etag.Versioned
	SetVersion(at time.Time)
}

// Store persists entities. Update and Delete apply only while the row is still
// at prevUpdatedAt and return store.ErrNotFound otherwise.
type Store[T Entity] interface {
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context) ([]T, error)
	Insert(ctx context.Context, item T) error
	Update(ctx context.Context, item T, prevUpdatedAt time.Time) error
	Delete(ctx context.Context, id string, prevUpdatedAt time.Time) error
}

// Policy returns an error when the caller in ctx may not modify item.
type Policy[T Entity] func(ctx context.Context, item T) error

type Service[T Entity] struct {
	name     string
	store    Store[T]
	canWrite Policy[T]
	now      func() time.Time
	log      *slog.Logger
}

type Option[T Entity] func(*Service[T])

func WithWritePolicy[T Entity](p Policy[T]) Option[T] {
	return func(s *Service[T]) {
		s.canWrite = p
	}
}

func WithClock[T Entity](now func() time.Time) Option[T] {
	return func(s *Service[T]) {
		s.now = now
	}
}

// NewService builds a service; name is used in not-found messages ("product not found").
func NewService[T Entity](name string, st Store[T], log *slog.Logger, opts ...Option[T]) *Service[T] {
	s := &Service[T]{
		name:  name,
		store: st,
		now:   time.Now,
		log:   log.With("component", "resource", "resource", name),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service[T]) Get(ctx context.Context, id string) (T, string, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		var zero T
		return zero, "", err
	}
	return item, etag.For(item.ResourceID(), item.Version()), nil
}

func (s *Service[T]) List(ctx context.Context) ([]T, string, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "error listing resources", "error", err)
		return nil, "", store.AsAppError(err)
	}
	return items, etag.ForCollection(items), nil
}

func (s *Service[T]) Create(ctx context.Context, item T) (T, string, error) {
	now := s.now().UTC().Truncate(time.Second)
	if c, ok := any(item).(interface{ SetCreated(time.Time) }); ok {
		c.SetCreated(now)
	}
	item.SetVersion(now)

	if err := s.store.Insert(ctx, item); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			var zero T
			return zero, "", apperr.Conflict(s.name + " already exists")
		}
		s.log.ErrorContext(ctx, "error creating resource", "error", err)
		var zero T
		return zero, "", store.AsAppError(err)
	}
	return item, etag.For(item.ResourceID(), item.Version()), nil
}

// Update loads the current item, checks the write policy and ifMatch, applies
// mutate and stores the result guarded by the version it read. A stale ifMatch
// is rejected before mutate runs. A concurrent writer that lands between the
// read and the write also surfaces as a precondition failure.
func (s *Service[T]) Update(ctx context.Context, id, ifMatch string, mutate func(T) error) (T, string, error) {
	var zero T

	current, currentTag, err := s.checkWrite(ctx, id, ifMatch)
	if err != nil {
		return zero, "", err
	}

	prev := current.Version()
	if err := mutate(current); err != nil {
		return zero, "", err
	}
	current.SetVersion(etag.NextVersion(prev, s.now()))

	if err := s.store.Update(ctx, current, prev); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return zero, "", s.lostRace(ctx, id, ifMatch, currentTag)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return zero, "", apperr.Conflict(s.name + " conflicts with an existing one")
		}
		s.log.ErrorContext(ctx, "error updating resource", "error", err, "id", id)
		return zero, "", store.AsAppError(err)
	}

	return current, etag.For(current.ResourceID(), current.Version()), nil
}

func (s *Service[T]) Delete(ctx context.Context, id, ifMatch string) error {
	current, currentTag, err := s.checkWrite(ctx, id, ifMatch)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id, current.Version()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.lostRace(ctx, id, ifMatch, currentTag)
		}
		s.log.ErrorContext(ctx, "error deleting resource", "error", err, "id", id)
		return store.AsAppError(err)
	}
	return nil
}

func (s *Service[T]) checkWrite(ctx context.Context, id, ifMatch string) (T, string, error) {
	var zero T

	current, err := s.load(ctx, id)
	if err != nil {
		return zero, "", err
	}

	if s.canWrite != nil {
		if err := s.canWrite(ctx, current); err != nil {
			return zero, "", err
		}
	}

	currentTag := etag.For(current.ResourceID(), current.Version())
	if etag.ValidateConditionalWrite(ifMatch, currentTag) == etag.Reject {
		return zero, "", apperr.PreconditionFailed(currentTag, ifMatch)
	}
	return current, currentTag, nil
}

// lostRace reports a guarded write that matched no row: the item is gone, or
// another writer changed it after we read basedOn.
func (s *Service[T]) lostRace(ctx context.Context, id, ifMatch, basedOn string) error {
	latest, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	presented := ifMatch
	if presented == "" {
		presented = basedOn
	}
	s.log.InfoContext(ctx, "concurrent modification detected", "id", id)
	return apperr.PreconditionFailed(etag.For(latest.ResourceID(), latest.Version()), presented)
}

func (s *Service[T]) load(ctx context.Context, id string) (T, error) {
	item, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		var zero T
		return zero, apperr.NotFound(s.name + " not found")
	}
	if err != nil {
		s.log.ErrorContext(ctx, "error loading resource", "error", err, "id", id)
		var zero T
		return zero, store.AsAppError(err)
	}
	return item, nil
}
