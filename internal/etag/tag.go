// Package etag derives version tags for resources and evaluates RFC 7232
// conditional request headers against them.
package etag

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// EmptyCollection is the tag of a collection with no items. It cannot collide
// with For (no "-unix" suffix) or ForCollection (no "c-" prefix).
const EmptyCollection = `W/"empty"`

type Versioned interface {
	ResourceID() string
	Version() time.Time
}

// For returns the weak tag of a single resource.
func For(id string, updatedAt time.Time) string {
	return fmt.Sprintf(`W/"%s-%d"`, id, updatedAt.Unix())
}

// ForCollection is independent of input order and changes whenever any
// item's id or version changes.
func ForCollection[T Versioned](items []T) string {
	if len(items) == 0 {
		return EmptyCollection
	}

	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b T) int {
		return strings.Compare(a.ResourceID(), b.ResourceID())
	})

	h := xxh3.New()
	for _, item := range sorted {
		h.WriteString(item.ResourceID())
		h.WriteString("|")
		h.WriteString(strconv.FormatInt(item.Version().Unix(), 10))
		h.WriteString("\n")
	}
	sum := h.Sum128().Bytes()

	return `W/"c-` + hex.EncodeToString(sum[:]) + `"`
}

// NextVersion returns the updated_at a writer must store: second resolution,
// strictly after prev, so the derived tag always changes.
func NextVersion(prev, now time.Time) time.Time {
	next := now.UTC().Truncate(time.Second)
	floor := prev.UTC().Truncate(time.Second)
	if !next.After(floor) {
		next = floor.Add(time.Second)
	}
	return next
}
