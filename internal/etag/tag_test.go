package etag

import (
	"strings"
	"testing"
	"time"
)

type item struct {
	id string
	at time.Time
}

func (i item) ResourceID() string { return i.id }
func (i item) Version() time.Time { return i.at }

func TestForIsDeterministic(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if For("prd_1", at) != For("prd_1", at) {
		t.Fatal("expected identical tags for identical input")
	}
	if got, want := For("prd_1", at), `W/"prd_1-`+"1767323045"+`"`; got != want {
		t.Fatalf("For() = %q, want %q", got, want)
	}
}

func TestForChangesWithUpdatedAt(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, delta := range []time.Duration{time.Second, time.Minute, -time.Hour, 24 * time.Hour} {
		if For("prd_1", at) == For("prd_1", at.Add(delta)) {
			t.Fatalf("expected tag to change for delta %s", delta)
		}
	}
}

func TestForCollectionOrderIndependent(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := item{id: "a", at: at}
	b := item{id: "b", at: at.Add(time.Second)}
	c := item{id: "c", at: at.Add(2 * time.Second)}

	first := ForCollection([]item{a, b, c})
	second := ForCollection([]item{c, a, b})

	if first != second {
		t.Fatalf("ForCollection() differs by order: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, `W/"c-`) {
		t.Fatalf("ForCollection() = %q, want c- prefix", first)
	}
}

func TestForCollectionSensitiveToEveryItem(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := []item{{id: "a", at: at}, {id: "b", at: at}}
	baseTag := ForCollection(base)

	tests := []struct {
		name  string
		items []item
	}{
		{name: "bumped_version", items: []item{{id: "a", at: at}, {id: "b", at: at.Add(time.Second)}}},
		{name: "renamed_id", items: []item{{id: "a", at: at}, {id: "bb", at: at}}},
		{name: "extra_item", items: []item{{id: "a", at: at}, {id: "b", at: at}, {id: "c", at: at}}},
		{name: "removed_item", items: []item{{id: "a", at: at}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ForCollection(tt.items) == baseTag {
				t.Fatalf("expected tag to change")
			}
		})
	}
}

func TestForCollectionEmptySentinel(t *testing.T) {
	if got := ForCollection[item](nil); got != EmptyCollection {
		t.Fatalf("ForCollection(nil) = %q, want %q", got, EmptyCollection)
	}
	if For("empty", time.Unix(0, 0)) == EmptyCollection {
		t.Fatal("sentinel collides with a single-resource tag")
	}
}

func TestNextVersion(t *testing.T) {
	prev := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{name: "later_second", now: prev.Add(3*time.Second + 400*time.Millisecond), want: prev.Add(3 * time.Second)},
		{name: "same_second", now: prev.Add(300 * time.Millisecond), want: prev.Add(time.Second)},
		{name: "clock_behind", now: prev.Add(-time.Minute), want: prev.Add(time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextVersion(prev, tt.now)
			if !got.Equal(tt.want) {
				t.Fatalf("NextVersion() = %s, want %s", got, tt.want)
			}
			if For("x", got) == For("x", prev) {
				t.Fatal("expected tag to change")
			}
		})
	}
}
