package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewIsSortableAndValid(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := At(base)
	b := At(base)
	c := At(base.Add(time.Second))
	if !(a < b && b < c) {
		t.Fatalf("expected ordered ids, got %s %s %s", a, b, c)
	}
	if _, err := ulid.ParseStrict(New()); err != nil {
		t.Fatalf("New produced an invalid ULID: %v", err)
	}
}

func TestRequestIDIsUnique(t *testing.T) {
	a, b := RequestID(), RequestID()
	if a == "" || a == b {
		t.Fatalf("expected distinct request ids, got %q and %q", a, b)
	}
}
