package linker

import (
	"context"
	"slices"
	"testing"
)

func TestRecordPairs_SkipsEmptyAndSorts(t *testing.T) {
	rec := Record{"phone": "", "email": "a@x", "device": "abc"}
	got := rec.Pairs()
	want := []Pair{{"device", "abc"}, {"email", "a@x"}}
	if !slices.Equal(got, want) {
		t.Errorf("pairs = %v, want %v", got, want)
	}
}

func TestParseRecord_NullIsAbsent(t *testing.T) {
	rec, err := ParseRecord(map[string]any{"email": "a@x", "phone": nil})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rec["phone"]; ok {
		t.Errorf("null value should be dropped, got %v", rec)
	}
	if rec["email"] != "a@x" {
		t.Errorf("email = %q, want %q", rec["email"], "a@x")
	}
}

func TestParseRecord_RejectsNonString(t *testing.T) {
	for _, bad := range []any{42.0, true, []any{"a"}, map[string]any{}} {
		if _, err := ParseRecord(map[string]any{"phone": bad}); err == nil {
			t.Errorf("expected error for %T value", bad)
		}
	}
}

// Spec'd scenario: an empty phone in the first record is ignored; the second
// record merges both identifiers into one class of weight 2.
func TestUnionFromStream_Scenario(t *testing.T) {
	l, _ := newTestLinker()

	stream := []Record{
		{"email": "a@x", "phone": ""},
		{"email": "a@x", "phone": "555"},
	}
	if err := l.UnionFromStream(context.Background(), slices.Values(stream)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	email := mustFind(t, l, "email", "a@x")
	phone := mustFind(t, l, "phone", "555")
	if email.ID != phone.ID {
		t.Errorf("stream did not merge: %q vs %q", email.ID, phone.ID)
	}
	if email.Weight != 2 {
		t.Errorf("class weight = %d, want 2", email.Weight)
	}
}

func TestUnionFromStream_SingleIdentifierRecord(t *testing.T) {
	l, st := newTestLinker()

	stream := []Record{{"email": "solo@x"}}
	if err := l.UnionFromStream(context.Background(), slices.Values(stream)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	node := mustFind(t, l, "email", "solo@x")
	if node.Weight != 1 {
		t.Errorf("weight = %d, want 1", node.Weight)
	}
	if got := st.ParentID(node.ID); got != node.ID {
		t.Errorf("singleton parent = %q, want self-loop", got)
	}
}

func TestUnionFromStream_Empty(t *testing.T) {
	l, _ := newTestLinker()
	if err := l.UnionFromStream(context.Background(), slices.Values([]Record{})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
