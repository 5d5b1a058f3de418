package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "linker.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { st.Close(context.Background()) })
	return st
}

func TestSQLiteStore_Contract(t *testing.T) {
	testStoreContract(t, openTestSQLite(t))
}

func TestSQLiteStore_DuplicateCreateRejected(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	if _, err := st.CreateNode(ctx, "email", "a@x", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The UNIQUE(type, name) constraint enforces the uniqueness invariant at
	// the schema level.
	if _, err := st.CreateNode(ctx, "email", "a@x", 1); err == nil {
		t.Error("expected error creating duplicate (type, name)")
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "linker.db")

	st, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err := st.CreateNode(ctx, "email", "a@x", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := st.CreateNode(ctx, "phone", "555", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.SetParent(ctx, b, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer st.Close(ctx)

	found, err := st.Lookup(ctx, "phone", "555")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found == nil || found.ID != b.ID {
		t.Fatalf("lookup after reopen = %+v, want id %q", found, b.ID)
	}
	root, err := st.RootOf(ctx, found, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.ID != a.ID {
		t.Errorf("root after reopen = %q, want %q", root.ID, a.ID)
	}
}

func TestSQLiteStore_RootsOrderedByWeight(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	light, err := st.CreateNode(ctx, "email", "light@x", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	heavy, err := st.CreateNode(ctx, "email", "heavy@x", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	heavy.Weight = 5
	if err := st.SetWeight(ctx, heavy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	roots, err := st.Roots(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}
	if roots[0].ID != heavy.ID || roots[1].ID != light.ID {
		t.Errorf("roots order = [%s, %s], want heaviest first", roots[0].ID, roots[1].ID)
	}
}

func TestSQLiteStore_DepthBoundOnLongChain(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	// Build a 10-deep chain; a bound of 4 must refuse to resolve it while a
	// bound of 16 succeeds.
	nodes := make([]*Node, 10)
	for i := range nodes {
		n, err := st.CreateNode(ctx, "user", string(rune('a'+i)), 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		nodes[i] = n
	}
	for i := 1; i < len(nodes); i++ {
		if err := st.SetParent(ctx, nodes[i], nodes[i-1]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	leaf := nodes[len(nodes)-1]
	if _, err := st.RootOf(ctx, leaf, 4); !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("RootOf with tight bound = %v, want ErrDepthExceeded", err)
	}
	root, err := st.RootOf(ctx, leaf, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.ID != nodes[0].ID {
		t.Errorf("root = %q, want %q", root.ID, nodes[0].ID)
	}
}
