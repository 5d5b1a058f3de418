package store

import (
	"context"
	"errors"
	"testing"
)

// testStoreContract exercises the Store behavior every backend must share.
// Backend-specific tests live next to each implementation.
func testStoreContract(t *testing.T, st Store) {
	ctx := context.Background()

	// Absent elements look up as nil without error.
	node, err := st.Lookup(ctx, "email", "a@x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != nil {
		t.Fatalf("lookup of absent element = %+v, want nil", node)
	}

	// Creation yields a singleton root.
	a, err := st.CreateNode(ctx, "email", "a@x", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" {
		t.Fatal("created node has empty id")
	}
	if a.Weight != 1 {
		t.Errorf("created weight = %d, want 1", a.Weight)
	}
	if isRoot, err := st.IsRoot(ctx, a); err != nil || !isRoot {
		t.Fatalf("IsRoot(new node) = %v, %v, want true, nil", isRoot, err)
	}

	// Lookup finds the same node.
	found, err := st.Lookup(ctx, "email", "a@x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found == nil || found.ID != a.ID {
		t.Fatalf("lookup = %+v, want id %q", found, a.ID)
	}

	// Reparenting makes a member; root resolution follows the chain.
	b, err := st.CreateNode(ctx, "phone", "555", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.SetParent(ctx, b, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isRoot, _ := st.IsRoot(ctx, b); isRoot {
		t.Error("reparented node still reports as root")
	}
	root, err := st.RootOf(ctx, b, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.ID != a.ID {
		t.Errorf("RootOf(b) = %q, want %q", root.ID, a.ID)
	}

	// A two-hop chain still resolves, and ancestors cover the whole tree.
	c, err := st.CreateNode(ctx, "device", "abc", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.SetParent(ctx, c, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root, err = st.RootOf(ctx, c, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.ID != a.ID {
		t.Errorf("RootOf(c) = %q, want %q", root.ID, a.ID)
	}

	ancestors, err := st.AncestorsOf(ctx, a, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := map[string]bool{}
	for _, n := range ancestors {
		got[n.ID] = true
	}
	if len(ancestors) != 2 || !got[b.ID] || !got[c.ID] {
		t.Errorf("AncestorsOf(a) = %v, want exactly {b, c}", ancestors)
	}
	for i := 1; i < len(ancestors); i++ {
		if ancestors[i-1].ID >= ancestors[i].ID {
			t.Errorf("ancestors not in id order: %v", ancestors)
		}
	}

	// Weight persistence and root listing.
	a.Weight = 3
	if err := st.SetWeight(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found, err = st.Lookup(ctx, "email", "a@x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Weight != 3 {
		t.Errorf("persisted weight = %d, want 3", found.Weight)
	}

	roots, err := st.Roots(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 1 || roots[0].ID != a.ID {
		t.Errorf("Roots = %v, want only %q", roots, a.ID)
	}

	// Reparenting an untracked element must fail: there is no edge to replace.
	err = st.SetParent(ctx, &Node{ID: "no-such-node"}, a)
	if !errors.Is(err, ErrNoParent) {
		t.Errorf("SetParent of untracked node = %v, want ErrNoParent", err)
	}

	// A corrupted cycle surfaces as ErrDepthExceeded, not a hang.
	if err := st.SetParent(ctx, a, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = st.RootOf(ctx, a, 16)
	if !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("RootOf on cycle = %v, want ErrDepthExceeded", err)
	}
}
