// Package linker implements a persistent disjoint-set over a graph store.
// Local identifiers of different types that refer to the same real-world
// entity are merged into equivalence classes; each class is addressed by the
// id of its root element.
package linker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"idlink/linker/internal/store"
)

// maxTraversalDepth bounds every root traversal. Union-by-weight plus path
// compression keeps real trees a handful of levels deep; a chain longer than
// this means a cycle or a broken forest.
const maxTraversalDepth = 64

// ErrInvariant signals store corruption: a duplicate (type, name) element, a
// parent chain with no root, or a missing parent edge. Not retryable; the
// store needs repair before further writes.
var ErrInvariant = errors.New("forest invariant violated")

// Pair names one local identifier: an identifier namespace and a value
// within it.
type Pair struct {
	Type string
	Name string
}

// Linker binds the disjoint-set operations to a store. The zero value is not
// usable; construct with New.
type Linker struct {
	store store.Store
	log   *zap.Logger

	// Two unions sharing a root must not interleave their reparenting steps.
	// Cross-process callers rely on the store's atomic SetParent; in-process
	// unions are serialized here.
	mu sync.Mutex
}

// New returns a Linker over st. A nil logger disables logging.
func New(st store.Store, log *zap.Logger) *Linker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Linker{store: st, log: log}
}

// Find locates or lazily creates the element for (typ, name) and returns the
// root of its set. Resolving a non-root element also flattens every known
// ancestor of the root to depth 1, so later traversals are O(1).
func (l *Linker) Find(ctx context.Context, typ, name string) (*store.Node, error) {
	existing, err := l.store.Lookup(ctx, typ, name)
	if err != nil {
		return nil, invariantOr(err, "looking up element")
	}
	if existing == nil {
		node, err := l.store.CreateNode(ctx, typ, name, 1)
		if err != nil {
			return nil, fmt.Errorf("creating singleton: %w", err)
		}
		l.log.Debug("created singleton", zap.String("type", typ), zap.String("name", name), zap.String("id", node.ID))
		return node, nil
	}

	isRoot, err := l.store.IsRoot(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("checking root: %w", err)
	}
	if isRoot {
		return existing, nil
	}

	root, err := l.store.RootOf(ctx, existing, maxTraversalDepth)
	if err != nil {
		return nil, invariantOr(err, "resolving root")
	}

	if err := l.compress(ctx, root); err != nil {
		return nil, err
	}
	return root, nil
}

// compress reparents every known ancestor of root directly onto root. This is
// deliberately broader than the one traversed path: the whole tree converges
// to depth 1 on any non-trivial find. The root itself is never reparented.
func (l *Linker) compress(ctx context.Context, root *store.Node) error {
	ancestors, err := l.store.AncestorsOf(ctx, root, maxTraversalDepth)
	if err != nil {
		return fmt.Errorf("fetching ancestors: %w", err)
	}
	for i := range ancestors {
		if ancestors[i].ID == root.ID {
			continue
		}
		if err := l.store.SetParent(ctx, &ancestors[i], root); err != nil {
			return invariantOr(err, "compressing path")
		}
	}
	if len(ancestors) > 0 {
		l.log.Debug("compressed paths", zap.String("root", root.ID), zap.Int("ancestors", len(ancestors)))
	}
	return nil
}

// Union merges the sets containing each pair into one and returns its root.
// Pairs not yet tracked are created as part of the merged set. The heaviest
// root absorbs the others; among equally heavy roots the lowest id wins, so
// the outcome does not depend on input order.
func (l *Linker) Union(ctx context.Context, pairs []Pair) (*store.Node, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	roots := make([]*store.Node, 0, len(pairs))
	for _, p := range pairs {
		root, err := l.Find(ctx, p.Type, p.Name)
		if err != nil {
			return nil, fmt.Errorf("union %s/%s: %w", p.Type, p.Name, err)
		}
		roots = append(roots, root)
	}
	if len(roots) == 0 {
		return nil, nil
	}

	heaviest := roots[0]
	for _, r := range roots[1:] {
		if r.Weight > heaviest.Weight || (r.Weight == heaviest.Weight && r.ID < heaviest.ID) {
			heaviest = r
		}
	}

	merged := map[string]bool{heaviest.ID: true}
	for _, r := range roots {
		if merged[r.ID] {
			continue
		}
		merged[r.ID] = true

		heaviest.Weight += r.Weight
		if err := l.store.SetWeight(ctx, heaviest); err != nil {
			return nil, fmt.Errorf("union: %w", err)
		}
		if err := l.store.SetParent(ctx, r, heaviest); err != nil {
			return nil, invariantOr(err, "reparenting root")
		}
		l.log.Debug("merged class",
			zap.String("absorbed", r.ID),
			zap.String("into", heaviest.ID),
			zap.Int64("weight", heaviest.Weight))
	}
	return heaviest, nil
}

// GlobalID resolves (typ, name) to the id of its class root. The id is stable
// until the class is merged into a heavier one.
func (l *Linker) GlobalID(ctx context.Context, typ, name string) (string, error) {
	root, err := l.Find(ctx, typ, name)
	if err != nil {
		return "", err
	}
	return root.ID, nil
}

// invariantOr reclassifies store corruption signals as ErrInvariant and
// passes other errors through with context.
func invariantOr(err error, op string) error {
	if errors.Is(err, store.ErrDuplicate) ||
		errors.Is(err, store.ErrDepthExceeded) ||
		errors.Is(err, store.ErrNoParent) {
		return fmt.Errorf("%s: %w: %w", op, ErrInvariant, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
