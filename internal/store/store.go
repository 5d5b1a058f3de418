// Package store provides the graph-store primitives the disjoint-set engine
// is built on: element lookup and creation, parent-edge rewiring, and bounded
// ancestor traversal. Three backends implement the same contract: a SQLite
// adjacency table, a Neo4j graph, and an in-process map for tests.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Node is one tracked local identifier. Weight is the size of the set rooted
// at this node and is only meaningful while the node is a root; on non-root
// nodes it is stale and must not be read as the set size.
type Node struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Weight int64  `json:"weight"`
}

var (
	// ErrUnavailable tags errors where the backing store could not be reached
	// or rejected the operation.
	ErrUnavailable = errors.New("store unavailable")

	// ErrTimeout tags errors where the store did not respond in time.
	ErrTimeout = errors.New("store timeout")

	// ErrDuplicate is returned by Lookup when more than one element matches a
	// (type, name) pair. The uniqueness invariant is broken; the engine treats
	// this as fatal corruption.
	ErrDuplicate = errors.New("multiple elements match type and name")

	// ErrDepthExceeded is returned by RootOf when no root is found within the
	// depth bound, which means a cycle or a broken parent chain.
	ErrDepthExceeded = errors.New("no root within depth bound")

	// ErrNoParent is returned by SetParent when the node has no existing
	// parent edge to replace. Every element must carry exactly one.
	ErrNoParent = errors.New("element has no parent edge")
)

// Store is the capability surface the engine consumes. Every element node has
// exactly one outgoing parent edge at all times; a node is a root iff that
// edge points to itself.
type Store interface {
	// Lookup returns the unique element matching (type, name), or nil if none
	// exists. ErrDuplicate if more than one matches.
	Lookup(ctx context.Context, typ, name string) (*Node, error)

	// CreateNode allocates an element with a fresh id and a self-loop parent
	// edge, so it is born a singleton root.
	CreateNode(ctx context.Context, typ, name string, weight int64) (*Node, error)

	// IsRoot reports whether node's parent edge is a self-loop.
	IsRoot(ctx context.Context, node *Node) (bool, error)

	// RootOf follows parent edges from node until it reaches the self-loop
	// root, as a single bounded traversal (never one request per hop).
	// ErrDepthExceeded if no root is reached within maxDepth hops.
	RootOf(ctx context.Context, node *Node, maxDepth int) (*Node, error)

	// AncestorsOf returns every element from which root is reachable via one
	// or more parent edges, excluding root itself, in deterministic (id)
	// order. maxDepth bounds the traversal.
	AncestorsOf(ctx context.Context, root *Node, maxDepth int) ([]Node, error)

	// SetParent atomically replaces node's parent edge with one pointing to
	// parent. Exactly one edge is removed and exactly one added; backends must
	// perform both halves in a single transaction.
	SetParent(ctx context.Context, node, parent *Node) error

	// SetWeight persists node's current in-memory weight.
	SetWeight(ctx context.Context, node *Node) error

	// Roots returns all current roots ordered by weight descending, id
	// ascending.
	Roots(ctx context.Context) ([]Node, error)

	Close(ctx context.Context) error
}

// failure tags err with the store-level condition so callers can use
// errors.Is against ErrUnavailable / ErrTimeout without losing the driver
// error.
func failure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrTimeout, err)
	}
	return errors.Join(ErrUnavailable, err)
}

// opErr wraps a backend error with the failing operation.
func opErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, failure(err))
}
