package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store with plain maps. It exists for tests and as
// the reference semantics for the other backends; it is safe for concurrent
// use.
type MemoryStore struct {
	mu     sync.Mutex
	nodes  map[string]*Node  // id -> node
	byKey  map[string]string // type\x00name -> id
	parent map[string]string // child id -> parent id
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:  make(map[string]*Node),
		byKey:  make(map[string]string),
		parent: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func key(typ, name string) string { return typ + "\x00" + name }

func (m *MemoryStore) Close(ctx context.Context) error { return nil }

func (m *MemoryStore) Lookup(ctx context.Context, typ, name string) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byKey[key(typ, name)]
	if !ok {
		return nil, nil
	}
	n := *m.nodes[id]
	return &n, nil
}

func (m *MemoryStore) CreateNode(ctx context.Context, typ, name string, weight int64) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byKey[key(typ, name)]; exists {
		return nil, fmt.Errorf("create %s/%s: %w", typ, name, ErrDuplicate)
	}
	node := &Node{ID: uuid.New().String(), Type: typ, Name: name, Weight: weight}
	m.nodes[node.ID] = node
	m.byKey[key(typ, name)] = node.ID
	m.parent[node.ID] = node.ID
	n := *node
	return &n, nil
}

func (m *MemoryStore) IsRoot(ctx context.Context, node *Node) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parent[node.ID] == node.ID, nil
}

func (m *MemoryStore) RootOf(ctx context.Context, node *Node, maxDepth int) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := node.ID
	for i := 0; i <= maxDepth; i++ {
		parent, ok := m.parent[current]
		if !ok {
			return nil, fmt.Errorf("resolving root of %s: %w", node.ID, ErrNoParent)
		}
		if parent == current {
			n := *m.nodes[current]
			return &n, nil
		}
		current = parent
	}
	return nil, fmt.Errorf("resolving root of %s: %w", node.ID, ErrDepthExceeded)
}

func (m *MemoryStore) AncestorsOf(ctx context.Context, root *Node, maxDepth int) ([]Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ancestors []Node
	for id := range m.nodes {
		if id == root.ID {
			continue
		}
		current := id
		for i := 0; i < maxDepth; i++ {
			parent, ok := m.parent[current]
			if !ok || parent == current {
				break
			}
			if parent == root.ID {
				ancestors = append(ancestors, *m.nodes[id])
				break
			}
			current = parent
		}
	}
	sort.Slice(ancestors, func(i, j int) bool { return ancestors[i].ID < ancestors[j].ID })
	return ancestors, nil
}

func (m *MemoryStore) SetParent(ctx context.Context, node, parent *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.parent[node.ID]; !ok {
		return fmt.Errorf("setting parent of %s: %w", node.ID, ErrNoParent)
	}
	m.parent[node.ID] = parent.ID
	return nil
}

func (m *MemoryStore) SetWeight(ctx context.Context, node *Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.nodes[node.ID]
	if !ok {
		return fmt.Errorf("saving weight of %s: %w", node.ID, ErrUnavailable)
	}
	stored.Weight = node.Weight
	return nil
}

func (m *MemoryStore) Roots(ctx context.Context) ([]Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var roots []Node
	for id, parent := range m.parent {
		if id == parent {
			roots = append(roots, *m.nodes[id])
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].Weight != roots[j].Weight {
			return roots[i].Weight > roots[j].Weight
		}
		return roots[i].ID < roots[j].ID
	})
	return roots, nil
}

// ParentID exposes the raw parent edge for invariant checks in tests.
func (m *MemoryStore) ParentID(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parent[id]
}
