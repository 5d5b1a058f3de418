package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jStore implements Store on a Neo4j database. Elements are `Element`
// nodes with id/type/name/weight properties; the forest is HAS_PARENT
// relationships, with the root encoded as a self-loop.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

var _ Store = (*Neo4jStore)(nil)

// OpenNeo4j connects to the database at uri, verifies connectivity, and
// ensures the (type, name) uniqueness constraint exists.
func OpenNeo4j(ctx context.Context, uri, user, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, opErr("creating driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, opErr("connecting to neo4j", err)
	}

	s := &Neo4jStore{driver: driver}
	if err := s.run(ctx, neo4j.AccessModeWrite, `
		CREATE CONSTRAINT element_identity IF NOT EXISTS
		FOR (e:Element) REQUIRE (e.type, e.name) IS UNIQUE
	`, nil); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("ensuring uniqueness constraint: %w", err)
	}
	return s, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// run executes a query and discards the result.
func (s *Neo4jStore) run(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return failure(err)
	}
	_, err = result.Consume(ctx)
	if err != nil {
		return failure(err)
	}
	return nil
}

// collect executes a read query and returns all matched nodes.
func (s *Neo4jStore) collect(ctx context.Context, query string, params map[string]any) ([]Node, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, failure(err)
	}

	var nodes []Node
	for result.Next(ctx) {
		n, err := nodeFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := result.Err(); err != nil {
		return nil, failure(err)
	}
	return nodes, nil
}

// nodeFromRecord reads the id/type/name/weight columns of a record.
func nodeFromRecord(record *neo4j.Record) (Node, error) {
	var n Node
	for _, field := range []struct {
		key  string
		dest *string
	}{
		{"id", &n.ID}, {"type", &n.Type}, {"name", &n.Name},
	} {
		v, ok := record.Get(field.key)
		if !ok {
			return n, fmt.Errorf("record missing %q: %w", field.key, ErrUnavailable)
		}
		str, ok := v.(string)
		if !ok {
			return n, fmt.Errorf("record field %q is not a string: %w", field.key, ErrUnavailable)
		}
		*field.dest = str
	}
	if v, ok := record.Get("weight"); ok {
		if w, ok := v.(int64); ok {
			n.Weight = w
		}
	}
	return n, nil
}

const returnNode = "RETURN e.id AS id, e.type AS type, e.name AS name, e.weight AS weight"

func (s *Neo4jStore) Lookup(ctx context.Context, typ, name string) (*Node, error) {
	matches, err := s.collect(ctx, `
		MATCH (e:Element {type: $type, name: $name})
		`+returnNode, map[string]any{"type": typ, "name": name})
	if err != nil {
		return nil, fmt.Errorf("looking up element: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("lookup %s/%s: %w", typ, name, ErrDuplicate)
	}
}

func (s *Neo4jStore) CreateNode(ctx context.Context, typ, name string, weight int64) (*Node, error) {
	node := &Node{ID: uuid.New().String(), Type: typ, Name: name, Weight: weight}
	err := s.run(ctx, neo4j.AccessModeWrite, `
		CREATE (e:Element {id: $id, type: $type, name: $name, weight: $weight})
		CREATE (e)-[:HAS_PARENT]->(e)
	`, map[string]any{"id": node.ID, "type": node.Type, "name": node.Name, "weight": node.Weight})
	if err != nil {
		return nil, fmt.Errorf("creating element: %w", err)
	}
	return node, nil
}

func (s *Neo4jStore) IsRoot(ctx context.Context, node *Node) (bool, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (e:Element {id: $id})-[:HAS_PARENT]->(e)
		RETURN e.id
	`, map[string]any{"id": node.ID})
	if err != nil {
		return false, opErr("checking root", err)
	}
	isRoot := result.Next(ctx)
	if err := result.Err(); err != nil {
		return false, opErr("checking root", err)
	}
	return isRoot, nil
}

func (s *Neo4jStore) RootOf(ctx context.Context, node *Node, maxDepth int) (*Node, error) {
	// Variable-length bounds must be literals in Cypher, so the depth cap is
	// formatted into the pattern, not passed as a parameter.
	query := fmt.Sprintf(`
		MATCH (n:Element {id: $id})-[:HAS_PARENT*1..%d]->(r)-[:HAS_PARENT]->(r)
		RETURN r.id AS id, r.type AS type, r.name AS name, r.weight AS weight
		LIMIT 1
	`, maxDepth)
	matches, err := s.collect(ctx, query, map[string]any{"id": node.ID})
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("resolving root of %s: %w", node.ID, ErrDepthExceeded)
	}
	return &matches[0], nil
}

func (s *Neo4jStore) AncestorsOf(ctx context.Context, root *Node, maxDepth int) ([]Node, error) {
	// Matches every ancestor of the root, not only one traversed path. The
	// root itself is reachable over its self-loop and is filtered out.
	query := fmt.Sprintf(`
		MATCH (e:Element)-[:HAS_PARENT*1..%d]->(r:Element {id: $id})
		WHERE e.id <> $id
		RETURN DISTINCT e.id AS id, e.type AS type, e.name AS name, e.weight AS weight
		ORDER BY id
	`, maxDepth)
	ancestors, err := s.collect(ctx, query, map[string]any{"id": root.ID})
	if err != nil {
		return nil, fmt.Errorf("fetching ancestors: %w", err)
	}
	return ancestors, nil
}

// SetParent deletes the old edge and creates the new one inside a single
// managed transaction, so the element never has zero or two parent edges.
func (s *Neo4jStore) SetParent(ctx context.Context, node, parent *Node) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (n:Element {id: $id})-[rel:HAS_PARENT]->()
			DELETE rel
			WITH n
			MATCH (p:Element {id: $parent})
			CREATE (n)-[:HAS_PARENT]->(p)
			RETURN n.id
		`, map[string]any{"id": node.ID, "parent": parent.ID})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, fmt.Errorf("setting parent of %s: %w", node.ID, ErrNoParent)
		}
		return nil, result.Err()
	})
	if err != nil {
		return fmt.Errorf("setting parent: %w", failure(err))
	}
	return nil
}

func (s *Neo4jStore) SetWeight(ctx context.Context, node *Node) error {
	err := s.run(ctx, neo4j.AccessModeWrite, `
		MATCH (e:Element {id: $id})
		SET e.weight = $weight
	`, map[string]any{"id": node.ID, "weight": node.Weight})
	if err != nil {
		return fmt.Errorf("saving weight: %w", err)
	}
	return nil
}

func (s *Neo4jStore) Roots(ctx context.Context) ([]Node, error) {
	roots, err := s.collect(ctx, `
		MATCH (e:Element)-[:HAS_PARENT]->(e)
		`+returnNode+`
		ORDER BY weight DESC, id
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("listing roots: %w", err)
	}
	return roots, nil
}
