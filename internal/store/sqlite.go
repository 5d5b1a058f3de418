package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// schema contains the DDL executed on every open. IF NOT EXISTS makes it safe
// to run repeatedly. parents.child_id being the primary key makes "exactly one
// parent edge per element" a schema invariant rather than a convention.
const schema = `
CREATE TABLE IF NOT EXISTS elements (
    id     TEXT PRIMARY KEY,
    type   TEXT NOT NULL,
    name   TEXT NOT NULL,
    weight INTEGER NOT NULL DEFAULT 1,
    UNIQUE(type, name)
);

CREATE TABLE IF NOT EXISTS parents (
    child_id  TEXT PRIMARY KEY REFERENCES elements(id),
    parent_id TEXT NOT NULL REFERENCES elements(id)
);

CREATE INDEX IF NOT EXISTS idx_parents_parent ON parents(parent_id);
`

// SQLiteStore implements Store on a local SQLite database: elements plus a
// parents adjacency table, which is all the graph shape the forest needs.
type SQLiteStore struct {
	db   *sql.DB
	Path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path, enables WAL mode and a
// busy timeout, and creates the schema tables if they do not exist.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, opErr("opening database", err)
	}

	// One connection only. SQLite supports a single writer; a pool of
	// connections that each need their own PRAGMA setup just produces
	// SQLITE_BUSY contention.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, opErr("setting WAL mode", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, opErr("setting busy timeout", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, opErr("enabling foreign keys", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, opErr("creating schema", err)
	}

	return &SQLiteStore{db: db, Path: path}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

// scanNode scans a row into a Node. The row must have the four element
// columns in standard order.
func scanNode(scanner interface{ Scan(dest ...any) error }) (Node, error) {
	var n Node
	err := scanner.Scan(&n.ID, &n.Type, &n.Name, &n.Weight)
	return n, err
}

// Lookup returns the element matching (type, name), or nil if none exists.
// The UNIQUE(type, name) constraint enforces at-most-one at the schema level,
// but a duplicate slipped in by hand is still reported as ErrDuplicate.
func (s *SQLiteStore) Lookup(ctx context.Context, typ, name string) (*Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, weight FROM elements
		WHERE type = ? AND name = ?
	`, typ, name)
	if err != nil {
		return nil, opErr("looking up element", err)
	}
	defer rows.Close()

	var matches []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, opErr("scanning element", err)
		}
		matches = append(matches, n)
	}
	if err := rows.Err(); err != nil {
		return nil, opErr("looking up element", err)
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

// CreateNode inserts the element and its self-loop parent edge in one
// transaction, so the new node is never observable without its edge.
func (s *SQLiteStore) CreateNode(ctx context.Context, typ, name string, weight int64) (*Node, error) {
	node := &Node{ID: uuid.New().String(), Type: typ, Name: name, Weight: weight}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, opErr("creating element", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO elements (id, type, name, weight) VALUES (?, ?, ?, ?)
	`, node.ID, node.Type, node.Name, node.Weight); err != nil {
		return nil, opErr("inserting element", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO parents (child_id, parent_id) VALUES (?, ?)
	`, node.ID, node.ID); err != nil {
		return nil, opErr("inserting parent edge", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, opErr("creating element", err)
	}
	return node, nil
}

// IsRoot reports whether node's parent edge is a self-loop.
func (s *SQLiteStore) IsRoot(ctx context.Context, node *Node) (bool, error) {
	var isRoot bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM parents WHERE child_id = ? AND parent_id = child_id
		)
	`, node.ID).Scan(&isRoot)
	if err != nil {
		return false, opErr("checking root", err)
	}
	return isRoot, nil
}

// RootOf resolves node's root with a single recursive CTE, bounded by
// maxDepth so a corrupted cycle surfaces as ErrDepthExceeded instead of a
// runaway query.
func (s *SQLiteStore) RootOf(ctx context.Context, node *Node, maxDepth int) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `
		WITH RECURSIVE chain(id, parent_id, depth) AS (
			SELECT child_id, parent_id, 0 FROM parents WHERE child_id = ?
			UNION ALL
			SELECT p.child_id, p.parent_id, chain.depth + 1
			FROM parents p JOIN chain ON p.child_id = chain.parent_id
			WHERE chain.parent_id != chain.id AND chain.depth < ?
		)
		SELECT e.id, e.type, e.name, e.weight
		FROM chain JOIN elements e ON e.id = chain.id
		WHERE chain.parent_id = chain.id
		LIMIT 1
	`, node.ID, maxDepth)

	root, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolving root of %s: %w", node.ID, ErrDepthExceeded)
	}
	if err != nil {
		return nil, opErr("resolving root", err)
	}
	return &root, nil
}

// AncestorsOf returns every element whose parent chain reaches root,
// excluding root itself, ordered by id.
func (s *SQLiteStore) AncestorsOf(ctx context.Context, root *Node, maxDepth int) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE anc(id, depth) AS (
			SELECT child_id, 1 FROM parents
			WHERE parent_id = ? AND child_id != ?
			UNION ALL
			SELECT p.child_id, anc.depth + 1
			FROM parents p JOIN anc ON p.parent_id = anc.id
			WHERE anc.depth < ?
		)
		SELECT DISTINCT e.id, e.type, e.name, e.weight
		FROM anc JOIN elements e ON e.id = anc.id
		ORDER BY e.id
	`, root.ID, root.ID, maxDepth)
	if err != nil {
		return nil, opErr("fetching ancestors", err)
	}
	defer rows.Close()

	var ancestors []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, opErr("scanning ancestor", err)
		}
		ancestors = append(ancestors, n)
	}
	return ancestors, rows.Err()
}

// SetParent redirects node's parent edge to parent. A single UPDATE on the
// adjacency row replaces the old edge and adds the new one atomically.
func (s *SQLiteStore) SetParent(ctx context.Context, node, parent *Node) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE parents SET parent_id = ? WHERE child_id = ?
	`, parent.ID, node.ID)
	if err != nil {
		return opErr("setting parent", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return opErr("setting parent", err)
	}
	if affected != 1 {
		return fmt.Errorf("setting parent of %s: %w", node.ID, ErrNoParent)
	}
	return nil
}

// SetWeight persists node's weight.
func (s *SQLiteStore) SetWeight(ctx context.Context, node *Node) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE elements SET weight = ? WHERE id = ?
	`, node.Weight, node.ID); err != nil {
		return opErr("saving weight", err)
	}
	return nil
}

// Roots returns all self-loop elements ordered by weight descending, id
// ascending.
func (s *SQLiteStore) Roots(ctx context.Context) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.type, e.name, e.weight
		FROM elements e JOIN parents p ON p.child_id = e.id
		WHERE p.parent_id = e.id
		ORDER BY e.weight DESC, e.id
	`)
	if err != nil {
		return nil, opErr("listing roots", err)
	}
	defer rows.Close()

	var roots []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, opErr("scanning root", err)
		}
		roots = append(roots, n)
	}
	return roots, rows.Err()
}
