// Package sqlite keeps pathtree records in a SQLite table through the
// pure Go modernc.org/sqlite driver. Fields other than the id, parent
// and ancestry are stored as a JSON document.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fcruxen/pathtree"
	_ "modernc.org/sqlite"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open opens the database file at path with one connection, which is
// all SQLite can write through anyway.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// Store implements pathtree.Store over one table.
type Store struct {
	db    *sql.DB
	table string
}

var _ pathtree.Store = (*Store)(nil)

// NewStore returns a Store over table, which Migrate creates.
func NewStore(db *sql.DB, table string) (*Store, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: table name %q", pathtree.ErrConfiguration, table)
	}
	return &Store{db: db, table: table}, nil
}

// Migrate creates the table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
  id TEXT PRIMARY KEY,
  parent TEXT,
  ancestry TEXT NOT NULL DEFAULT '',
  doc TEXT NOT NULL DEFAULT '{}'
)`,
		`CREATE INDEX IF NOT EXISTS ` + s.table + `_parent_idx ON ` + s.table + ` (parent)`,
		`CREATE INDEX IF NOT EXISTS ` + s.table + `_ancestry_idx ON ` + s.table + ` (ancestry)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row scanner) (*pathtree.Node, error) {
	var (
		n      pathtree.Node
		parent sql.NullString
		doc    string
	)
	if err := row.Scan(&n.ID, &parent, &n.Ancestry, &doc); err != nil {
		return nil, err
	}
	n.Parent = parent.String
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &fields); err != nil {
		return nil, fmt.Errorf("document of %s: %w", n.ID, err)
	}
	if len(fields) > 0 {
		n.Fields = fields
	}
	return &n, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) selectFrom() string {
	return "SELECT id, parent, ancestry, doc FROM " + s.table
}

func (s *Store) FindOne(ctx context.Context, id string) (*pathtree.Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx, s.selectFrom()+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pathtree.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", id, err)
	}
	return n, nil
}

// Find reads the whole result before returning, so the single
// connection is free for the updates a caller makes while iterating.
func (s *Store) Find(ctx context.Context, filter pathtree.Filter, o *pathtree.FindOptions) (pathtree.Cursor, error) {
	var q query
	if err := q.translate(filter); err != nil {
		return nil, err
	}
	stmt := s.selectFrom() + q.where()
	var fields []string
	if o != nil {
		fields = o.Fields
		if o.SortBy != "" {
			e, err := q.expr(o.SortBy)
			if err != nil {
				return nil, err
			}
			stmt += " ORDER BY " + e + ", id"
		}
	}
	rows, err := s.db.QueryContext(ctx, stmt, q.args...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer rows.Close()
	var nodes []*pathtree.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n.Project(fields))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return pathtree.NewSliceCursor(nodes), nil
}

func (s *Store) Insert(ctx context.Context, n *pathtree.Node) error {
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", pathtree.ErrInvalidID)
	}
	fields := n.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}
	doc, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("insert %s: %w", n.ID, err)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO "+s.table+" (id, parent, ancestry, doc) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING",
		n.ID, nullable(n.Parent), n.Ancestry, string(doc))
	if err != nil {
		return fmt.Errorf("insert %s: %w", n.ID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", pathtree.ErrDuplicateID, n.ID)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id string, set map[string]interface{}) error {
	var (
		sets []string
		args []interface{}
		doc  []string
	)
	var docArgs []interface{}
	for field, v := range set {
		switch field {
		case pathtree.FieldID:
			if v != id {
				return fmt.Errorf("%w: cannot change id of %s", pathtree.ErrInvalidID, id)
			}
		case pathtree.FieldParent, pathtree.FieldAncestry:
			str, ok := v.(string)
			if !ok && v != nil {
				return fmt.Errorf("%s must be a string, not %T", field, v)
			}
			sets = append(sets, field+" = ?")
			if field == pathtree.FieldParent {
				args = append(args, nullable(str))
			} else {
				args = append(args, str)
			}
		default:
			path, err := jsonPath(field)
			if err != nil {
				return err
			}
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("update %s: %w", id, err)
			}
			doc = append(doc, "?, json(?)")
			docArgs = append(docArgs, path, string(b))
		}
	}
	if len(doc) > 0 {
		sets = append(sets, "doc = json_set(doc, "+strings.Join(doc, ", ")+")")
		args = append(args, docArgs...)
	}
	if len(sets) == 0 {
		_, err := s.FindOne(ctx, id)
		return err
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", pathtree.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, filter pathtree.Filter) (int64, error) {
	var q query
	if err := q.translate(filter); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+s.table+q.where(), q.args...)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return res.RowsAffected()
}
