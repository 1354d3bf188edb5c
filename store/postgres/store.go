// Package postgres keeps pathtree records in a PostgreSQL table. The
// id, parent and ancestry are columns; every other field lives in a
// jsonb document.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fcruxen/pathtree"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store uses. Bulk rewrites run
// updates while a cursor is open, so a single *pgx.Conn will not do.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const uniqueViolation = "23505"

// Store implements pathtree.Store over one table.
type Store struct {
	db    DB
	table string
}

var _ pathtree.Store = (*Store)(nil)

// NewStore returns a Store over table, which Migrate creates.
func NewStore(db DB, table string) (*Store, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: table name %q", pathtree.ErrConfiguration, table)
	}
	return &Store{db: db, table: table}, nil
}

// Migrate creates the table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS ` + s.table + ` (
  id text PRIMARY KEY,
  parent text,
  ancestry text NOT NULL DEFAULT '',
  doc jsonb NOT NULL DEFAULT '{}'::jsonb
)`,
		`CREATE INDEX IF NOT EXISTS ` + s.table + `_parent_idx ON ` + s.table + ` (parent)`,
		`CREATE INDEX IF NOT EXISTS ` + s.table + `_ancestry_idx ON ` + s.table + ` (ancestry text_pattern_ops)`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *Store) selectFrom() string {
	return "SELECT id, parent, ancestry, doc FROM " + s.table
}

func scanNode(row pgx.Row) (*pathtree.Node, error) {
	var (
		n      pathtree.Node
		parent *string
		doc    map[string]interface{}
	)
	if err := row.Scan(&n.ID, &parent, &n.Ancestry, &doc); err != nil {
		return nil, err
	}
	if parent != nil {
		n.Parent = *parent
	}
	if len(doc) > 0 {
		n.Fields = doc
	}
	return &n, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) FindOne(ctx context.Context, id string) (*pathtree.Node, error) {
	n, err := scanNode(s.db.QueryRow(ctx, s.selectFrom()+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pathtree.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", id, err)
	}
	return n, nil
}

func (s *Store) Find(ctx context.Context, filter pathtree.Filter, o *pathtree.FindOptions) (pathtree.Cursor, error) {
	var q query
	if err := q.translate(filter); err != nil {
		return nil, err
	}
	sql := s.selectFrom() + q.where()
	var fields []string
	if o != nil {
		fields = o.Fields
		if o.SortBy != "" {
			if isColumn(o.SortBy) {
				sql += " ORDER BY " + o.SortBy + " NULLS FIRST, id"
			} else {
				sql += " ORDER BY doc->" + q.arg(o.SortBy) + " NULLS FIRST, id"
			}
		}
	}
	rows, err := s.db.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return &cursor{rows: rows, fields: fields}, nil
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
	_, err = s.db.Exec(ctx,
		"INSERT INTO "+s.table+" (id, parent, ancestry, doc) VALUES ($1, $2, $3, $4::jsonb)",
		n.ID, nullable(n.Parent), n.Ancestry, doc)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", pathtree.ErrDuplicateID, n.ID)
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", n.ID, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id string, set map[string]interface{}) error {
	var (
		q    query
		sets []string
		doc  = map[string]interface{}{}
	)
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
			if field == pathtree.FieldParent {
				sets = append(sets, "parent = "+q.arg(nullable(str)))
			} else {
				sets = append(sets, "ancestry = "+q.arg(str))
			}
		default:
			doc[field] = v
		}
	}
	if len(doc) > 0 {
		b, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("update %s: %w", id, err)
		}
		sets = append(sets, "doc = doc || "+q.arg(b)+"::jsonb")
	}
	if len(sets) == 0 {
		// Nothing to write, but the record must exist.
		_, err := s.FindOne(ctx, id)
		return err
	}
	tag, err := s.db.Exec(ctx,
		"UPDATE "+s.table+" SET "+strings.Join(sets, ", ")+" WHERE id = "+q.arg(id),
		q.args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", pathtree.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, filter pathtree.Filter) (int64, error) {
	var q query
	if err := q.translate(filter); err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, "DELETE FROM "+s.table+q.where(), q.args...)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// cursor streams rows; projection happens client side.
type cursor struct {
	rows   pgx.Rows
	fields []string
	err    error
}

func (c *cursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	return c.rows.Next()
}

func (c *cursor) Decode(n *pathtree.Node) error {
	decoded, err := scanNode(c.rows)
	if err != nil {
		return err
	}
	*n = *decoded.Project(c.fields)
	return nil
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *cursor) Close(ctx context.Context) error {
	c.rows.Close()
	return c.rows.Err()
}
