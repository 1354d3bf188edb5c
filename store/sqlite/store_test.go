package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fcruxen/pathtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "tree.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db, "nodes")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
	return s
}

func testTree(t *testing.T, onDelete pathtree.OnDelete) (*Store, *pathtree.Engine, *pathtree.Collection) {
	t.Helper()
	s := testStore(t)
	engine, err := pathtree.New(s, &pathtree.Options{OnDelete: onDelete, NumWorkers: 3})
	require.NoError(t, err)
	nodes := pathtree.NewCollection(s, engine)
	for _, n := range []struct {
		id, parent string
		rank       int
	}{
		{"a", "", 1}, {"b", "a", 2}, {"c", "b", 3}, {"d", "c", 4},
		{"x", "", 5}, {"12", "", 6}, {"123", "", 7}, {"e", "12", 8},
	} {
		require.NoError(t, nodes.Insert(ctx, &pathtree.Node{
			ID: n.id, Parent: n.parent, Fields: map[string]interface{}{"rank": n.rank, "name": "node " + n.id},
		}))
	}
	return s, engine, nodes
}

func ancestry(t *testing.T, nodes *pathtree.Collection, id string) string {
	t.Helper()
	n, err := nodes.Get(ctx, id)
	require.NoError(t, err)
	return n.Ancestry
}

func ids(nodes []*pathtree.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestMoveAndCascade(t *testing.T) {
	t.Parallel()
	s, engine, nodes := testTree(t, pathtree.OnDeleteDelete)
	assert.Equal(t, "a/b/c", ancestry(t, nodes, "d"))

	_, err := nodes.Move(ctx, "b", "x")
	require.NoError(t, err)
	assert.Equal(t, "x/b/c", ancestry(t, nodes, "d"))
	assert.Equal(t, "x/b", ancestry(t, nodes, "c"))

	_, err = nodes.Move(ctx, "c", "")
	require.NoError(t, err)
	assert.Equal(t, "", ancestry(t, nodes, "c"))
	assert.Equal(t, "c", ancestry(t, nodes, "d"))

	require.NoError(t, nodes.Remove(ctx, "12"))
	_, err = s.FindOne(ctx, "e")
	require.ErrorIs(t, err, pathtree.ErrNotFound)
	_, err = s.FindOne(ctx, "123")
	require.NoError(t, err)

	roots, err := engine.Roots(ctx, &pathtree.ChildrenOptions{SortBy: "rank"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "x", "123"}, ids(roots))
}

func TestReparent(t *testing.T) {
	t.Parallel()
	_, engine, nodes := testTree(t, pathtree.OnDeleteReparent)
	require.NoError(t, nodes.Remove(ctx, "b"))
	c, err := nodes.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "a", c.Parent)
	assert.Equal(t, "a", c.Ancestry)
	assert.Equal(t, "a/c", ancestry(t, nodes, "d"))

	ancestors, err := engine.Ancestors(ctx, &pathtree.Node{ID: "d", Ancestry: "a/c"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(ancestors))
}

func TestQueries(t *testing.T) {
	t.Parallel()
	s, engine, _ := testTree(t, pathtree.OnDeleteDelete)
	a := &pathtree.Node{ID: "a"}

	all, err := engine.Children(ctx, a, &pathtree.ChildrenOptions{Recursive: true, SortBy: "rank"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, ids(all))

	some, err := engine.Children(ctx, a, &pathtree.ChildrenOptions{
		Recursive: true,
		Filter:    pathtree.Filter{"rank": pathtree.In(3, 4.0)},
		Fields:    []string{"name"},
		SortBy:    pathtree.FieldID,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, ids(some))
	assert.Equal(t, map[string]interface{}{"name": "node c"}, some[0].Fields)

	none, err := engine.Children(ctx, a, &pathtree.ChildrenOptions{Filter: pathtree.Filter{"name": pathtree.Eq("")}})
	require.NoError(t, err)
	assert.Empty(t, none)

	for _, empty := range []interface{}{nil, ""} {
		roots, err := pathtree.ReadAll(ctx, mustFind(t, s, pathtree.Filter{pathtree.FieldAncestry: pathtree.Eq(empty)}))
		require.NoError(t, err)
		engine.SortByPath(roots)
		assert.Equal(t, []string{"12", "123", "a", "x"}, ids(roots), empty)
	}

	forest, err := engine.ChildrenTree(ctx, nil, nil)
	require.NoError(t, err)
	var roots []string
	for _, tn := range forest {
		roots = append(roots, tn.ID)
	}
	assert.Equal(t, []string{"12", "123", "a", "x"}, roots)
	require.Len(t, forest[2].Children, 1)
	assert.Equal(t, "b", forest[2].Children[0].ID)
	assert.Equal(t, "node b", forest[2].Children[0].Fields["name"])
}

func TestStore(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	require.NoError(t, s.Insert(ctx, &pathtree.Node{ID: "a", Fields: map[string]interface{}{"ok": true}}))
	require.ErrorIs(t, s.Insert(ctx, &pathtree.Node{ID: "a"}), pathtree.ErrDuplicateID)
	require.ErrorIs(t, s.Insert(ctx, &pathtree.Node{}), pathtree.ErrInvalidID)

	require.NoError(t, s.Update(ctx, "a", map[string]interface{}{
		pathtree.FieldParent: "p",
		"tags":               []interface{}{"x"},
		"gone":               nil,
	}))
	n, err := s.FindOne(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "p", n.Parent)
	assert.Equal(t, map[string]interface{}{"ok": true, "tags": []interface{}{"x"}, "gone": nil}, n.Fields)

	require.ErrorIs(t, s.Update(ctx, "a", map[string]interface{}{pathtree.FieldID: "b"}), pathtree.ErrInvalidID)
	require.ErrorIs(t, s.Update(ctx, "ghost", map[string]interface{}{"k": 1}), pathtree.ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, "ghost", nil), pathtree.ErrNotFound)

	found, err := pathtree.ReadAll(ctx, mustFind(t, s, pathtree.Filter{"ok": pathtree.Eq(true)}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(found))
	found, err = pathtree.ReadAll(ctx, mustFind(t, s, pathtree.Filter{"gone": pathtree.Eq(nil), "missing": pathtree.Eq("")}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(found))

	removed, err := s.Remove(ctx, pathtree.Filter{pathtree.FieldID: pathtree.In("a", "zz")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = s.Find(ctx, pathtree.Filter{`bad"name`: pathtree.Eq(1)}, nil)
	require.Error(t, err)
}

func mustFind(t *testing.T, s *Store, f pathtree.Filter) pathtree.Cursor {
	t.Helper()
	cur, err := s.Find(ctx, f, nil)
	require.NoError(t, err)
	return cur
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	var q query
	require.NoError(t, q.translate(pathtree.Filter{
		pathtree.FieldAncestry: pathtree.Under("a/b", "/"),
		"kind":                 pathtree.Eq("dir"),
	}))
	assert.Equal(t, " WHERE (ancestry = ? OR instr(ancestry, ?) = 1) AND json_extract(doc, ?) = ?", q.where())
	assert.Equal(t, []interface{}{"a/b", "a/b/", `$."kind"`, "dir"}, q.args)

	q = query{}
	require.NoError(t, q.translate(pathtree.Filter{pathtree.FieldAncestry: pathtree.HasSegment("12", "/")}))
	assert.Equal(t, " WHERE instr(? || ancestry || ?, ?) > 0", q.where())
	assert.Equal(t, []interface{}{"/", "/", "/12/"}, q.args)

	q = query{}
	require.Error(t, q.translate(pathtree.Filter{"kind": pathtree.Eq(map[string]interface{}{})}))
}
