package pathtree

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultGopterParameters = gopter.DefaultTestParameters()

var slash = paths{sep: "/"}

func TestPathOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a", slash.pathOf("", "a"))
	assert.Equal(t, "a/b/c", slash.pathOf("a/b", "c"))
	assert.Equal(t, "a:b", paths{sep: ":"}.pathOf("a", "b"))
	assert.Panics(t, func() { slash.pathOf("a", "") })
}

func TestLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, slash.level(""))
	assert.Equal(t, 1, slash.level("a"))
	assert.Equal(t, 3, slash.level("a/b/c"))
	assert.Equal(t, 2, Level("a:b", ":"))
	assert.Equal(t, 1, Level("a/b", ":"))
}

func TestUnder(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		ancestry, path string
		want           bool
	}{
		{"a", "a", true},
		{"a/b", "a", true},
		{"a/b/c", "a/b", true},
		{"", "a", false},
		{"ab", "a", false},
		{"a", "a/b", false},
		{"12", "1", false},
		{"12/3", "1", false},
		{"1/23", "1/2", false},
		{"x/a", "a", false},
	} {
		assert.Equal(t, tc.want, slash.under(tc.ancestry, tc.path), "%q under %q", tc.ancestry, tc.path)
	}
}

func TestHasSegment(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		ancestry, id string
		want         bool
	}{
		{"12", "12", true},
		{"a/12/b", "12", true},
		{"a/12", "12", true},
		{"12/b", "12", true},
		{"123", "12", false},
		{"a/123/b", "12", false},
		{"a/112", "12", false},
		{"", "12", false},
		{"a", "", false},
	} {
		assert.Equal(t, tc.want, slash.hasSegment(tc.ancestry, tc.id), "%q has %q", tc.ancestry, tc.id)
	}
}

func TestDropSegment(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		ancestry, id, want string
	}{
		{"n", "n", ""},
		{"n/c", "n", "c"},
		{"r/n", "n", "r"},
		{"r/n/c/g", "n", "r/c/g"},
		{"r/nn/n", "n", "r/nn"},
		{"nn/n/c", "n", "nn/c"},
		{"r/s", "n", "r/s"},
	} {
		assert.Equal(t, tc.want, slash.dropSegment(tc.ancestry, tc.id), "drop %q from %q", tc.id, tc.ancestry)
	}
}

func TestSplice(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "x/b", slash.splice("a/b", "a/b", "x/b"))
	assert.Equal(t, "x/b/c", slash.splice("a/b/c", "a/b", "x/b"))
	assert.Equal(t, "b/c", slash.splice("a/b/c", "a/b", "b"))
}

func TestCompare(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, slash.compare("a/b", "a/b"))
	assert.Equal(t, -1, slash.compare("a", "a/b"))
	assert.Equal(t, 1, slash.compare("a/b", "a"))
	assert.Equal(t, -1, slash.compare("a/b", "a-x"))
	assert.Equal(t, -1, slash.compare("a/z", "b"))
}

func TestSortByPath(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, nil)
	nodes := []*Node{
		{ID: "a-x", Ancestry: ""},
		{ID: "c", Ancestry: "a/b"},
		{ID: "a"},
		{ID: "d", Ancestry: "a-x"},
		{ID: "b", Ancestry: "a"},
	}
	e.SortByPath(nodes)
	assert.Equal(t, []string{"a", "b", "c", "a-x", "d"}, ids(nodes))
}

func genSegments() gopter.Gen {
	return gen.SliceOf(gen.Identifier()).SuchThat(func(s []string) bool {
		seen := map[string]bool{}
		for _, id := range s {
			if seen[id] {
				return false
			}
			seen[id] = true
		}
		return true
	})
}

func TestPathProperties(t *testing.T) {
	t.Parallel()
	properties := gopter.NewProperties(defaultGopterParameters)

	properties.Property("level counts segments", prop.ForAll(
		func(segments []string) bool {
			return slash.level(strings.Join(segments, "/")) == len(segments)
		},
		genSegments()))

	properties.Property("descendant paths are under their ancestors", prop.ForAll(
		func(segments []string) bool {
			for i := 1; i <= len(segments); i++ {
				prefix := strings.Join(segments[:i], "/")
				if !slash.under(strings.Join(segments, "/"), prefix) {
					return false
				}
			}
			return true
		},
		genSegments().SuchThat(func(s []string) bool { return len(s) > 0 })))

	properties.Property("dropping a segment removes exactly that segment", prop.ForAll(
		func(segments []string, i int) bool {
			if len(segments) == 0 {
				return true
			}
			i %= len(segments)
			ancestry := strings.Join(segments, "/")
			var want []string
			want = append(want, segments[:i]...)
			want = append(want, segments[i+1:]...)
			return slash.dropSegment(ancestry, segments[i]) == strings.Join(want, "/") &&
				!slash.hasSegment(slash.dropSegment(ancestry, segments[i]), segments[i])
		},
		genSegments(), gen.IntRange(0, 1000)))

	properties.TestingRun(t)
}

func TestPathOfEngine(t *testing.T) {
	t.Parallel()
	e, err := New(NewStore(NewInMemoryStore(), nil), &Options{AncestrySeparator: "."})
	require.NoError(t, err)
	n := &Node{ID: "c", Ancestry: "a.b"}
	assert.Equal(t, "a.b.c", e.PathOf(n))
	assert.Equal(t, 2, e.Level(n))
}
