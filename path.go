package pathtree

import (
	"sort"
	"strings"
)

// paths manipulates ancestry strings for one separator.
type paths struct {
	sep string
}

// pathOf returns the ancestry a child of the node (ancestry, id) carries.
func (p paths) pathOf(ancestry, id string) string {
	if id == "" {
		panic("pathtree: path of a node without an id")
	}
	if ancestry == "" {
		return id
	}
	return ancestry + p.sep + id
}

func (p paths) level(ancestry string) int {
	if ancestry == "" {
		return 0
	}
	return strings.Count(ancestry, p.sep) + 1
}

// depth is the 1-based depth used when assembling trees.
func (p paths) depth(n *Node) int {
	return p.level(n.Ancestry) + 1
}

func (p paths) segments(ancestry string) []string {
	if ancestry == "" {
		return nil
	}
	return strings.Split(ancestry, p.sep)
}

// under reports whether ancestry belongs to a descendant of the node
// whose path is path: the direct children carry path itself, deeper
// nodes carry it followed by a separator.
func (p paths) under(ancestry, path string) bool {
	if len(ancestry) == len(path) {
		return ancestry == path
	}
	return len(ancestry) > len(path) &&
		strings.HasPrefix(ancestry, path) &&
		ancestry[len(path):len(path)+len(p.sep)] == p.sep
}

// hasSegment reports whether id is one of the whole segments of ancestry.
func (p paths) hasSegment(ancestry, id string) bool {
	if ancestry == "" || id == "" {
		return false
	}
	return strings.Contains(p.sep+ancestry+p.sep, p.sep+id+p.sep)
}

// splice replaces the from prefix of ancestry with to. ancestry must be
// under from.
func (p paths) splice(ancestry, from, to string) string {
	return to + ancestry[len(from):]
}

// dropSegment removes the first whole-segment occurrence of id.
func (p paths) dropSegment(ancestry, id string) string {
	switch {
	case ancestry == id:
		return ""
	case strings.HasPrefix(ancestry, id+p.sep):
		return ancestry[len(id)+len(p.sep):]
	}
	if i := strings.Index(ancestry, p.sep+id+p.sep); i >= 0 {
		return ancestry[:i] + ancestry[i+len(p.sep)+len(id):]
	}
	if strings.HasSuffix(ancestry, p.sep+id) {
		return ancestry[:len(ancestry)-len(p.sep)-len(id)]
	}
	return ancestry
}

// compare orders paths segment by segment, so that every path sorts
// directly before its descendants.
func (p paths) compare(a, b string) int {
	for {
		as, arest, amore := strings.Cut(a, p.sep)
		bs, brest, bmore := strings.Cut(b, p.sep)
		if c := strings.Compare(as, bs); c != 0 {
			return c
		}
		switch {
		case !amore && !bmore:
			return 0
		case !amore:
			return -1
		case !bmore:
			return 1
		}
		a, b = arest, brest
	}
}

type byPath struct {
	nodes []*Node
	keys  []string
	p     paths
}

func (s byPath) Len() int           { return len(s.nodes) }
func (s byPath) Less(i, j int) bool { return s.p.compare(s.keys[i], s.keys[j]) < 0 }
func (s byPath) Swap(i, j int) {
	s.nodes[i], s.nodes[j] = s.nodes[j], s.nodes[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}

// SortByPath orders nodes depth-first: each node comes directly before
// its descendants, siblings by id.
func (e *Engine) SortByPath(nodes []*Node) {
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = e.paths.pathOf(n.Ancestry, n.ID)
	}
	sort.Stable(byPath{nodes: nodes, keys: keys, p: e.paths})
}
