package pathtree

import (
	"context"
	"encoding/json"
)

// TreeOptions shapes ChildrenTree and Assemble.
type TreeOptions struct {
	// Filter is combined with the engine's own constraint.
	Filter Filter
	// Fields projects the records unless the engine wraps trees. The
	// parent and ancestry are always loaded.
	Fields []string
	// MinLevel is the depth that becomes the top of the result, roots
	// being at depth 1. Values below 1 mean 1; with a root node it is
	// raised to one below the root.
	MinLevel int
	// OmitEmptyChildren leaves Children nil on leaves instead of empty.
	OmitEmptyChildren bool
	// DirectOnly loads only the root's direct children, or the forest
	// roots when there is no root node.
	DirectOnly bool
}

// TreeNode is a record with its nested children.
type TreeNode struct {
	*Node
	Children []*TreeNode
}

// MarshalJSON encodes t as its record's document with a "children" array.
func (t *TreeNode) MarshalJSON() ([]byte, error) {
	doc := t.Node.Document()
	if t.Children != nil {
		doc["children"] = t.Children
	}
	return json.Marshal(doc)
}

// ChildrenTree loads the subtree below root, or the whole forest when
// root is nil, and nests it.
func (e *Engine) ChildrenTree(ctx context.Context, root *Node, options *TreeOptions) ([]*TreeNode, error) {
	var o TreeOptions
	if options != nil {
		o = *options
	}
	if root != nil {
		if err := e.checkID(root.ID); err != nil {
			return nil, err
		}
	}
	own := Filter{}
	switch {
	case o.DirectOnly && root != nil:
		own[FieldParent] = Eq(root.ID)
	case o.DirectOnly:
		own[FieldParent] = Eq(nil)
	case root != nil:
		own[FieldAncestry] = Under(e.PathOf(root), e.paths.sep)
	}
	var fields []string
	if !e.wrap && len(o.Fields) > 0 {
		fields = append(fields, o.Fields...)
		fields = append(fields, FieldParent, FieldAncestry)
	}
	nodes, err := e.find(ctx, o.Filter.Merge(own), &FindOptions{Fields: fields, SortBy: FieldAncestry})
	if err != nil {
		return nil, err
	}
	e.SortByPath(nodes)
	return e.Assemble(nodes, root, &o), nil
}

// Assemble nests nodes, which must be sorted with SortByPath, into a
// forest. A node is placed under the closest preceding node one level
// up when that node is its parent; otherwise, and when it sits above
// the top level, it is dropped along with its descendants. Filter and
// Fields in options are ignored.
func (e *Engine) Assemble(nodes []*Node, root *Node, options *TreeOptions) []*TreeNode {
	var o TreeOptions
	if options != nil {
		o = *options
	}
	minLevel := o.MinLevel
	if minLevel < 1 {
		minLevel = 1
	}
	if root != nil {
		if l := e.paths.depth(root) + 1; minLevel < l {
			minLevel = l
		}
	}

	arena := make([]TreeNode, len(nodes))
	var forest []*TreeNode
	// last[d] indexes the most recently placed node at relative depth d
	var last []int
	for i, n := range nodes {
		rel := e.paths.depth(n) - minLevel
		if rel < 0 || rel > len(last) {
			continue
		}
		t := &arena[i]
		t.Node = n
		if !o.OmitEmptyChildren {
			t.Children = []*TreeNode{}
		}
		if rel == 0 {
			forest = append(forest, t)
		} else {
			p := &arena[last[rel-1]]
			if p.ID != n.Parent {
				continue
			}
			p.Children = append(p.Children, t)
		}
		last = append(last[:rel], i)
	}
	return forest
}
