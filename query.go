package pathtree

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ChildrenOptions narrows Children and Roots.
type ChildrenOptions struct {
	// Filter is combined with the engine's own constraint, which wins
	// on conflicting fields.
	Filter Filter
	// Fields projects the result; see FindOptions.
	Fields []string
	// Recursive returns every descendant instead of direct children.
	Recursive bool
	// SortBy names the field to sort by; empty means store order.
	SortBy string
}

// AncestorsOptions narrows Ancestors.
type AncestorsOptions struct {
	Filter Filter
	Fields []string
}

// Parent returns n's parent record, or nil for roots and dangling parents.
func (e *Engine) Parent(ctx context.Context, n *Node) (*Node, error) {
	if n.Parent == "" {
		return nil, nil
	}
	p, err := e.store.FindOne(ctx, n.Parent)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load parent %s: %w", n.Parent, err)
	}
	return p, nil
}

// Children returns n's direct children, or all its descendants when
// options.Recursive is set.
func (e *Engine) Children(ctx context.Context, n *Node, options *ChildrenOptions) ([]*Node, error) {
	if err := e.checkID(n.ID); err != nil {
		return nil, err
	}
	var o ChildrenOptions
	if options != nil {
		o = *options
	}
	own := Filter{FieldParent: Eq(n.ID)}
	if o.Recursive {
		own = Filter{FieldAncestry: Under(e.PathOf(n), e.paths.sep)}
	}
	return e.find(ctx, o.Filter.Merge(own), &FindOptions{Fields: o.Fields, SortBy: o.SortBy})
}

// Roots returns the records without a parent. Recursive is ignored.
func (e *Engine) Roots(ctx context.Context, options *ChildrenOptions) ([]*Node, error) {
	var o ChildrenOptions
	if options != nil {
		o = *options
	}
	own := Filter{FieldParent: Eq(nil)}
	return e.find(ctx, o.Filter.Merge(own), &FindOptions{Fields: o.Fields, SortBy: o.SortBy})
}

// Ancestors returns the records listed in n's ancestry, root first.
// Ancestors that no longer exist or fail the filter are left out.
func (e *Engine) Ancestors(ctx context.Context, n *Node, options *AncestorsOptions) ([]*Node, error) {
	ids := e.paths.segments(n.Ancestry)
	if len(ids) == 0 {
		return nil, nil
	}
	var o AncestorsOptions
	if options != nil {
		o = *options
	}
	rank := make(map[string]int, len(ids))
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		rank[id] = i
		values[i] = id
	}
	nodes, err := e.find(ctx, o.Filter.Merge(Filter{FieldID: In(values...)}), &FindOptions{Fields: o.Fields})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return rank[nodes[i].ID] < rank[nodes[j].ID]
	})
	return nodes, nil
}

func (e *Engine) find(ctx context.Context, filter Filter, options *FindOptions) ([]*Node, error) {
	cur, err := e.store.Find(ctx, filter, options)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	nodes, err := ReadAll(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return nodes, nil
}
