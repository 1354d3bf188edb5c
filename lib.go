package pathtree

import (
	"context"
	"errors"
	"fmt"
)

// CascadeError reports a bulk rewrite that stopped part way. Records
// already rewritten stay rewritten.
type CascadeError struct {
	// Stage names the rewrite that failed.
	Stage string
	// Applied counts the records rewritten before the failure.
	Applied int
	Err     error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("%s: stopped after %d records: %v", e.Stage, e.Applied, e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}

// BeforeSave computes n.Ancestry from n's parent. For an existing node
// whose path changes, every descendant's ancestry is rewritten to the
// new prefix before it returns. n.Ancestry must hold the stored value
// when change.Created is false.
func (e *Engine) BeforeSave(ctx context.Context, n *Node, change Change) error {
	if err := e.checkID(n.ID); err != nil {
		return err
	}
	if !change.Created && !change.ParentChanged {
		return nil
	}
	e.forget(n.ID)

	var oldPath string
	if !change.Created {
		oldPath = e.paths.pathOf(n.Ancestry, n.ID)
	}
	if n.Parent == "" {
		n.Ancestry = ""
	} else {
		parent, err := e.load(ctx, n.Parent)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s: %w", ErrParentNotFound, n.Parent, err)
		}
		if err != nil {
			return fmt.Errorf("load parent %s: %w", n.Parent, err)
		}
		n.Ancestry = e.paths.pathOf(parent.Ancestry, parent.ID)
	}
	if change.Created {
		return nil
	}
	newPath := e.paths.pathOf(n.Ancestry, n.ID)
	if newPath == oldPath {
		return nil
	}
	return e.moveDescendants(ctx, oldPath, newPath)
}

// BeforeRemove applies the OnDelete policy to n's descendants. n must
// carry its stored parent and ancestry.
func (e *Engine) BeforeRemove(ctx context.Context, n *Node) error {
	if err := e.checkID(n.ID); err != nil {
		return err
	}
	e.forget(n.ID)
	if e.onDelete == OnDeleteReparent {
		return e.reparentChildren(ctx, n)
	}

	path := e.paths.pathOf(n.Ancestry, n.ID)
	removed, err := e.store.Remove(ctx, Filter{FieldAncestry: Under(path, e.paths.sep)})
	if e.cache != nil && (removed > 0 || err != nil) {
		e.cache.Purge()
	}
	if err != nil {
		return fmt.Errorf("remove descendants of %s: %w", n.ID, err)
	}
	e.log.Debug().Str("id", n.ID).Int64("descendants", removed).Msg("removed subtree")
	return nil
}

func (e *Engine) load(ctx context.Context, id string) (*Node, error) {
	if e.cache != nil {
		if n, ok := e.cache.Get(id); ok {
			return n.(*Node), nil
		}
	}
	n, err := e.store.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Add(id, n.Clone())
	}
	return n, nil
}

func (e *Engine) moveDescendants(ctx context.Context, oldPath, newPath string) error {
	cur, err := e.store.Find(ctx,
		Filter{FieldAncestry: Under(oldPath, e.paths.sep)},
		&FindOptions{Fields: []string{FieldAncestry}})
	if err != nil {
		return fmt.Errorf("find descendants of %s: %w", oldPath, err)
	}
	moved, err := rewrite(ctx, cur, e.workers, func(ctx context.Context, d *Node) error {
		e.forget(d.ID)
		return e.store.Update(ctx, d.ID, map[string]interface{}{
			FieldAncestry: e.paths.splice(d.Ancestry, oldPath, newPath),
		})
	})
	if err != nil {
		return e.cascadeFailed("move descendants of "+oldPath, moved, err)
	}
	e.log.Debug().Str("from", oldPath).Str("to", newPath).Int("descendants", moved).Msg("moved subtree")
	return nil
}

// reparentChildren hands n's children to n's parent, then drops n's id
// from the ancestry of everything below it.
func (e *Engine) reparentChildren(ctx context.Context, n *Node) error {
	cur, err := e.store.Find(ctx,
		Filter{FieldParent: Eq(n.ID)},
		&FindOptions{Fields: []string{FieldParent}})
	if err != nil {
		return fmt.Errorf("find children of %s: %w", n.ID, err)
	}
	reparented, err := rewrite(ctx, cur, e.workers, func(ctx context.Context, c *Node) error {
		e.forget(c.ID)
		return e.store.Update(ctx, c.ID, map[string]interface{}{FieldParent: n.Parent})
	})
	if err != nil {
		return e.cascadeFailed("reparent children of "+n.ID, reparented, err)
	}

	cur, err = e.store.Find(ctx,
		Filter{FieldAncestry: HasSegment(n.ID, e.paths.sep)},
		&FindOptions{Fields: []string{FieldAncestry}})
	if err != nil {
		return fmt.Errorf("find descendants of %s: %w", n.ID, err)
	}
	spliced, err := rewrite(ctx, cur, e.workers, func(ctx context.Context, d *Node) error {
		e.forget(d.ID)
		return e.store.Update(ctx, d.ID, map[string]interface{}{
			FieldAncestry: e.paths.dropSegment(d.Ancestry, n.ID),
		})
	})
	if err != nil {
		return e.cascadeFailed("splice ancestry below "+n.ID, spliced, err)
	}
	e.log.Debug().Str("id", n.ID).Str("parent", n.Parent).
		Int("children", reparented).Int("descendants", spliced).Msg("reparented subtree")
	return nil
}

func (e *Engine) cascadeFailed(stage string, applied int, err error) error {
	e.log.Warn().Err(err).Str("stage", stage).Int("applied", applied).Msg("cascade stopped")
	return &CascadeError{Stage: stage, Applied: applied, Err: err}
}
