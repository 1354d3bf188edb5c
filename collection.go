package pathtree

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Collection writes records to a Store, calling Hooks before each write.
type Collection struct {
	store Store
	hooks Hooks
	newID func() string
}

// NewCollection returns a Collection over store. Records inserted
// without an id get a random UUID.
func NewCollection(store Store, hooks Hooks) *Collection {
	return &Collection{store: store, hooks: hooks, newID: uuid.NewString}
}

// Get loads one record.
func (c *Collection) Get(ctx context.Context, id string) (*Node, error) {
	return c.store.FindOne(ctx, id)
}

// Insert stores a new record. n.ID is filled in if empty and
// n.Ancestry is computed from n.Parent.
func (c *Collection) Insert(ctx context.Context, n *Node) error {
	if n.ID == "" {
		n.ID = c.newID()
	}
	n.Ancestry = ""
	if err := c.hooks.BeforeSave(ctx, n, Change{Created: true}); err != nil {
		return fmt.Errorf("insert %s: %w", n.ID, err)
	}
	if err := c.store.Insert(ctx, n); err != nil {
		return fmt.Errorf("insert %s: %w", n.ID, err)
	}
	return nil
}

// Save writes n, inserting it if it is not stored yet. When n.Parent
// differs from the stored parent the node and its subtree are moved.
func (c *Collection) Save(ctx context.Context, n *Node) error {
	if n.ID == "" {
		return c.Insert(ctx, n)
	}
	stored, err := c.store.FindOne(ctx, n.ID)
	if errors.Is(err, ErrNotFound) {
		return c.Insert(ctx, n)
	}
	if err != nil {
		return fmt.Errorf("save %s: %w", n.ID, err)
	}
	n.Ancestry = stored.Ancestry
	change := Change{ParentChanged: n.Parent != stored.Parent}
	if err := c.hooks.BeforeSave(ctx, n, change); err != nil {
		return fmt.Errorf("save %s: %w", n.ID, err)
	}
	set := make(map[string]interface{}, len(n.Fields)+2)
	for k, v := range n.Fields {
		set[k] = v
	}
	set[FieldParent] = n.Parent
	set[FieldAncestry] = n.Ancestry
	if err := c.store.Update(ctx, n.ID, set); err != nil {
		return fmt.Errorf("save %s: %w", n.ID, err)
	}
	return nil
}

// Move gives the record with the given id a new parent; "" makes it a root.
func (c *Collection) Move(ctx context.Context, id, parent string) (*Node, error) {
	n, err := c.store.FindOne(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("move %s: %w", id, err)
	}
	n.Parent = parent
	if err := c.Save(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Remove deletes the record with the given id after the hooks have
// dealt with its descendants.
func (c *Collection) Remove(ctx context.Context, id string) error {
	n, err := c.store.FindOne(ctx, id)
	if err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	if err := c.hooks.BeforeRemove(ctx, n); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	if _, err := c.store.Remove(ctx, Filter{FieldID: Eq(id)}); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}
