package pathtree

import (
	"encoding/json"
	"fmt"
)

// Get returns the value of a field, structural or not. Empty parent and
// ancestry strings are reported as absent.
func (n *Node) Get(field string) (interface{}, bool) {
	switch field {
	case FieldID:
		return n.ID, n.ID != ""
	case FieldParent:
		return n.Parent, n.Parent != ""
	case FieldAncestry:
		return n.Ancestry, n.Ancestry != ""
	}
	v, ok := n.Fields[field]
	return v, ok
}

// Apply sets fields on n as Store.Update would. The id cannot be changed.
func (n *Node) Apply(set map[string]interface{}) error {
	for field, v := range set {
		switch field {
		case FieldID:
			if id, _ := v.(string); id != n.ID {
				return fmt.Errorf("%w: cannot change id %q to %v", ErrInvalidID, n.ID, v)
			}
		case FieldParent:
			s, err := stringOrNil(field, v)
			if err != nil {
				return err
			}
			n.Parent = s
		case FieldAncestry:
			s, err := stringOrNil(field, v)
			if err != nil {
				return err
			}
			n.Ancestry = s
		default:
			if n.Fields == nil {
				n.Fields = make(map[string]interface{}, len(set))
			}
			n.Fields[field] = v
		}
	}
	return nil
}

// Clone returns a copy of n. Field values are shared.
func (n *Node) Clone() *Node {
	c := *n
	if n.Fields != nil {
		c.Fields = make(map[string]interface{}, len(n.Fields))
		for k, v := range n.Fields {
			c.Fields[k] = v
		}
	}
	return &c
}

// Project returns a copy of n holding only the named fields. The id,
// parent and ancestry are always kept. No fields means all of them.
func (n *Node) Project(fields []string) *Node {
	if len(fields) == 0 {
		return n.Clone()
	}
	c := Node{ID: n.ID, Parent: n.Parent, Ancestry: n.Ancestry}
	for _, f := range fields {
		if v, ok := n.Fields[f]; ok {
			if c.Fields == nil {
				c.Fields = make(map[string]interface{}, len(fields))
			}
			c.Fields[f] = v
		}
	}
	return &c
}

// Document flattens n into a single map, with a nil parent for roots.
func (n *Node) Document() map[string]interface{} {
	doc := make(map[string]interface{}, len(n.Fields)+3)
	for k, v := range n.Fields {
		doc[k] = v
	}
	doc[FieldID] = n.ID
	if n.Parent == "" {
		doc[FieldParent] = nil
	} else {
		doc[FieldParent] = n.Parent
	}
	doc[FieldAncestry] = n.Ancestry
	return doc
}

// NodeFromDocument is the inverse of Node.Document.
func NodeFromDocument(doc map[string]interface{}) (*Node, error) {
	var n Node
	id, ok := doc[FieldID].(string)
	if !ok {
		return nil, fmt.Errorf("%w: document id is %T", ErrInvalidID, doc[FieldID])
	}
	n.ID = id
	var err error
	if n.Parent, err = stringOrNil(FieldParent, doc[FieldParent]); err != nil {
		return nil, err
	}
	if n.Ancestry, err = stringOrNil(FieldAncestry, doc[FieldAncestry]); err != nil {
		return nil, err
	}
	for k, v := range doc {
		switch k {
		case FieldID, FieldParent, FieldAncestry:
			continue
		}
		if n.Fields == nil {
			n.Fields = make(map[string]interface{}, len(doc))
		}
		n.Fields[k] = v
	}
	return &n, nil
}

func stringOrNil(field string, v interface{}) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	}
	return "", fmt.Errorf("%s must be a string, not %T", field, v)
}

// MarshalJSON encodes n as its flat document.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Document())
}

// UnmarshalJSON decodes a flat document.
func (n *Node) UnmarshalJSON(b []byte) error {
	var doc map[string]interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	decoded, err := NodeFromDocument(doc)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}
