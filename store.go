package pathtree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"sort"
	"sync"
)

// Persist is the interface for loading and storing serialized records
// by name. NewStore turns one into a Store.
type Persist interface {
	// Store writes b under name, replacing what was there.
	Store(ctx context.Context, name string, b []byte) error
	// Load returns what is stored under name. A missing name gives an
	// error wrapping ErrNotFound or fs.ErrNotExist.
	Load(ctx context.Context, name string) ([]byte, error)
	// Delete removes name. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error
	// List calls f with every stored name, stopping at the first error.
	List(ctx context.Context, f func(name string) error) error
}

// StoreConfig controls how NewStore serializes records.
type StoreConfig struct {
	// Marshal function, defaults to JSON
	Marshal func(interface{}) ([]byte, error)

	// Unmarshal function, defaults to JSON
	Unmarshal func([]byte, interface{}) error
}

var (
	defaultUnmarshal = json.Unmarshal
	defaultMarshal   = json.Marshal
)

const lockStripes = 64

// persistentStore is a Store over a Persist, one blob per record, named
// by id. Filters, sorting and projection run in process, so every Find
// reads the whole collection.
type persistentStore struct {
	persist   Persist
	marshal   func(interface{}) ([]byte, error)
	unmarshal func([]byte, interface{}) error
	locks     [lockStripes]sync.Mutex
}

// NewStore returns a Store keeping each record as a blob in p. Updates
// of one record are serialized within this process only.
func NewStore(p Persist, config *StoreConfig) Store {
	s := persistentStore{
		persist:   p,
		marshal:   defaultMarshal,
		unmarshal: defaultUnmarshal,
	}
	if config != nil {
		if config.Marshal != nil {
			s.marshal = config.Marshal
		}
		if config.Unmarshal != nil {
			s.unmarshal = config.Unmarshal
		}
	}
	return &s
}

func (s *persistentStore) lock(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

func isMissing(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func (s *persistentStore) FindOne(ctx context.Context, id string) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	b, err := s.persist.Load(ctx, id)
	if isMissing(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("persist load %s: %w", id, err)
	}
	var n Node
	if err := s.unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", id, err)
	}
	return &n, nil
}

func (s *persistentStore) store(ctx context.Context, n *Node) error {
	b, err := s.marshal(n)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", n.ID, err)
	}
	if err := s.persist.Store(ctx, n.ID, b); err != nil {
		return fmt.Errorf("persist store %s: %w", n.ID, err)
	}
	return nil
}

func (s *persistentStore) Insert(ctx context.Context, n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	l := s.lock(n.ID)
	l.Lock()
	defer l.Unlock()
	_, err := s.persist.Load(ctx, n.ID)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
	}
	if !isMissing(err) {
		return fmt.Errorf("persist load %s: %w", n.ID, err)
	}
	return s.store(ctx, n)
}

func (s *persistentStore) Update(ctx context.Context, id string, set map[string]interface{}) error {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()
	n, err := s.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if err := n.Apply(set); err != nil {
		return err
	}
	return s.store(ctx, n)
}

func (s *persistentStore) matching(ctx context.Context, filter Filter) ([]*Node, error) {
	var nodes []*Node
	err := s.persist.List(ctx, func(name string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.FindOne(ctx, name)
		if errors.Is(err, ErrNotFound) {
			// removed since listing
			return nil
		}
		if err != nil {
			return err
		}
		if filter.Match(n) {
			nodes = append(nodes, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist list: %w", err)
	}
	return nodes, nil
}

func (s *persistentStore) Find(ctx context.Context, filter Filter, options *FindOptions) (Cursor, error) {
	nodes, err := s.matching(ctx, filter)
	if err != nil {
		return nil, err
	}
	if options == nil {
		return NewSliceCursor(nodes), nil
	}
	if options.SortBy != "" {
		SortNodes(nodes, options.SortBy)
	}
	if len(options.Fields) > 0 {
		for i, n := range nodes {
			nodes[i] = n.Project(options.Fields)
		}
	}
	return NewSliceCursor(nodes), nil
}

func (s *persistentStore) Remove(ctx context.Context, filter Filter) (int64, error) {
	nodes, err := s.matching(ctx, filter)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, n := range nodes {
		if err := s.persist.Delete(ctx, n.ID); err != nil {
			return removed, fmt.Errorf("persist delete %s: %w", n.ID, err)
		}
		removed++
	}
	return removed, nil
}

// SortNodes sorts nodes ascending by a field. Records without the field
// come first; strings sort before numbers, numbers before anything else.
func SortNodes(nodes []*Node, field string) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, aok := nodes[i].Get(field)
		b, bok := nodes[j].Get(field)
		if !aok || !bok {
			return !aok && bok
		}
		return compareValues(a, b) < 0
	})
}

func compareValues(a, b interface{}) int {
	as, aIsString := a.(string)
	bs, bIsString := b.(string)
	switch {
	case aIsString && bIsString:
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	case aIsString:
		return -1
	case bIsString:
		return 1
	}
	x, aIsNumber := toFloat(a)
	y, bIsNumber := toFloat(b)
	switch {
	case aIsNumber && bIsNumber:
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case aIsNumber:
		return -1
	case bIsNumber:
		return 1
	}
	fa, fb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

type sliceCursor struct {
	nodes []*Node
	next  int
	err   error
}

// NewSliceCursor returns a Cursor over nodes already in memory.
func NewSliceCursor(nodes []*Node) Cursor {
	return &sliceCursor{nodes: nodes}
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.next >= len(c.nodes) {
		return false
	}
	c.next++
	return true
}

func (c *sliceCursor) Decode(n *Node) error {
	if c.next == 0 || c.next > len(c.nodes) {
		return errors.New("cursor is not positioned on a record")
	}
	*n = *c.nodes[c.next-1].Clone()
	return nil
}

func (c *sliceCursor) Err() error {
	return c.err
}

func (c *sliceCursor) Close(ctx context.Context) error {
	c.nodes = nil
	return nil
}

// ReadAll drains and closes cur.
func ReadAll(ctx context.Context, cur Cursor) ([]*Node, error) {
	defer cur.Close(ctx)
	var nodes []*Node
	for cur.Next(ctx) {
		var n Node
		if err := cur.Decode(&n); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		nodes = append(nodes, &n)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}
