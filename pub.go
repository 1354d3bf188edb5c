package pathtree

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// DefaultSeparator joins ancestor ids in an ancestry string.
	DefaultSeparator = "/"
	// DefaultNumWorkers is how many record updates a bulk rewrite keeps in flight.
	DefaultNumWorkers = 5
)

// Names of the fields the engine reads and writes. Stores map them to
// their native names.
const (
	FieldID       = "id"
	FieldParent   = "parent"
	FieldAncestry = "ancestry"
)

var (
	// ErrNotFound is returned by a Store when no record has the requested id.
	ErrNotFound = errors.New("not found")
	// ErrParentNotFound aborts a save whose parent id does not resolve.
	ErrParentNotFound = errors.New("parent not found")
	// ErrDuplicateID is returned by Store.Insert when the id is taken.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrInvalidID rejects empty ids and ids containing the separator.
	ErrInvalidID = errors.New("invalid id")
	// ErrConfiguration is returned by New for unusable Options.
	ErrConfiguration = errors.New("invalid configuration")
)

// OnDelete selects what happens to the descendants of a removed node.
type OnDelete string

const (
	// OnDeleteDelete removes the whole subtree along with the node.
	OnDeleteDelete OnDelete = "DELETE"
	// OnDeleteReparent hands the node's children to the node's parent.
	OnDeleteReparent OnDelete = "REPARENT"
)

// Node is a record that takes part in a tree.
type Node struct {
	// ID is assigned once and never changes. It must not contain the separator.
	ID string
	// Parent is the id of the parent record, or empty for a root.
	Parent string
	// Ancestry lists the ids from the forest root down to the parent,
	// joined by the separator. It is empty for roots and is maintained by
	// the Engine; values set by callers are ignored.
	Ancestry string
	// Fields holds the rest of the document.
	Fields map[string]interface{}
}

// SetParent points n at p, or makes n a root if p is nil.
func (n *Node) SetParent(p *Node) {
	if p == nil {
		n.Parent = ""
		return
	}
	n.Parent = p.ID
}

// Change describes the write a host is about to apply to a node.
type Change struct {
	// Created is set when the node has never been stored.
	Created bool
	// ParentChanged is set when Parent differs from the stored value.
	ParentChanged bool
}

// Hooks is called by a host's persistence layer around writes. Each
// call must return before the write it guards is applied.
type Hooks interface {
	// BeforeSave runs before n is inserted, or written with a changed parent.
	BeforeSave(ctx context.Context, n *Node, change Change) error
	// BeforeRemove runs before n is deleted. n must carry its stored
	// parent and ancestry.
	BeforeRemove(ctx context.Context, n *Node) error
}

// FindOptions shapes the result of Store.Find.
type FindOptions struct {
	// Fields, when non-empty, limits Node.Fields to the named fields. The
	// id, parent and ancestry are always returned.
	Fields []string
	// SortBy names a field to sort ascending by. Empty means store order.
	SortBy string
}

// Store is the document collection a tree lives in.
type Store interface {
	// FindOne returns the record with the given id, or an error wrapping ErrNotFound.
	FindOne(ctx context.Context, id string) (*Node, error)
	// Find returns a cursor over the records matching every clause of the filter.
	Find(ctx context.Context, filter Filter, options *FindOptions) (Cursor, error)
	// Insert adds a new record, failing with ErrDuplicateID if the id is taken.
	Insert(ctx context.Context, n *Node) error
	// Update sets the given fields on one record. A parent of "" makes it a root.
	Update(ctx context.Context, id string, set map[string]interface{}) error
	// Remove deletes every record matching the filter and reports how many went.
	Remove(ctx context.Context, filter Filter) (int64, error)
}

// Cursor iterates lazily over the result of Store.Find. Cursors are not
// safe for concurrent use.
type Cursor interface {
	// Next advances to the next record, returning false at the end or on error.
	Next(ctx context.Context) bool
	// Decode copies the current record into n.
	Decode(n *Node) error
	// Err reports the error that stopped iteration, if any.
	Err() error
	// Close releases the cursor.
	Close(ctx context.Context) error
}

// Options configures an Engine. The zero value gives the defaults.
type Options struct {
	// AncestrySeparator is a single character; "" means DefaultSeparator.
	AncestrySeparator string `yaml:"ancestrySeparator"`

	// OnDelete policy; "" means OnDeleteDelete.
	OnDelete OnDelete `yaml:"onDelete"`

	// NumWorkers bounds concurrent updates during bulk rewrites; 0 means DefaultNumWorkers.
	NumWorkers int `yaml:"numWorkers"`

	// WrapChildrenTree makes ChildrenTree load complete records, ignoring
	// TreeOptions.Fields, so that tree nodes can be saved back safely.
	WrapChildrenTree bool `yaml:"wrapChildrenTree"`

	// NodeCache caches parent records looked up on save. It must not be
	// shared between engines on different stores.
	NodeCache NodeCache `yaml:"-"`

	// Logger receives debug and warning events; nil discards them.
	Logger *zerolog.Logger `yaml:"-"`
}

// Engine maintains ancestry for the records of one Store and answers
// tree queries over them.
type Engine struct {
	store    Store
	paths    paths
	onDelete OnDelete
	workers  int
	wrap     bool
	cache    NodeCache
	log      zerolog.Logger
}

var _ Hooks = (*Engine)(nil)

// New returns an Engine for the given store. Unusable options are
// reported as ErrConfiguration.
func New(store Store, options *Options) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrConfiguration)
	}
	e := Engine{
		store:    store,
		paths:    paths{sep: DefaultSeparator},
		onDelete: OnDeleteDelete,
		workers:  DefaultNumWorkers,
		log:      zerolog.Nop(),
	}
	if options == nil {
		return &e, nil
	}
	if options.AncestrySeparator != "" {
		if len(options.AncestrySeparator) != 1 {
			return nil, fmt.Errorf("%w: ancestry separator %q is not a single character",
				ErrConfiguration, options.AncestrySeparator)
		}
		e.paths.sep = options.AncestrySeparator
	}
	switch options.OnDelete {
	case "":
	case OnDeleteDelete, OnDeleteReparent:
		e.onDelete = options.OnDelete
	default:
		return nil, fmt.Errorf("%w: unknown onDelete %q", ErrConfiguration, options.OnDelete)
	}
	if options.NumWorkers < 0 {
		return nil, fmt.Errorf("%w: numWorkers %d", ErrConfiguration, options.NumWorkers)
	}
	if options.NumWorkers > 0 {
		e.workers = options.NumWorkers
	}
	e.wrap = options.WrapChildrenTree
	e.cache = options.NodeCache
	if options.Logger != nil {
		e.log = *options.Logger
	}
	return &e, nil
}

// Separator returns the character joining ids in ancestry strings.
func (e *Engine) Separator() string {
	return e.paths.sep
}

// Level returns the number of ancestors of n; 0 for a root.
func (e *Engine) Level(n *Node) int {
	return e.paths.level(n.Ancestry)
}

// PathOf returns n's ancestry extended by n's own id, which is the
// ancestry its children carry.
func (e *Engine) PathOf(n *Node) string {
	return e.paths.pathOf(n.Ancestry, n.ID)
}

// Level returns the number of sep-delimited segments in ancestry.
func Level(ancestry, sep string) int {
	return paths{sep: sep}.level(ancestry)
}

func (e *Engine) checkID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.Contains(id, e.paths.sep) {
		return fmt.Errorf("%w: %q contains separator %q", ErrInvalidID, id, e.paths.sep)
	}
	return nil
}
