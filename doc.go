/*
Package pathtree adds tree semantics to records kept in a document
collection, using materialized ancestry paths.  Every record stores
the id of its parent and an ancestry string, the ids of all its
ancestors from the forest root down to the parent, joined by a
separator (default "/").  Children, subtrees and ancestors are then a
single query each; no recursive lookups are needed.

The price is paid on writes.  When a node moves, every descendant's
ancestry has to be rewritten to carry the new prefix, and when a node
is removed its subtree is either deleted or spliced up to the removed
node's parent.  The Engine does that work, streaming the affected
records out of the store and rewriting them with a bounded number of
updates in flight.

Stores

Anything implementing Store can hold a tree: it needs lookup by id,
filtered and sorted cursors, single-record updates and bulk removal.
NewStore builds a Store out of a much simpler Persist blob interface
(NewInMemoryStore, persist/file, persist/s3).  Backends that can
evaluate filters themselves live in their own modules: store/mongo,
store/postgres and store/sqlite.  The pathtree command in cmd/pathtree
edits and prints a tree kept in a SQLite file.

Hooking into writes

The Engine implements Hooks: BeforeSave runs before a record is
inserted or written with a changed parent, BeforeRemove before it is
deleted.  Collection is a small host that wires a Store and Hooks
together; use it directly, or call the hooks from your own
persistence layer.

	store := pathtree.NewStore(pathtree.NewInMemoryStore(), nil)
	engine, err := pathtree.New(store, &pathtree.Options{OnDelete: pathtree.OnDeleteReparent})
	if err != nil {
		return err
	}
	nodes := pathtree.NewCollection(store, engine)
	err = nodes.Insert(ctx, &pathtree.Node{ID: "a"})
	err = nodes.Insert(ctx, &pathtree.Node{ID: "b", Parent: "a"})

Consistency

There are no transactions.  A save or removal that fails part way
through a bulk rewrite reports a *CascadeError and leaves the records
it already touched as they are; ancestry strings below the failed
node may be stale until the operation is retried.  Concurrent moves
of overlapping subtrees are not serialized and can leave ancestry
inconsistent; callers reorganizing trees in bulk should serialize
those operations.  Moving a node under one of its own descendants is
not detected.
*/
package pathtree
