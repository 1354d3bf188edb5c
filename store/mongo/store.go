// Package mongo keeps pathtree records in a MongoDB collection. Record
// ids are stored as _id; roots have a null parent.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/fcruxen/pathtree"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const idKey = "_id"

// Store implements pathtree.Store over one collection.
type Store struct {
	coll *mongo.Collection
}

var _ pathtree.Store = (*Store)(nil)

// NewStore returns a Store over coll.
func NewStore(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the parent and ancestry indexes the engine's
// queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: pathtree.FieldParent, Value: 1}}},
		{Keys: bson.D{{Key: pathtree.FieldAncestry, Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func key(field string) string {
	if field == pathtree.FieldID {
		return idKey
	}
	return field
}

// isTreeField reports whether field is kept as a string that is "" on roots.
func isTreeField(field string) bool {
	return field == pathtree.FieldID || field == pathtree.FieldParent || field == pathtree.FieldAncestry
}

// Translate turns a filter into a query document.
func Translate(f pathtree.Filter) (bson.M, error) {
	q := bson.M{}
	for field, c := range f {
		k := key(field)
		switch c.Op {
		case pathtree.OpEq:
			switch {
			case c.Value == "", c.Value == nil && isTreeField(field):
				q[k] = bson.M{"$in": bson.A{nil, ""}}
			default:
				q[k] = c.Value
			}
		case pathtree.OpIn:
			q[k] = bson.M{"$in": c.Values}
		case pathtree.OpUnder, pathtree.OpHasSegment:
			operand, ok := c.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%s on %s needs a string, not %T", c.Op, field, c.Value)
			}
			sep := regexp.QuoteMeta(c.Sep)
			pattern := "^" + regexp.QuoteMeta(operand) + "(?:" + sep + "|$)"
			if c.Op == pathtree.OpHasSegment {
				pattern = "(?:^|" + sep + ")" + regexp.QuoteMeta(operand) + "(?:" + sep + "|$)"
			}
			q[k] = bson.Regex{Pattern: pattern}
		default:
			return nil, fmt.Errorf("unsupported filter op %s on %s", c.Op, field)
		}
	}
	return q, nil
}

func toDocument(n *pathtree.Node) bson.M {
	doc := bson.M(n.Document())
	doc[idKey] = n.ID
	delete(doc, pathtree.FieldID)
	return doc
}

func fromDocument(doc bson.M) (*pathtree.Node, error) {
	m := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		m[k] = v
	}
	m[pathtree.FieldID] = doc[idKey]
	delete(m, idKey)
	return pathtree.NodeFromDocument(m)
}

func (s *Store) FindOne(ctx context.Context, id string) (*pathtree.Node, error) {
	var doc bson.M
	err := s.coll.FindOne(ctx, bson.M{idKey: id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", pathtree.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", id, err)
	}
	return fromDocument(doc)
}

func (s *Store) Find(ctx context.Context, filter pathtree.Filter, o *pathtree.FindOptions) (pathtree.Cursor, error) {
	q, err := Translate(filter)
	if err != nil {
		return nil, err
	}
	opts := options.Find()
	if o != nil {
		if o.SortBy != "" {
			opts.SetSort(bson.D{{Key: key(o.SortBy), Value: 1}})
		}
		if len(o.Fields) > 0 {
			projection := bson.M{pathtree.FieldParent: 1, pathtree.FieldAncestry: 1}
			for _, f := range o.Fields {
				projection[key(f)] = 1
			}
			opts.SetProjection(projection)
		}
	}
	cur, err := s.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return &cursor{cur}, nil
}

func (s *Store) Insert(ctx context.Context, n *pathtree.Node) error {
	_, err := s.coll.InsertOne(ctx, toDocument(n))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", pathtree.ErrDuplicateID, n.ID)
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", n.ID, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id string, set map[string]interface{}) error {
	fields := bson.M{}
	for k, v := range set {
		switch k {
		case pathtree.FieldID:
			return fmt.Errorf("%w: cannot change id of %s", pathtree.ErrInvalidID, id)
		case pathtree.FieldParent:
			if v == "" {
				v = nil
			}
		}
		fields[k] = v
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{idKey: id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", pathtree.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, filter pathtree.Filter) (int64, error) {
	q, err := Translate(filter)
	if err != nil {
		return 0, err
	}
	res, err := s.coll.DeleteMany(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return res.DeletedCount, nil
}

type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

func (c *cursor) Decode(n *pathtree.Node) error {
	var doc bson.M
	if err := c.cur.Decode(&doc); err != nil {
		return err
	}
	decoded, err := fromDocument(doc)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

func (c *cursor) Err() error {
	return c.cur.Err()
}

func (c *cursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
