package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
)

// session is the collection lookup shared by Store and tx.
type session interface {
	coll(collection string) *mongo.Collection
}

func get(ctx context.Context, s session, ref docstore.Ref, dst any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	err := s.coll(ref.Collection).FindOne(ctx, bson.M{idField: ref.Path()}).Decode(dst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	return nil
}

func list(ctx context.Context, s session, collection string, dst any, where []docstore.Where) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	opts := options.Find().SetSort(bson.D{{Key: idField, Value: 1}})
	cur, err := s.coll(collection).Find(ctx, filter(collection, where), opts)
	if err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	if err := cur.All(ctx, dst); err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	return nil
}

func set(ctx context.Context, s session, ref docstore.Ref, doc any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	body, err := withKeys(ref, doc)
	if err != nil {
		return err
	}
	_, err = s.coll(ref.Collection).ReplaceOne(ctx, bson.M{idField: ref.Path()}, body, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s: %w", ref.Path(), err)
	}
	return nil
}

func update(ctx context.Context, s session, ref docstore.Ref, upsert bool, ops []docstore.Op) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	u, err := updateDoc(ref, ops)
	if err != nil {
		return err
	}
	res, err := s.coll(ref.Collection).UpdateOne(ctx, bson.M{idField: ref.Path()}, u, options.Update().SetUpsert(upsert))
	if err != nil {
		return fmt.Errorf("update %s: %w", ref.Path(), err)
	}
	if !upsert && res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func del(ctx context.Context, s session, ref docstore.Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if _, err := s.coll(ref.Collection).DeleteOne(ctx, bson.M{idField: ref.Path()}); err != nil {
		return fmt.Errorf("delete %s: %w", ref.Path(), err)
	}
	return nil
}

// withKeys encodes doc and puts the path keys in front of its fields.
func withKeys(ref docstore.Ref, doc any) (bson.D, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ref.Path(), err)
	}
	var fields bson.D
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ref.Path(), err)
	}
	out := bson.D{{Key: idField, Value: ref.Path()}, {Key: parentField, Value: ref.Collection}}
	for _, e := range fields {
		if e.Key == idField || e.Key == parentField {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// split cuts ops into runs MongoDB accepts as single update commands: no
// run touches the same field twice or a field together with its parent.
// Order is preserved.
func split(ops []docstore.Op) [][]docstore.Op {
	var runs [][]docstore.Op
	var cur []docstore.Op
	for _, op := range ops {
		for _, prev := range cur {
			if overlaps(prev.Path, op.Path) {
				runs = append(runs, cur)
				cur = nil
				break
			}
		}
		cur = append(cur, op)
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

// updateDoc translates one run of ops into update operators.
func updateDoc(ref docstore.Ref, ops []docstore.Op) (bson.M, error) {
	sets := bson.M{}
	incs := bson.M{}
	unsets := bson.M{}
	adds := bson.M{}
	for _, op := range ops {
		if op.Path == "" || strings.HasPrefix(op.Path, "_") || strings.Contains(op.Path, "..") ||
			strings.HasPrefix(op.Path, ".") || strings.HasSuffix(op.Path, ".") {
			return nil, docstore.ErrInvalidPath
		}
		switch op.Kind {
		case docstore.OpSet:
			sets[op.Path] = op.Value
		case docstore.OpIncrement:
			incs[op.Path] = op.Value
		case docstore.OpDelete:
			unsets[op.Path] = ""
		case docstore.OpAddToSet:
			adds[op.Path] = op.Value
		default:
			return nil, fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}
	u := bson.M{"$setOnInsert": bson.M{parentField: ref.Collection}}
	for name, m := range map[string]bson.M{"$set": sets, "$inc": incs, "$unset": unsets, "$addToSet": adds} {
		if len(m) > 0 {
			u[name] = m
		}
	}
	return u, nil
}

// overlaps reports whether a and b address the same field or one contains
// the other.
func overlaps(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+".") || strings.HasPrefix(b, a+".")
}

// filter restricts a query to collection and the where clauses.
func filter(collection string, where []docstore.Where) bson.M {
	f := bson.M{parentField: collection}
	for _, w := range where {
		switch {
		case w.Cmp == docstore.CmpLt:
			f[w.Path] = bson.M{"$lt": w.Value}
		case w.Cmp == docstore.CmpLte:
			f[w.Path] = bson.M{"$lte": w.Value}
		case w.Values != nil:
			f[w.Path] = bson.M{"$in": w.Values}
		default:
			f[w.Path] = w.Value
		}
	}
	return f
}
