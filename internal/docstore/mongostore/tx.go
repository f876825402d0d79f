package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
)

// tx runs every call on the session context of a transaction. Writes are
// visible to later reads of the same transaction.
type tx struct {
	store *Store
	ctx   mongo.SessionContext
}

func (t *tx) coll(collection string) *mongo.Collection {
	return t.store.coll(collection)
}

func (t *tx) Get(_ context.Context, ref docstore.Ref, dst any) error {
	return get(t.ctx, t, ref, dst)
}

func (t *tx) List(_ context.Context, collection string, dst any, where ...docstore.Where) error {
	return list(t.ctx, t, collection, dst, where)
}

func (t *tx) Set(ref docstore.Ref, doc any) error {
	return set(t.ctx, t, ref, doc)
}

func (t *tx) Update(ref docstore.Ref, ops ...docstore.Op) error {
	return t.apply(ref, false, ops)
}

func (t *tx) Upsert(ref docstore.Ref, ops ...docstore.Op) error {
	return t.apply(ref, true, ops)
}

// apply issues one update command per run of ops; the transaction makes
// them atomic together.
func (t *tx) apply(ref docstore.Ref, upsert bool, ops []docstore.Op) error {
	for _, run := range split(ops) {
		if err := update(t.ctx, t, ref, upsert, run); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Delete(ref docstore.Ref) error {
	return del(t.ctx, t, ref)
}
