package memstore

import (
	"context"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
)

type staged struct {
	body    docstore.Fields
	deleted bool
}

// listRead is a filtered read of a collection. The commit fails when the
// set of committed documents matching where, or any of their versions,
// changed since.
type listRead struct {
	collection string
	where      []docstore.Where
	seen       map[string]int64
}

type tx struct {
	store  *Store
	reads  map[string]int64
	lists  []listRead
	staged map[string]*staged
	order  []string
}

func newTx(s *Store) *tx {
	return &tx{
		store:  s,
		reads:  map[string]int64{},
		staged: map[string]*staged{},
	}
}

// load returns the transaction's view of path: its own staged write when
// there is one, the committed document otherwise.
func (t *tx) load(path string) (docstore.Fields, bool) {
	if st, ok := t.staged[path]; ok {
		if st.deleted {
			return nil, false
		}
		return st.body.Clone(), true
	}
	body, version, ok := t.store.read(path)
	if _, seen := t.reads[path]; !seen {
		t.reads[path] = version
	}
	return body, ok
}

func (t *tx) stage(path string, st *staged) {
	if _, ok := t.staged[path]; !ok {
		t.order = append(t.order, path)
	}
	t.staged[path] = st
}

func (t *tx) Get(_ context.Context, ref docstore.Ref, dst any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	body, ok := t.load(ref.Path())
	if !ok {
		return docstore.ErrNotFound
	}
	return docstore.Decode(body, dst)
}

func (t *tx) List(_ context.Context, collection string, dst any, where ...docstore.Where) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	bodies, versions := t.store.listed(collection)
	seen := map[string]int64{}
	for p, b := range bodies {
		if b.Matches(where...) {
			seen[p] = versions[p]
		}
	}
	t.lists = append(t.lists, listRead{collection: collection, where: where, seen: seen})
	for p, st := range t.staged {
		if docstore.CollectionOf(p) != collection {
			continue
		}
		if st.deleted {
			delete(bodies, p)
			continue
		}
		bodies[p] = st.body.Clone()
	}
	return decodeSorted(bodies, dst, where)
}

func (t *tx) Set(ref docstore.Ref, doc any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	body, err := docstore.Encode(doc)
	if err != nil {
		return err
	}
	t.stage(ref.Path(), &staged{body: body})
	return nil
}

func (t *tx) Update(ref docstore.Ref, ops ...docstore.Op) error {
	return t.apply(ref, false, ops)
}

func (t *tx) Upsert(ref docstore.Ref, ops ...docstore.Op) error {
	return t.apply(ref, true, ops)
}

func (t *tx) apply(ref docstore.Ref, create bool, ops []docstore.Op) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	body, ok := t.load(ref.Path())
	if !ok {
		if !create {
			return docstore.ErrNotFound
		}
		body = docstore.Fields{}
	}
	if err := body.Apply(ops...); err != nil {
		return err
	}
	t.stage(ref.Path(), &staged{body: body})
	return nil
}

func (t *tx) Delete(ref docstore.Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	t.stage(ref.Path(), &staged{deleted: true})
	return nil
}
