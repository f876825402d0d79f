// Package memstore is an in-memory docstore.Store. Transactions are
// optimistic: reads record the version they observed and the commit is
// rejected, and the transaction function re-run, when any of those versions
// moved in the meantime.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
)

// DefaultMaxAttempts bounds how often a transaction function is re-run.
const DefaultMaxAttempts = 5

type record struct {
	body    docstore.Fields
	version int64
}

// Store keeps documents keyed by their full path.
type Store struct {
	mu          sync.RWMutex
	docs        map[string]*record
	clock       int64
	maxAttempts int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{docs: map[string]*record{}, maxAttempts: DefaultMaxAttempts}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ docstore.Store = (*Store)(nil)

func (s *Store) read(path string) (docstore.Fields, int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.docs[path]
	if !ok {
		return nil, 0, false
	}
	return r.body.Clone(), r.version, true
}

// listed returns clones of every committed document directly under
// collection, with their versions.
func (s *Store) listed(collection string) (map[string]docstore.Fields, map[string]int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bodies := map[string]docstore.Fields{}
	versions := map[string]int64{}
	for p, r := range s.docs {
		if docstore.CollectionOf(p) == collection {
			bodies[p] = r.body.Clone()
			versions[p] = r.version
		}
	}
	return bodies, versions
}

func (s *Store) Get(ctx context.Context, ref docstore.Ref, dst any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, _, ok := s.read(ref.Path())
	if !ok {
		return docstore.ErrNotFound
	}
	return docstore.Decode(body, dst)
}

func (s *Store) List(ctx context.Context, collection string, dst any, where ...docstore.Where) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	bodies, _ := s.listed(collection)
	return decodeSorted(bodies, dst, where)
}

func decodeSorted(bodies map[string]docstore.Fields, dst any, where []docstore.Where) error {
	paths := make([]string, 0, len(bodies))
	for p, b := range bodies {
		if b.Matches(where...) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	out := make([]docstore.Fields, 0, len(paths))
	for _, p := range paths {
		out = append(out, bodies[p])
	}
	return docstore.Decode(out, dst)
}

func (s *Store) Set(ctx context.Context, ref docstore.Ref, doc any) error {
	return s.Batch(ctx, docstore.SetWrite(ref, doc))
}

func (s *Store) Update(ctx context.Context, ref docstore.Ref, ops ...docstore.Op) error {
	return s.RunTransaction(ctx, func(tx docstore.Tx) error {
		return tx.Update(ref, ops...)
	})
}

func (s *Store) Upsert(ctx context.Context, ref docstore.Ref, ops ...docstore.Op) error {
	return s.RunTransaction(ctx, func(tx docstore.Tx) error {
		return tx.Upsert(ref, ops...)
	})
}

func (s *Store) Delete(ctx context.Context, ref docstore.Ref) error {
	return s.Batch(ctx, docstore.DeleteWrite(ref))
}

// Batch applies writes atomically. Update writes against missing documents
// fail the whole batch with docstore.ErrNotFound.
func (s *Store) Batch(ctx context.Context, writes ...docstore.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.RunTransaction(ctx, func(tx docstore.Tx) error {
		for _, w := range writes {
			var err error
			switch w.Kind {
			case docstore.WriteSet:
				err = tx.Set(w.Ref, w.Doc)
			case docstore.WriteUpdate:
				err = tx.Update(w.Ref, w.Ops...)
			case docstore.WriteUpsert:
				err = tx.Upsert(w.Ref, w.Ops...)
			case docstore.WriteDelete:
				err = tx.Delete(w.Ref)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) RunTransaction(ctx context.Context, fn func(tx docstore.Tx) error) error {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := newTx(s)
		if err := fn(t); err != nil {
			return err
		}
		if s.commit(t) {
			return nil
		}
	}
	return docstore.ErrTxAborted
}

func (s *Store) Close(context.Context) error { return nil }

// commit validates t's read set and applies its staged writes. It reports
// false when a concurrent commit invalidated a read.
func (s *Store) commit(t *tx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for p, v := range t.reads {
		if s.versionLocked(p) != v {
			return false
		}
	}
	for _, lr := range t.lists {
		current := 0
		for p, r := range s.docs {
			if docstore.CollectionOf(p) != lr.collection || !r.body.Matches(lr.where...) {
				continue
			}
			current++
			if v, ok := lr.seen[p]; !ok || v != r.version {
				return false
			}
		}
		if current != len(lr.seen) {
			return false
		}
	}
	for _, p := range t.order {
		st := t.staged[p]
		if st.deleted {
			delete(s.docs, p)
			continue
		}
		s.clock++
		s.docs[p] = &record{body: st.body, version: s.clock}
	}
	return true
}

func (s *Store) versionLocked(path string) int64 {
	if r, ok := s.docs[path]; ok {
		return r.version
	}
	return 0
}
