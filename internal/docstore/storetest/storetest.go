// Package storetest is a behavioural test suite every docstore.Store
// adapter runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
)

// Item is the document shape the suite writes.
type Item struct {
	Name   string           `json:"name" bson:"name"`
	Status string           `json:"status" bson:"status"`
	Count  int64            `json:"count" bson:"count"`
	Tags   []string         `json:"tags,omitempty" bson:"tags,omitempty"`
	Spend  map[string]Spend `json:"spend,omitempty" bson:"spend,omitempty"`
}

type Spend struct {
	Spent int64 `json:"spent" bson:"spent"`
}

const coll = "companies/club-1/items"

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		var it Item
		err := newStore(t).Get(context.Background(), docstore.Doc(coll, "nope"), &it)
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
	t.Run("SetGetList", func(t *testing.T) { testSetGetList(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) {
		err := newStore(t).Update(context.Background(), docstore.Doc(coll, "nope"), docstore.Inc("count", 1))
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
	t.Run("RangeFilters", func(t *testing.T) { testRangeFilters(t, newStore(t)) })
	t.Run("FieldOps", func(t *testing.T) { testFieldOps(t, newStore(t)) })
	t.Run("TransactionRollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("TransactionReadYourWrites", func(t *testing.T) { testReadYourWrites(t, newStore(t)) })
	t.Run("ConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ref := docstore.Doc(coll, "a")
		require.NoError(t, s.Set(ctx, ref, Item{Name: "A"}))
		require.NoError(t, s.Delete(ctx, ref))
		assert.ErrorIs(t, s.Get(ctx, ref, &Item{}), docstore.ErrNotFound)
	})
}

func testSetGetList(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, docstore.Doc(coll, "b"), Item{Name: "B", Status: "open", Count: 2}))
	require.NoError(t, s.Set(ctx, docstore.Doc(coll, "a"), Item{Name: "A", Status: "done", Count: 1, Tags: []string{"x"}}))
	require.NoError(t, s.Set(ctx, docstore.Doc(coll, "c"), Item{Name: "C", Status: "open"}))
	// other collections never leak into a listing
	require.NoError(t, s.Set(ctx, docstore.Doc("companies/club-2/items", "a"), Item{Name: "other"}))
	require.NoError(t, s.Set(ctx, docstore.Doc(coll+"/a/children", "x"), Item{Name: "child"}))

	var got Item
	require.NoError(t, s.Get(ctx, docstore.Doc(coll, "a"), &got))
	assert.Equal(t, Item{Name: "A", Status: "done", Count: 1, Tags: []string{"x"}}, got)

	var all []Item
	require.NoError(t, s.List(ctx, coll, &all))
	assert.Equal(t, []string{"A", "B", "C"}, names(all))

	var open []Item
	require.NoError(t, s.List(ctx, coll, &open, docstore.Eq("status", "open")))
	assert.Equal(t, []string{"B", "C"}, names(open))

	var some []Item
	require.NoError(t, s.List(ctx, coll, &some, docstore.In("status", "done", "gone")))
	assert.Equal(t, []string{"A"}, names(some))

	// Set replaces the whole document
	require.NoError(t, s.Set(ctx, docstore.Doc(coll, "a"), Item{Name: "A2"}))
	got = Item{}
	require.NoError(t, s.Get(ctx, docstore.Doc(coll, "a"), &got))
	assert.Equal(t, Item{Name: "A2"}, got)
}

// Due is the document shape of the range filter cases.
type Due struct {
	Name string    `json:"name" bson:"name"`
	At   time.Time `json:"at" bson:"at"`
	Rank int64     `json:"rank" bson:"rank"`
}

func testRangeFilters(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	const dues = "companies/club-1/dues"
	require.NoError(t, s.Set(ctx, docstore.Doc(dues, "a"), Due{Name: "A", At: base, Rank: 1}))
	require.NoError(t, s.Set(ctx, docstore.Doc(dues, "b"), Due{Name: "B", At: base.Add(1500 * time.Millisecond), Rank: 2}))
	require.NoError(t, s.Set(ctx, docstore.Doc(dues, "c"), Due{Name: "C", At: base.Add(time.Hour), Rank: 3}))

	var got []Due
	require.NoError(t, s.List(ctx, dues, &got, docstore.Lt("at", base.Add(time.Hour))))
	assert.Equal(t, []string{"A", "B"}, dueNames(got))

	got = nil
	require.NoError(t, s.List(ctx, dues, &got, docstore.Lte("at", base.Add(time.Hour))))
	assert.Equal(t, []string{"A", "B", "C"}, dueNames(got))

	got = nil
	require.NoError(t, s.List(ctx, dues, &got, docstore.Lt("at", base.Add(2*time.Second)), docstore.Lte("rank", 1)))
	assert.Equal(t, []string{"A"}, dueNames(got))
}

func dueNames(ds []Due) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func testFieldOps(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Doc(coll, "g")

	require.NoError(t, s.Upsert(ctx, ref,
		docstore.Set("name", "Guest"),
		docstore.Inc("count", 5),
		docstore.Set("spend.ev-1.spent", int64(400)),
		docstore.AddToSet("tags", "techno"),
	))
	require.NoError(t, s.Update(ctx, ref,
		docstore.Inc("count", -2),
		docstore.Set("spend.ev-2.spent", int64(100)),
		docstore.AddToSet("tags", "techno"),
		docstore.AddToSet("tags", "house"),
	))
	require.NoError(t, s.Update(ctx, ref, docstore.Delete("spend.ev-1")))

	var got Item
	require.NoError(t, s.Get(ctx, ref, &got))
	assert.Equal(t, "Guest", got.Name)
	assert.Equal(t, int64(3), got.Count)
	assert.Equal(t, []string{"techno", "house"}, got.Tags)
	assert.Equal(t, map[string]Spend{"ev-2": {Spent: 100}}, got.Spend)
}

var errBoom = errors.New("boom")

func testRollback(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Doc(coll, "r")
	require.NoError(t, s.Set(ctx, ref, Item{Name: "R", Count: 1}))

	err := s.RunTransaction(ctx, func(tx docstore.Tx) error {
		if err := tx.Update(ref, docstore.Inc("count", 10)); err != nil {
			return err
		}
		if err := tx.Set(docstore.Doc(coll, "new"), Item{Name: "N"}); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	var got Item
	require.NoError(t, s.Get(ctx, ref, &got))
	assert.Equal(t, int64(1), got.Count)
	assert.ErrorIs(t, s.Get(ctx, docstore.Doc(coll, "new"), &Item{}), docstore.ErrNotFound)
}

func testReadYourWrites(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Doc(coll, "w")
	err := s.RunTransaction(ctx, func(tx docstore.Tx) error {
		if err := tx.Upsert(ref, docstore.Set("name", "W"), docstore.Inc("count", 1)); err != nil {
			return err
		}
		var it Item
		if err := tx.Get(ctx, ref, &it); err != nil {
			return err
		}
		if it.Count != 1 {
			return errors.New("transaction does not see its own write")
		}
		var all []Item
		if err := tx.List(ctx, coll, &all); err != nil {
			return err
		}
		if len(all) != 1 {
			return errors.New("listing misses the transaction's own write")
		}
		return nil
	})
	require.NoError(t, err)
}

func testConcurrentIncrements(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Doc(coll, "counter")
	const n = 8

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunTransaction(ctx, func(tx docstore.Tx) error {
				var it Item
				err := tx.Get(ctx, ref, &it)
				if err != nil && !errors.Is(err, docstore.ErrNotFound) {
					return err
				}
				return tx.Set(ref, Item{Name: "counter", Count: it.Count + 1})
			})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := int64(0)
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, docstore.ErrTxAborted)
	}
	var got Item
	require.NoError(t, s.Get(ctx, ref, &got))
	assert.Equal(t, succeeded, got.Count, "every committed read-modify-write must be kept")
}

func names(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}
