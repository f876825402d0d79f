// Package mongostore implements docstore.Store on MongoDB.
//
// Every document keeps its full path in _id and its collection path in
// _parent. Documents live in one MongoDB collection per collection shape:
// the path "companies/c1/events/e1/layouts" maps to
// "companies_events_layouts". Transactions use sessions and therefore need
// a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
)

const (
	idField     = "_id"
	parentField = "_parent"
)

// Store is a docstore.Store backed by one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zerolog.Logger

	indexed sync.Map // collection name -> struct{}
}

var _ docstore.Store = (*Store)(nil)

// Open connects to url and pings the server.
func Open(ctx context.Context, url, dbName string, logger *zerolog.Logger) (*Store, error) {
	if url == "" {
		url = "mongodb://localhost:27017"
	}
	clientOptions := options.Client().ApplyURI(url).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot ping MongoDB: %w", err)
	}
	s := New(client, dbName, logger)
	s.log.Info().Str("database", dbName).Msg("connected to MongoDB")
	return s, nil
}

// New wraps an already connected client.
func New(client *mongo.Client, dbName string, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{client: client, db: client.Database(dbName), log: logger}
}

// collectionName joins the collection segments of path, skipping the
// document ids between them.
func collectionName(path string) string {
	parts := strings.Split(path, "/")
	names := make([]string, 0, len(parts)/2+1)
	for i := 0; i < len(parts); i += 2 {
		names = append(names, parts[i])
	}
	return strings.Join(names, "_")
}

// coll returns the MongoDB collection for a docstore collection path and
// makes sure the _parent index exists. The index is built outside any
// session since index builds are not allowed in transactions.
func (s *Store) coll(collection string) *mongo.Collection {
	name := collectionName(collection)
	c := s.db.Collection(name)
	if _, done := s.indexed.LoadOrStore(name, struct{}{}); !done {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		model := mongo.IndexModel{Keys: bson.D{{Key: parentField, Value: 1}, {Key: idField, Value: 1}}}
		if _, err := c.Indexes().CreateOne(ctx, model); err != nil {
			s.indexed.Delete(name)
			s.log.Warn().Err(err).Str("collection", name).Msg("mongostore: cannot create parent index")
		}
	}
	return c
}

func (s *Store) Get(ctx context.Context, ref docstore.Ref, dst any) error {
	return get(ctx, s, ref, dst)
}

func (s *Store) List(ctx context.Context, collection string, dst any, where ...docstore.Where) error {
	return list(ctx, s, collection, dst, where)
}

func (s *Store) Set(ctx context.Context, ref docstore.Ref, doc any) error {
	return set(ctx, s, ref, doc)
}

func (s *Store) Update(ctx context.Context, ref docstore.Ref, ops ...docstore.Op) error {
	return s.apply(ctx, ref, false, ops)
}

func (s *Store) Upsert(ctx context.Context, ref docstore.Ref, ops ...docstore.Op) error {
	return s.apply(ctx, ref, true, ops)
}

// apply runs ops as one update command. Ops MongoDB cannot combine in one
// command run as a sequence of commands inside a transaction.
func (s *Store) apply(ctx context.Context, ref docstore.Ref, upsert bool, ops []docstore.Op) error {
	if len(split(ops)) > 1 {
		return s.RunTransaction(ctx, func(tx docstore.Tx) error {
			if upsert {
				return tx.Upsert(ref, ops...)
			}
			return tx.Update(ref, ops...)
		})
	}
	return update(ctx, s, ref, upsert, ops)
}

func (s *Store) Delete(ctx context.Context, ref docstore.Ref) error {
	return del(ctx, s, ref)
}

// RunTransaction runs fn inside a session transaction. The driver re-runs
// fn on transient errors such as write conflicts.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx docstore.Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&tx{store: s, ctx: sc})
	})
	return translate(err)
}

// Batch applies writes in one transaction.
func (s *Store) Batch(ctx context.Context, writes ...docstore.Write) error {
	return s.RunTransaction(ctx, func(t docstore.Tx) error {
		for _, w := range writes {
			var err error
			switch w.Kind {
			case docstore.WriteSet:
				err = t.Set(w.Ref, w.Doc)
			case docstore.WriteUpdate:
				err = t.Update(w.Ref, w.Ops...)
			case docstore.WriteUpsert:
				err = t.Upsert(w.Ref, w.Ops...)
			case docstore.WriteDelete:
				err = t.Delete(w.Ref)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}
	s.log.Info().Msg("disconnected from MongoDB")
	return nil
}

// translate maps transaction failures the driver gave up retrying onto
// docstore.ErrTxAborted.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var le mongo.LabeledError
	if errors.As(err, &le) && le.HasErrorLabel(driver.TransientTransactionError) {
		return fmt.Errorf("%w: %v", docstore.ErrTxAborted, err)
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == writeConflictCode {
		return fmt.Errorf("%w: %v", docstore.ErrTxAborted, err)
	}
	return err
}

const writeConflictCode = 112
