// Package mysqlstore implements docstore.Store on a single MySQL table of
// JSON documents. Transactions lock the rows they read with
// SELECT ... FOR UPDATE and are retried on deadlocks and lock wait
// timeouts.
package mysqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
)

// DefaultMaxAttempts bounds how often a transaction is retried.
const DefaultMaxAttempts = 5

const (
	errDeadlock        = 1213
	errLockWaitTimeout = 1205
)

// Schema creates the documents table.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
    path       VARCHAR(512) NOT NULL,
    parent     VARCHAR(512) NOT NULL,
    body       JSON         NOT NULL,
    updated_at DATETIME(6)  NOT NULL,
    PRIMARY KEY (path),
    KEY idx_documents_parent (parent, path)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`

// Store is a docstore.Store over *sql.DB.
type Store struct {
	db          *sql.DB
	log         *zerolog.Logger
	maxAttempts int
	now         func() time.Time
}

var _ docstore.Store = (*Store)(nil)

func New(db *sql.DB, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{db: db, log: logger, maxAttempts: DefaultMaxAttempts, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate creates the documents table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) Get(ctx context.Context, ref docstore.Ref, dst any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	body, err := load(ctx, s.db, ref, false)
	if err != nil {
		return err
	}
	return docstore.Decode(body, dst)
}

func (s *Store) List(ctx context.Context, collection string, dst any, where ...docstore.Where) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	return list(ctx, s.db, collection, dst, where, false)
}

func (s *Store) Set(ctx context.Context, ref docstore.Ref, doc any) error {
	return s.Batch(ctx, docstore.SetWrite(ref, doc))
}

func (s *Store) Update(ctx context.Context, ref docstore.Ref, ops ...docstore.Op) error {
	return s.Batch(ctx, docstore.UpdateWrite(ref, ops...))
}

func (s *Store) Upsert(ctx context.Context, ref docstore.Ref, ops ...docstore.Op) error {
	return s.Batch(ctx, docstore.UpsertWrite(ref, ops...))
}

func (s *Store) Delete(ctx context.Context, ref docstore.Ref) error {
	return s.Batch(ctx, docstore.DeleteWrite(ref))
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

// RunTransaction runs fn in a database transaction, re-running it when
// MySQL picks it as a deadlock victim or a lock wait times out.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx docstore.Tx) error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		s.log.Debug().Err(err).Int("attempt", attempt).Msg("mysqlstore: retrying transaction")
	}
	return docstore.ErrTxAborted
}

func (s *Store) attempt(ctx context.Context, fn func(tx docstore.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()
	if err = fn(&tx{ctx: ctx, q: sqlTx, now: s.now}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func retryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errDeadlock || me.Number == errLockWaitTimeout
	}
	return false
}

// load reads one document body, locking its row when forUpdate is set.
func load(ctx context.Context, q querier, ref docstore.Ref, forUpdate bool) (docstore.Fields, error) {
	query := "SELECT body FROM documents WHERE path = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}
	var raw []byte
	err := q.QueryRowContext(ctx, query, ref.Path()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	return decodeBody(raw)
}

// list reads a collection ordered by path. Where clauses are evaluated on
// the decoded bodies.
func list(ctx context.Context, q querier, collection string, dst any, where []docstore.Where, forUpdate bool) error {
	query := "SELECT body FROM documents WHERE parent = ? ORDER BY path"
	if forUpdate {
		query += " FOR UPDATE"
	}
	rows, err := q.QueryContext(ctx, query, collection)
	if err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	out := []docstore.Fields{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("list %s: %w", collection, err)
		}
		body, err := decodeBody(raw)
		if err != nil {
			return err
		}
		if body.Matches(where...) {
			out = append(out, body)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list %s: %w", collection, err)
	}
	return docstore.Decode(out, dst)
}

func decodeBody(raw []byte) (docstore.Fields, error) {
	var body docstore.Fields
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if body == nil {
		body = docstore.Fields{}
	}
	return body, nil
}
