package mysqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/venue-table-reservation/internal/docstore"
)

const upsertSQL = `INSERT INTO documents (path, parent, body, updated_at) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = VALUES(updated_at)`

// tx reads with row locks and writes through the SQL transaction.
type tx struct {
	ctx context.Context
	q   querier
	now func() time.Time
}

func (t *tx) Get(ctx context.Context, ref docstore.Ref, dst any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	body, err := load(ctx, t.q, ref, true)
	if err != nil {
		return err
	}
	return docstore.Decode(body, dst)
}

func (t *tx) List(ctx context.Context, collection string, dst any, where ...docstore.Where) error {
	if err := docstore.ValidateCollection(collection); err != nil {
		return err
	}
	return list(ctx, t.q, collection, dst, where, true)
}

func (t *tx) Set(ref docstore.Ref, doc any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	body, err := docstore.Encode(doc)
	if err != nil {
		return err
	}
	return t.write(ref, body)
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
	body, err := load(t.ctx, t.q, ref, true)
	switch {
	case errors.Is(err, docstore.ErrNotFound) && create:
		body = docstore.Fields{}
	case err != nil:
		return err
	}
	if err := body.Apply(ops...); err != nil {
		return err
	}
	return t.write(ref, body)
}

func (t *tx) write(ref docstore.Ref, body docstore.Fields) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ref.Path(), err)
	}
	if _, err := t.q.ExecContext(t.ctx, upsertSQL, ref.Path(), ref.Collection, raw, t.now()); err != nil {
		return fmt.Errorf("set %s: %w", ref.Path(), err)
	}
	return nil
}

func (t *tx) Delete(ref docstore.Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if _, err := t.q.ExecContext(t.ctx, "DELETE FROM documents WHERE path = ?", ref.Path()); err != nil {
		return fmt.Errorf("delete %s: %w", ref.Path(), err)
	}
	return nil
}
