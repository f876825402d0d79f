// Package eventdir reads event metadata owned by the event management
// service, with an optional Redis cache in front of the store.
package eventdir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-table-reservation/internal/config"
	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
)

// ErrCacheMiss is returned by a Cache that has no value for a key.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores serialized event metadata.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Directory resolves events by id.
type Directory struct {
	store  docstore.Reader
	cache  Cache
	ttl    time.Duration
	prefix string
	log    *zerolog.Logger
}

// New returns a Directory reading from store. A nil cache disables caching.
func New(store docstore.Reader, cache Cache, cfg config.EventCacheConfig, logger *zerolog.Logger) *Directory {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if !cfg.Enabled {
		cache = nil
	}
	return &Directory{store: store, cache: cache, ttl: cfg.TTL, prefix: cfg.Prefix, log: logger}
}

func (d *Directory) key(companyID, eventID string) string {
	return fmt.Sprintf("%s:%s:%s", d.prefix, companyID, eventID)
}

// Event returns the event document, from the cache when possible. Cache
// failures are logged and fall through to the store.
func (d *Directory) Event(ctx context.Context, companyID, eventID string) (*model.Event, error) {
	key := d.key(companyID, eventID)
	if d.cache != nil {
		raw, err := d.cache.Get(ctx, key)
		switch {
		case err == nil:
			var ev model.Event
			if err := json.Unmarshal(raw, &ev); err == nil {
				return &ev, nil
			}
			d.log.Warn().Str("key", key).Msg("dropping undecodable cached event")
			_ = d.cache.Del(ctx, key)
		case !errors.Is(err, ErrCacheMiss):
			d.log.Warn().Err(err).Str("key", key).Msg("event cache read failed")
		}
	}

	var ev model.Event
	if err := d.store.Get(ctx, repository.EventRef(companyID, eventID), &ev); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("event %s: %w", eventID, repository.ErrEventNotFound)
		}
		return nil, err
	}
	if ev.ID == "" {
		ev.ID = eventID
	}

	if d.cache != nil {
		if raw, err := json.Marshal(ev); err == nil {
			if err := d.cache.Set(ctx, key, raw, d.ttl); err != nil {
				d.log.Warn().Err(err).Str("key", key).Msg("event cache write failed")
			}
		}
	}
	return &ev, nil
}

// Genres returns the genre tags of an event.
func (d *Directory) Genres(ctx context.Context, companyID, eventID string) ([]string, error) {
	ev, err := d.Event(ctx, companyID, eventID)
	if err != nil {
		return nil, err
	}
	return ev.Genres, nil
}

// Invalidate drops the cached copy of an event.
func (d *Directory) Invalidate(ctx context.Context, companyID, eventID string) error {
	if d.cache == nil {
		return nil
	}
	return d.cache.Del(ctx, d.key(companyID, eventID))
}

// RedisCache adapts a go-redis client to Cache.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache returns nil for a nil client, which disables caching.
func NewRedisCache(rdb *redis.Client) Cache {
	if rdb == nil {
		return nil
	}
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
