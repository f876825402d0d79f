package config

import "time"

// EventCacheConfig controls the Redis cache in front of event metadata.
// Genres rarely change during an event, so a short TTL is enough to keep
// check-in bursts from hitting the store for every tap.
type EventCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

func LoadEventCacheConfig() EventCacheConfig {
	cfg := EventCacheConfig{
		Enabled: envBool("EVENT_CACHE_ENABLED", true),
		TTL:     envDur("EVENT_CACHE_TTL", 5*time.Minute),
		Prefix:  envStr("EVENT_CACHE_PREFIX", "event"),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return cfg
}

// ReconcileConfig drives the outbox relay and the reconciliation worker.
type ReconcileConfig struct {
	Enabled     bool
	Interval    time.Duration // how often the relay scans the outbox
	Grace       time.Duration // how old an entry must be before it is relayed
	BatchSize   int           // entries per relay tick
	MaxAttempts int           // relay attempts before an entry is marked failed
	Backoff     time.Duration // wait after the first attempt, doubled per attempt
	MaxBackoff  time.Duration // cap of the doubling
}

// RetryAfter is the wait before the attempt following attempt number n
// (counting from 1).
func (c ReconcileConfig) RetryAfter(n int) time.Duration {
	d := c.Backoff
	for i := 1; i < n && d < c.MaxBackoff; i++ {
		d *= 2
	}
	if d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}

func LoadReconcileConfig() ReconcileConfig {
	cfg := ReconcileConfig{
		Enabled:     envBool("RECONCILE_ENABLED", true),
		Interval:    envDur("RECONCILE_INTERVAL", 10*time.Second),
		Grace:       envDur("RECONCILE_GRACE", 5*time.Second),
		BatchSize:   envInt("RECONCILE_BATCH_SIZE", 100),
		MaxAttempts: envInt("RECONCILE_MAX_ATTEMPTS", 8),
		Backoff:     envDur("RECONCILE_BACKOFF", time.Minute),
		MaxBackoff:  envDur("RECONCILE_MAX_BACKOFF", time.Hour),
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 8
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Minute
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = cfg.Backoff
	}
	return cfg
}
