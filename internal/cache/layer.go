// Package cache is the read-through cache in front of the booking store.
// Reads go through Fetch; writers call Layer.Invalidate after commit.
// Backend failures never reach callers: a failed read falls back to the
// loader and a failed eviction is logged and retried once.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/rental-booking/internal/metrics"
)

// generationTTL bounds how long an idle subject's counter is kept.  It only
// needs to outlive the slowest load that sampled it.
const generationTTL = 24 * time.Hour

// storeScript writes the value only if the subject's generation still
// matches the one sampled before the load.  A writer that invalidated the
// subject in between has bumped the counter, so the stale value is dropped.
var storeScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Options tunes a Layer.  Zero values pick the defaults.
type Options struct {
	ScanCount  int64         // SCAN COUNT hint for pattern eviction (default 1000)
	RetryDelay time.Duration // wait before the single eviction retry (default 2s)
	Logger     *slog.Logger
}

// Layer is the cache coherency layer.  A Layer built with a nil client is a
// pass-through: every read loads and every invalidation is a no-op.
type Layer struct {
	rdb        redis.UniversalClient
	scanCount  int64
	retryDelay time.Duration
	log        *slog.Logger
	retries    sync.WaitGroup
}

// New returns a Layer over rdb.
func New(rdb redis.UniversalClient, opts Options) *Layer {
	if opts.ScanCount <= 0 {
		opts.ScanCount = 1000
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	// NewRedisClient returns a nil *redis.Client when the server is down.
	if c, ok := rdb.(*redis.Client); ok && c == nil {
		rdb = nil
	}
	return &Layer{
		rdb:        rdb,
		scanCount:  opts.ScanCount,
		retryDelay: opts.RetryDelay,
		log:        opts.Logger.With("component", "cache"),
	}
}

// Enabled reports whether a backend is configured.
func (l *Layer) Enabled() bool { return l != nil && l.rdb != nil }

// Fetch returns the cached value for key, or runs load and caches its
// result.  Values for which empty returns true are returned but not stored.
// Errors from load are returned unchanged; cache errors are not returned.
func Fetch[T any](ctx context.Context, l *Layer, key Key, load func(context.Context) (T, error), empty func(T) bool) (T, error) {
	if !l.Enabled() {
		return load(ctx)
	}
	ns := key.NS.Name
	k := key.String()

	raw, err := l.rdb.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var v T
		uerr := json.Unmarshal(raw, &v)
		if uerr == nil {
			metrics.CacheLookups.WithLabelValues(ns, "hit").Inc()
			return v, nil
		}
		l.log.Warn("cache decode failed", "key", k, "err", uerr)
	case errors.Is(err, redis.Nil):
	default:
		metrics.CacheLookups.WithLabelValues(ns, "error").Inc()
		l.log.Warn("cache get failed", "key", k, "err", err)
		return load(ctx)
	}
	metrics.CacheLookups.WithLabelValues(ns, "miss").Inc()

	genKey := generationKey(key.NS, key.Subject)
	gen, err := l.rdb.Get(ctx, genKey).Result()
	if errors.Is(err, redis.Nil) {
		gen, err = "0", nil
	}
	if err != nil {
		l.log.Warn("cache generation read failed", "key", genKey, "err", err)
		return load(ctx)
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if empty != nil && empty(v) {
		return v, nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		l.log.Warn("cache encode failed", "key", k, "err", err)
		return v, nil
	}
	stored, err := storeScript.Run(ctx, l.rdb, []string{k, genKey}, gen, payload, key.NS.TTL.Milliseconds()).Int()
	if err != nil {
		l.log.Warn("cache set failed", "key", k, "err", err)
		return v, nil
	}
	if stored == 0 {
		metrics.CacheStoresSkipped.WithLabelValues(ns).Inc()
		l.log.Debug("cache store fenced by concurrent invalidation", "key", k)
	}
	return v, nil
}

// Invalidation names what a mutation made stale.
type Invalidation struct {
	NS      Namespace
	Subject string
	// Prefix evicts every parameterised key of the subject instead of the
	// single unparameterised key.
	Prefix bool
}

// Entry invalidates the single key NewKey(ns, subject).
func Entry(ns Namespace, subject string) Invalidation {
	return Invalidation{NS: ns, Subject: subject}
}

// Subject invalidates every NewKey(ns, subject, params...) for any params.
func Subject(ns Namespace, subject string) Invalidation {
	return Invalidation{NS: ns, Subject: subject, Prefix: true}
}

// Invalidate evicts every listed entry.  It must be called after the
// mutation that made them stale has committed.  It detaches from ctx's
// cancellation so a finished request cannot cut eviction short.
func (l *Layer) Invalidate(ctx context.Context, invs ...Invalidation) {
	if !l.Enabled() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, inv := range invs {
		if err := l.invalidate(ctx, inv); err != nil {
			metrics.CacheEvictionErrors.WithLabelValues(inv.NS.Name).Inc()
			l.log.Warn("cache eviction failed, retrying", "namespace", inv.NS.Name, "subject", inv.Subject, "err", err)
			l.retry(ctx, inv)
		}
	}
}

func (l *Layer) retry(ctx context.Context, inv Invalidation) {
	l.retries.Add(1)
	time.AfterFunc(l.retryDelay, func() {
		defer l.retries.Done()
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := l.invalidate(rctx, inv); err != nil {
			metrics.CacheEvictionErrors.WithLabelValues(inv.NS.Name).Inc()
			l.log.Error("cache eviction retry failed", "namespace", inv.NS.Name, "subject", inv.Subject, "err", err)
		}
	})
}

// Wait blocks until scheduled eviction retries have run.
func (l *Layer) Wait() {
	if l != nil {
		l.retries.Wait()
	}
}

func (l *Layer) invalidate(ctx context.Context, inv Invalidation) error {
	genKey := generationKey(inv.NS, inv.Subject)
	pipe := l.rdb.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if !inv.Prefix {
		n, err := l.rdb.Del(ctx, NewKey(inv.NS, inv.Subject).String()).Result()
		if err != nil {
			return err
		}
		metrics.CacheEvictedKeys.WithLabelValues(inv.NS.Name).Add(float64(n))
		return nil
	}

	pattern := subjectPattern(inv.NS, inv.Subject)
	var cursor uint64
	for {
		keys, next, err := l.rdb.Scan(ctx, cursor, pattern, l.scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			n, err := l.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return err
			}
			metrics.CacheEvictedKeys.WithLabelValues(inv.NS.Name).Add(float64(n))
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
