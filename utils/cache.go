package utils

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	cacheOpTimeout   = 2 * time.Second
	cacheScanBatch   = 500
	cacheScanMaxRuns = 20

	cacheGenPrefix = "cache:gen:"
	cacheGenTTL    = 24 * time.Hour
)

// ResponseCache keeps rendered response envelopes in Redis. With a nil
// client or a non-positive TTL every lookup misses and every write is dropped.
//
// Each scope (a key prefix) carries a random generation token. Readers take a
// Stamp before loading data and put it in the entry key; Invalidate replaces
// the token, so an entry computed from pre-invalidation data can still be
// written but is never read again. Such orphans live at most one TTL.
type ResponseCache struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewResponseCache wraps rc.
func NewResponseCache(rc *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{rc: rc, ttl: ttl}
}

// Enabled reports whether reads and writes reach Redis.
func (c *ResponseCache) Enabled() bool {
	return c != nil && c.rc != nil && c.ttl > 0
}

// Get returns the cached bytes for key.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			Sugar.Warnf("cache get failed key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// PutJSON stores v as JSON under key.
func (c *ResponseCache) PutJSON(ctx context.Context, key string, v interface{}) {
	if !c.Enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		Sugar.Warnf("cache encode failed key=%s err=%v", key, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// Stamp returns the current generations of scopes joined into a key
// fragment. Scopes without a generation get a fresh one. ok is false when
// the cache is disabled or Redis fails, in which case nothing should be cached.
func (c *ResponseCache) Stamp(ctx context.Context, scopes ...string) (string, bool) {
	if !c.Enabled() || len(scopes) == 0 {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	keys := make([]string, len(scopes))
	for i, scope := range scopes {
		keys[i] = cacheGenPrefix + scope
	}
	vals, err := c.rc.MGet(ctx, keys...).Result()
	if err != nil {
		Sugar.Warnf("cache stamp failed scopes=%v err=%v", scopes, err)
		return "", false
	}

	gens := make([]string, len(scopes))
	for i, v := range vals {
		if gen, ok := v.(string); ok && gen != "" {
			gens[i] = gen
			continue
		}
		gen, err := c.initGeneration(ctx, keys[i])
		if err != nil {
			Sugar.Warnf("cache stamp failed scope=%s err=%v", scopes[i], err)
			return "", false
		}
		gens[i] = gen
	}
	return "g=" + strings.Join(gens, ".") + ":", true
}

// initGeneration sets a first generation for key unless a concurrent
// reader or Invalidate got there first, and returns whichever won.
func (c *ResponseCache) initGeneration(ctx context.Context, key string) (string, error) {
	gen := newGeneration()
	set, err := c.rc.SetNX(ctx, key, gen, cacheGenTTL).Result()
	if err != nil {
		return "", err
	}
	if set {
		return gen, nil
	}
	return c.rc.Get(ctx, key).Result()
}

func newGeneration() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Invalidate moves every given prefix to a new generation and deletes the
// keys under it. It runs even when the TTL is zero so a disabled cache never
// serves entries written earlier.
func (c *ResponseCache) Invalidate(ctx context.Context, prefixes ...string) {
	if c == nil || c.rc == nil {
		return
	}
	// detach from the request: a client hanging up must not leave stale feeds
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*cacheOpTimeout)
	defer cancel()
	for _, prefix := range prefixes {
		if err := c.rc.Set(ctx, cacheGenPrefix+prefix, newGeneration(), cacheGenTTL).Err(); err != nil {
			Sugar.Warnf("cache generation bump failed prefix=%s err=%v", prefix, err)
		}
		c.invalidatePrefix(ctx, prefix)
	}
}

func (c *ResponseCache) invalidatePrefix(ctx context.Context, prefix string) {
	var cursor uint64
	for run := 0; run < cacheScanMaxRuns; run++ {
		keys, next, err := c.rc.Scan(ctx, cursor, prefix+"*", cacheScanBatch).Result()
		if err != nil {
			Sugar.Warnf("cache invalidate failed prefix=%s err=%v", prefix, err)
			return
		}
		if len(keys) > 0 {
			if err := c.rc.Unlink(ctx, keys...).Err(); err != nil {
				Sugar.Warnf("cache unlink failed prefix=%s err=%v", prefix, err)
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
