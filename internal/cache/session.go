// Package cache fronts hot lookups with Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"hostelhub.org/internal/obs"
	"hostelhub.org/internal/tenancy"
)

const (
	defaultTTL    = 5 * time.Minute
	defaultPrefix = "hostelhub"
)

// Client is the subset of the Redis client the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Client = (*redis.Client)(nil)

// SessionCache decorates a tenancy.Store with a cache-aside layer for active
// session lookups. Redis failures fall through to the wrapped store.
type SessionCache struct {
	tenancy.Store
	client Client
	ttl    time.Duration
	prefix string
	log    *zerolog.Logger
}

// Option configures a SessionCache.
type Option func(*SessionCache)

// WithTTL bounds how long a cached session lives.
func WithTTL(d time.Duration) Option {
	return func(c *SessionCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithPrefix namespaces cache keys.
func WithPrefix(p string) Option {
	return func(c *SessionCache) {
		if p != "" {
			c.prefix = p
		}
	}
}

// WithLogger overrides the logger receiving cache faults.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *SessionCache) {
		if l != nil {
			c.log = l
		}
	}
}

// NewSessionCache wraps inner with client.
func NewSessionCache(inner tenancy.Store, client Client, opts ...Option) *SessionCache {
	c := &SessionCache{
		Store:  inner,
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		log:    obs.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRedisClient dials addr and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

type cachedSession struct {
	Found   bool            `json:"found"`
	Session tenancy.Session `json:"session"`
}

func (c *SessionCache) key(principalID string) string {
	return c.prefix + ":session:" + principalID
}

// ActiveSession serves from Redis when possible, otherwise reads through.
func (c *SessionCache) ActiveSession(ctx context.Context, principalID string) (tenancy.Session, bool, error) {
	key := c.key(principalID)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry cachedSession
		if jerr := json.Unmarshal(raw, &entry); jerr == nil {
			return entry.Session, entry.Found, nil
		}
		c.log.Warn().Str("key", key).Msg("session_cache_corrupt")
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn().Err(err).Str("key", key).Msg("session_cache_get_failed")
	}

	sess, found, err := c.Store.ActiveSession(ctx, principalID)
	if err != nil {
		return tenancy.Session{}, false, err
	}
	payload, err := json.Marshal(cachedSession{Found: found, Session: sess})
	if err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("session_cache_set_failed")
		}
	}
	return sess, found, nil
}

// Activate writes through and invalidates the cached entry.
func (c *SessionCache) Activate(ctx context.Context, principalID, tenantID string, at time.Time) (tenancy.Session, error) {
	sess, err := c.Store.Activate(ctx, principalID, tenantID, at)
	if err != nil {
		return tenancy.Session{}, err
	}
	c.invalidate(ctx, principalID)
	return sess, nil
}

// Deactivate writes through and invalidates the cached entry.
func (c *SessionCache) Deactivate(ctx context.Context, principalID, sessionID string, at time.Time) (bool, error) {
	ok, err := c.Store.Deactivate(ctx, principalID, sessionID, at)
	if err != nil {
		return false, err
	}
	c.invalidate(ctx, principalID)
	return ok, nil
}

func (c *SessionCache) invalidate(ctx context.Context, principalID string) {
	if err := c.client.Del(context.WithoutCancel(ctx), c.key(principalID)).Err(); err != nil {
		c.log.Warn().Err(err).Str("principal_id", principalID).Msg("session_cache_invalidate_failed")
	}
}
