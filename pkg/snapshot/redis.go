package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis commands the store uses.
// *redis.Client and *redis.ClusterClient both satisfy it.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisConfig configures a dialed Redis connection.
// Defaults can be loaded from the environment via envdecode.
type RedisConfig struct {
	// Addr is the Redis host:port. ENV: PORTICO_REDIS_ADDR
	Addr string `env:"PORTICO_REDIS_ADDR,default=localhost:6379"`

	// Password authenticates the connection when set. ENV: PORTICO_REDIS_PASSWORD
	Password string `env:"PORTICO_REDIS_PASSWORD"`

	// DB selects the Redis logical database. ENV: PORTICO_REDIS_DB
	DB int `env:"PORTICO_REDIS_DB,default=0"`

	// KeyPrefix namespaces all snapshot keys. ENV: PORTICO_REDIS_PREFIX
	KeyPrefix string `env:"PORTICO_REDIS_PREFIX,default=portico:snapshot:"`
}

const defaultRedisPrefix = "portico:snapshot:"

// RedisStore is a Redis-backed snapshot store.
// It suits multi-server deployments with shared session state.
type RedisStore struct {
	client     RedisClient
	prefix     string
	ownsClient bool
	closed     bool
}

var _ Store = (*RedisStore)(nil)

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	prefix string
}

// WithRedisPrefix sets the key prefix for snapshot keys.
// Default: "portico:snapshot:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.prefix = prefix
	}
}

// NewRedisStore creates a snapshot store on an existing client.
// The client is not closed by Close; it may be shared.
func NewRedisStore(client RedisClient, opts ...RedisStoreOption) *RedisStore {
	cfg := &redisStoreConfig{
		prefix: defaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.prefix,
	}
}

// OpenRedisStore dials Redis per cfg and verifies the connection.
// Close closes the dialed client.
func OpenRedisStore(cfg RedisConfig) (*RedisStore, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("snapshot: redis ping: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	store := NewRedisStore(client, WithRedisPrefix(prefix))
	store.ownsClient = true
	return store, nil
}

// OpenRedisStoreFromEnv builds a store using envdecode to populate RedisConfig.
func OpenRedisStoreFromEnv() (*RedisStore, error) {
	var cfg RedisConfig
	// Defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return OpenRedisStore(cfg)
}

// key returns the Redis key for a session ID.
func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

// Save stores a snapshot with an expiry.
func (r *RedisStore) Save(ctx context.Context, sessionID string, data []byte, expiresAt time.Time) error {
	if r.closed {
		return ErrStoreClosed{}
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already expired, delete instead.
		return r.Delete(ctx, sessionID)
	}

	return r.client.Set(ctx, r.key(sessionID), data, ttl).Err()
}

// Load retrieves a snapshot if it exists. Redis expires keys itself.
func (r *RedisStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	if r.closed {
		return nil, ErrStoreClosed{}
	}

	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	return data, nil
}

// Delete removes a snapshot from Redis.
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if r.closed {
		return ErrStoreClosed{}
	}

	return r.client.Del(ctx, r.key(sessionID)).Err()
}

// Touch updates the expiry for a snapshot.
func (r *RedisStore) Touch(ctx context.Context, sessionID string, expiresAt time.Time) error {
	if r.closed {
		return ErrStoreClosed{}
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return r.Delete(ctx, sessionID)
	}

	return r.client.Expire(ctx, r.key(sessionID), ttl).Err()
}

// SaveAll saves every record sequentially, skipping entries that are already
// expired. Each key gets its own TTL.
func (r *RedisStore) SaveAll(ctx context.Context, records map[string]Record) error {
	if r.closed {
		return ErrStoreClosed{}
	}

	for id, rec := range records {
		ttl := time.Until(rec.ExpiresAt)
		if ttl <= 0 {
			continue
		}
		if err := r.client.Set(ctx, r.key(id), rec.Data, ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the store as closed. The underlying client is closed only when
// the store dialed it (OpenRedisStore); shared clients are left open.
func (r *RedisStore) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.ownsClient {
		return r.client.Close()
	}
	return nil
}

// Prefix returns the current key prefix.
// This is for testing/debugging purposes.
func (r *RedisStore) Prefix() string {
	return r.prefix
}
