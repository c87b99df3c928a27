package tokenstore

import (
	"context"
	"errors"

	goredis "github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix is prepended to the service name to build the hash key.
const DefaultRedisPrefix = "authsession:"

// RedisConfig holds the connection settings used by NewRedisBackendFromConfig.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ApplyDefaults fills unset fields.
func (c *RedisConfig) ApplyDefaults() {
	if c.Address == "" {
		c.Address = "localhost:6379"
	}
	if c.Prefix == "" {
		c.Prefix = DefaultRedisPrefix
	}
}

// RedisBackend stores each namespace as one Redis hash. Save replaces the hash
// inside a MULTI/EXEC transaction so other clients never see a partial token.
// Several processes sharing one Redis therefore share one login.
type RedisBackend struct {
	client goredis.Cmdable
	prefix string
	closer func() error
}

// NewRedisBackend wraps an existing client. The caller keeps ownership of client.
func NewRedisBackend(client goredis.Cmdable, prefix string) (*RedisBackend, error) {
	if client == nil {
		return nil, errors.New("tokenstore: redis client is required")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}, nil
}

// NewRedisBackendFromConfig connects to Redis and verifies the connection with PING.
// Close releases the connection pool.
func NewRedisBackendFromConfig(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	cfg.ApplyDefaults()

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisBackend{client: client, prefix: cfg.Prefix, closer: client.Close}, nil
}

func (b *RedisBackend) key(service string) string {
	return b.prefix + service
}

// Load implements Backend.
func (b *RedisBackend) Load(ctx context.Context, service string) (map[string]string, error) {
	entries, err := b.client.HGetAll(ctx, b.key(service)).Result()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries, nil
}

// Save implements Backend.
func (b *RedisBackend) Save(ctx context.Context, service string, entries map[string]string) error {
	key := b.key(service)

	values := make([]interface{}, 0, len(entries)*2)
	for k, v := range entries {
		values = append(values, k, v)
	}

	_, err := b.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values...)
		}
		return nil
	})
	return err
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, service string) error {
	return b.client.Del(ctx, b.key(service)).Err()
}

// Close closes the connection pool if the backend created it.
func (b *RedisBackend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}
