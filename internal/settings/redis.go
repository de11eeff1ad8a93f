package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis keys. They match what older deployments already have in Redis.
const (
	redisKeyAPIKey = "apiKey"
	redisKeyLevel  = "studentLevel"
)

// RedisStore keeps settings in two plain string keys.
type RedisStore struct {
	rdb *redis.Client
}

// OpenRedis connects to the Redis server at addr (redis:// or rediss:// URL).
// An unreachable server is not an error here: the client reconnects on use,
// and /health reports the state.
func OpenRedis(addr string) (*RedisStore, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

// NewRedisStore wraps an existing client. The store owns it afterwards.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Save writes both keys in one MULTI/EXEC so readers never see half an update.
func (r *RedisStore) Save(ctx context.Context, s Settings) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, redisKeyAPIKey, s.APIKey, 0)
		p.Set(ctx, redisKeyLevel, string(s.StudentLevel), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context) (Settings, error) {
	vals, err := r.rdb.MGet(ctx, redisKeyAPIKey, redisKeyLevel).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Settings{}, fmt.Errorf("redis get: %w", err)
	}
	var s Settings
	if len(vals) == 2 {
		// MGET yields nil for missing keys.
		if v, ok := vals[0].(string); ok {
			s.APIKey = v
		}
		if v, ok := vals[1].(string); ok {
			s.StudentLevel = Level(v)
		}
	}
	return s.withDefaults(), nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
