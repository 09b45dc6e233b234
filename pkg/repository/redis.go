package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/farmmarket/pkg/config"
	"github.com/example/farmmarket/pkg/models"
	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisRepository) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// Session cache: one entry per issued token, expiring with the session TTL.

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func (r *RedisRepository) CacheSession(ctx context.Context, token string, session *models.Session, ttl time.Duration) error {
	return r.SetJSON(ctx, sessionKey(token), session, ttl)
}

func (r *RedisRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := r.GetJSON(ctx, sessionKey(token), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *RedisRepository) DeleteSession(ctx context.Context, token string) error {
	return r.Del(ctx, sessionKey(token))
}

// Cart slots: one durable slot per user, overwritten on every mutation.
// Carts do not expire; checkout or an explicit clear empties them.

func cartKey(userID string) string {
	return fmt.Sprintf("cart-%s", userID)
}

func (r *RedisRepository) SaveCart(ctx context.Context, userID string, items []models.CartItem) error {
	return r.SetJSON(ctx, cartKey(userID), items, 0)
}

func (r *RedisRepository) LoadCart(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.GetJSON(ctx, cartKey(userID), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *RedisRepository) DeleteCart(ctx context.Context, userID string) error {
	return r.Del(ctx, cartKey(userID))
}
