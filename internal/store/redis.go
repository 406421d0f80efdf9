package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/go-redis/redis/v8"

	"github.com/GabrielNunesIT/event-buffer/internal/model"
)

// RedisStore keeps the snapshot as a single Redis string value.
// SET replaces the value in one step, which gives the same all-or-nothing
// visibility as the file backend's rename.
type RedisStore struct {
	client *redis.Client
	key    string
	logger logger.ILogger
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *redis.Client, key string, log logger.ILogger) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
		logger: log.SubLogger("RedisStore"),
	}
}

// NewRedisStoreFromURL connects to redisURL (redis://host:port/db).
func NewRedisStoreFromURL(redisURL, key string, log logger.ILogger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), key, log), nil
}

// Name returns the backend identifier.
func (r *RedisStore) Name() string {
	return "redis"
}

// Load reads the snapshot value.
func (r *RedisStore) Load(ctx context.Context) ([]model.Event, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.Event{}, nil
	}
	if err != nil {
		return []model.Event{}, model.NewError("store.Load", model.ErrPersistenceRead, err)
	}

	events, err := decode(data)
	if err != nil {
		return []model.Event{}, model.NewError("store.Load", model.ErrPersistenceRead, err)
	}

	r.logger.Debugf("loaded %d events from key %s", len(events), r.key)
	return events, nil
}

// Save replaces the snapshot value.
func (r *RedisStore) Save(ctx context.Context, events []model.Event) error {
	data, err := encode(events)
	if err != nil {
		return model.NewError("store.Save", model.ErrPersistenceWrite, err)
	}

	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return model.NewError("store.Save", model.ErrPersistenceWrite, err)
	}

	r.logger.Debugf("saved %d events to key %s", len(events), r.key)
	return nil
}

// Delete removes the snapshot value; a missing key is not an error.
func (r *RedisStore) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return model.NewError("store.Delete", model.ErrPersistenceWrite, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
