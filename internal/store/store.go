// Package store keeps a durable snapshot of undelivered events.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/event-buffer/internal/config"
	"github.com/GabrielNunesIT/event-buffer/internal/model"
)

// Store is the contract every snapshot backend fulfils.
type Store interface {
	// Load returns the saved events in order. A missing snapshot is an empty result, not
	// an error. A corrupt snapshot returns an empty result and an ErrPersistenceRead error.
	Load(ctx context.Context) ([]model.Event, error)

	// Save atomically replaces the snapshot with events.
	// Failures are ErrPersistenceWrite errors.
	Save(ctx context.Context, events []model.Event) error

	// Delete removes the snapshot. Deleting a missing snapshot is a no-op.
	Delete(ctx context.Context) error

	// Name returns the backend identifier.
	Name() string
}

// New builds the backend selected by cfg.
func New(cfg config.StorageConfig, log logger.ILogger) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.Path, log), nil
	case config.BackendRedis:
		return NewRedisStoreFromURL(cfg.Redis.URL, cfg.Redis.Key, log)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// encode renders events in the at-rest format, which is the wire format.
func encode(events []model.Event) ([]byte, error) {
	return json.Marshal(model.NewBatch(events))
}

// decode parses a snapshot document. Every error it returns wraps model.ErrSnapshotCorrupt.
func decode(data []byte) ([]model.Event, error) {
	var batch model.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSnapshotCorrupt, err)
	}
	if batch.Events == nil {
		return nil, fmt.Errorf("%w: no events array", model.ErrSnapshotCorrupt)
	}
	return batch.Events, nil
}
