package store

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/natefinch/atomic"

	"github.com/GabrielNunesIT/event-buffer/internal/model"
)

// FileStore keeps the snapshot in a JSON file.
// Writes go to a temporary file that is renamed over the target, so a reader
// sees either the old or the new snapshot, never a partial one.
type FileStore struct {
	path   string
	logger logger.ILogger
}

// NewFileStore creates a store for the file at path.
func NewFileStore(path string, log logger.ILogger) *FileStore {
	return &FileStore{
		path:   path,
		logger: log.SubLogger("FileStore"),
	}
}

// Name returns the backend identifier.
func (f *FileStore) Name() string {
	return "file"
}

// Path returns the snapshot location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the snapshot file.
func (f *FileStore) Load(ctx context.Context) ([]model.Event, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Event{}, nil
	}
	if err != nil {
		return []model.Event{}, model.NewError("store.Load", model.ErrPersistenceRead, err)
	}

	events, err := decode(data)
	if err != nil {
		return []model.Event{}, model.NewError("store.Load", model.ErrPersistenceRead, err)
	}

	f.logger.Debugf("loaded %d events from %s", len(events), f.path)
	return events, nil
}

// Save replaces the snapshot file with events.
func (f *FileStore) Save(ctx context.Context, events []model.Event) error {
	data, err := encode(events)
	if err != nil {
		return model.NewError("store.Save", model.ErrPersistenceWrite, err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return model.NewError("store.Save", model.ErrPersistenceWrite, err)
		}
	}

	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return model.NewError("store.Save", model.ErrPersistenceWrite, err)
	}

	f.logger.Debugf("saved %d events to %s", len(events), f.path)
	return nil
}

// Delete removes the snapshot file if present.
func (f *FileStore) Delete(ctx context.Context) error {
	err := os.Remove(f.path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return model.NewError("store.Delete", model.ErrPersistenceWrite, err)
}
