package ingestor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/fsnotify/fsnotify"
)

// FileIngestor tails event files and records every complete line appended to them.
// Existing content is skipped; a file that is truncated or recreated is read from the start.
type FileIngestor struct {
	paths  []string
	name   string
	logger logger.ILogger
}

// NewFileIngestor creates a new file tailing ingestor.
func NewFileIngestor(paths []string, log logger.ILogger) *FileIngestor {
	clean := make([]string, 0, len(paths))
	for _, p := range paths {
		clean = append(clean, filepath.Clean(p))
	}
	return &FileIngestor{
		paths:  clean,
		name:   "file",
		logger: log.SubLogger("FileIngestor"),
	}
}

// Name returns the ingestor identifier.
func (f *FileIngestor) Name() string {
	return f.name
}

// Start watches the files until the context is cancelled.
func (f *FileIngestor) Start(ctx context.Context, rec Recorder) error {
	if len(f.paths) == 0 {
		return errors.New("no files to tail")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Offsets of the first unread byte. Only touched by this goroutine.
	positions := make(map[string]int64, len(f.paths))
	for _, path := range f.paths {
		if info, err := os.Stat(path); err == nil {
			positions[path] = info.Size()
		} else {
			positions[path] = 0
		}
	}

	// Watch directories so files that are created or rotated later are picked up.
	dirs := make(map[string]struct{})
	for _, path := range f.paths {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching directory %q: %w", dir, err)
		}
	}

	f.logger.Infof("tailing event files: %v", f.paths)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			pos, tracked := positions[event.Name]
			if !tracked {
				continue
			}

			// Handle file rotation (create after delete or rename)
			if event.Has(fsnotify.Create) {
				pos = 0
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			newPos, err := f.readNewLines(ctx, event.Name, pos, rec)
			if err != nil {
				f.logger.Warningf("reading %s: %v", event.Name, err)
			}
			positions[event.Name] = newPos

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warningf("file watcher error: %v", err)
		}
	}
}

// readNewLines records the complete lines of path from pos on and returns the offset
// after the last complete line. A trailing partial line is left for the next write.
func (f *FileIngestor) readNewLines(ctx context.Context, path string, pos int64, rec Recorder) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return pos, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return pos, err
	}
	if info.Size() < pos {
		pos = 0 // File was truncated, read from beginning
	}

	if _, err := file.Seek(pos, io.SeekStart); err != nil {
		return pos, err
	}

	reader := bufio.NewReader(file)
	for {
		if err := ctx.Err(); err != nil {
			return pos, err
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return pos, nil
			}
			return pos, err
		}
		pos += int64(len(line))

		if line = bytes.TrimSpace(line); len(line) > 0 {
			recordLine(rec, line, f.logger)
		}
	}
}
