package testutil

import (
	"bytes"
	"io"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"
)

// NewTestLogger creates a logger that discards output, suitable for tests.
func NewTestLogger() logger.ILogger {
	return logger.NewConsoleLogger(io.Discard)
}

// LogBuffer collects log output and is safe for concurrent writers.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewCapturingLogger creates a logger whose output can be inspected by the test.
func NewCapturingLogger() (logger.ILogger, *LogBuffer) {
	out := &LogBuffer{}
	return logger.NewConsoleLogger(out), out
}
