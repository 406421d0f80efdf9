package ingestor

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/GabrielNunesIT/go-libs/logger"
)

// StdinIngestor reads event lines from standard input.
type StdinIngestor struct {
	name   string
	reader io.Reader // Allows injection for testing
	logger logger.ILogger
}

// NewStdinIngestor creates a new stdin ingestor.
func NewStdinIngestor(log logger.ILogger) *StdinIngestor {
	return NewStdinIngestorWithReader(os.Stdin, log)
}

// NewStdinIngestorWithReader creates a stdin ingestor with a custom reader (for testing).
func NewStdinIngestorWithReader(reader io.Reader, log logger.ILogger) *StdinIngestor {
	return &StdinIngestor{
		name:   "stdin",
		reader: reader,
		logger: log.SubLogger("StdinIngestor"),
	}
}

// Name returns the ingestor identifier.
func (s *StdinIngestor) Name() string {
	return s.name
}

// Start reads lines until EOF or cancellation and records each event.
// Reading blocks in the reader, so cancellation is noticed between lines.
func (s *StdinIngestor) Start(ctx context.Context, rec Recorder) error {
	s.logger.Info("reading events from stdin")

	scanner := bufio.NewScanner(s.reader)
	// Increase buffer for long lines
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	count := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			s.logger.Debugf("stdin ingestor stopped: events=%d", count)
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}
		if recordLine(rec, line, s.logger) {
			count++
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Errorf("stdin read error: %v", err)
		return err
	}

	s.logger.Infof("EOF reached: events=%d", count)
	return nil
}
