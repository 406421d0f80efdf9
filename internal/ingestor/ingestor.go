// Package ingestor defines the event sources of the host process.
//
// An ingestor reads event lines from somewhere and hands each parsed event to a
// Recorder. A line is either a JSON object {"type":"...","data":"..."} or the type
// followed by whitespace and the data.
package ingestor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GabrielNunesIT/go-libs/logger"

	"github.com/GabrielNunesIT/event-buffer/internal/model"
)

// ErrInvalidLine is returned by ParseLine for lines that carry no event type.
var ErrInvalidLine = errors.New("invalid event line")

// Recorder receives parsed events. *service.Service satisfies it.
type Recorder interface {
	Record(eventType, data string)
}

// Ingestor defines the contract for event sources.
type Ingestor interface {
	// Start reads events and records them until the context is cancelled,
	// the source is exhausted or an unrecoverable error occurs.
	Start(ctx context.Context, rec Recorder) error

	// Name returns a unique identifier for this ingestor instance.
	Name() string
}

// ParseLine parses one event line.
func ParseLine(line []byte) (model.Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return model.Event{}, ErrInvalidLine
	}

	if line[0] == '{' {
		var e model.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return model.Event{}, fmt.Errorf("%w: %v", ErrInvalidLine, err)
		}
		if e.Type == "" {
			return model.Event{}, fmt.Errorf("%w: missing type", ErrInvalidLine)
		}
		return e, nil
	}

	i := bytes.IndexAny(line, " \t")
	if i < 0 {
		return model.NewEvent(string(line), ""), nil
	}
	return model.NewEvent(string(line[:i]), string(bytes.TrimLeft(line[i:], " \t"))), nil
}

// recordLine parses and records one line, logging lines that cannot be parsed.
func recordLine(rec Recorder, line []byte, log logger.ILogger) bool {
	e, err := ParseLine(line)
	if err != nil {
		log.Warningf("skipping line: %v", err)
		return false
	}
	rec.Record(e.Type, e.Data)
	return true
}
