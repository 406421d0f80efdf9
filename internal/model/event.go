// Package model defines the core data structures used throughout the event buffer.
package model

// Event is a single recorded telemetry event.
// It is a value type: once built it is never modified in place.
type Event struct {
	// Type is a short identifier such as "level_start".
	Type string `json:"type"`

	// Data is an opaque payload, forwarded to the collector untouched.
	Data string `json:"data"`
}

// NewEvent creates an Event from its kind and payload.
func NewEvent(eventType, data string) Event {
	return Event{Type: eventType, Data: data}
}

// String renders the event for logs.
func (e Event) String() string {
	return "type: " + e.Type + ", data: " + e.Data
}

// Batch is the wire and at-rest document: an ordered list of events.
type Batch struct {
	Events []Event `json:"events"`
}

// NewBatch wraps a copy of events in a Batch.
// The result always encodes an array, never null.
func NewBatch(events []Event) Batch {
	return Batch{Events: CloneEvents(events)}
}

// Len returns the number of events in the batch.
func (b Batch) Len() int {
	return len(b.Events)
}

// CloneEvents returns an independent copy of events in the same order.
// A nil input yields an empty, non-nil slice.
func CloneEvents(events []Event) []Event {
	clone := make([]Event, len(events))
	copy(clone, events)
	return clone
}
