package model

import (
	"encoding/json"
	"errors"
	"io/fs"
	"testing"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent("level_start", "level:3")

	if e.Type != "level_start" {
		t.Errorf("expected type 'level_start', got %q", e.Type)
	}
	if e.Data != "level:3" {
		t.Errorf("expected data 'level:3', got %q", e.Data)
	}
	if e.String() != "type: level_start, data: level:3" {
		t.Errorf("unexpected string form: %q", e.String())
	}
}

func TestBatch_WireFormat(t *testing.T) {
	batch := NewBatch([]Event{
		NewEvent("level_start", "level:3"),
		NewEvent("level_start", "level:2"),
	})

	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	expected := `{"events":[{"type":"level_start","data":"level:3"},{"type":"level_start","data":"level:2"}]}`
	if string(data) != expected {
		t.Errorf("unexpected body:\n got: %s\nwant: %s", data, expected)
	}
}

func TestBatch_EmptyEncodesArray(t *testing.T) {
	data, err := json.Marshal(NewBatch(nil))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if string(data) != `{"events":[]}` {
		t.Errorf("expected empty array, got %s", data)
	}
}

func TestCloneEvents_Independent(t *testing.T) {
	original := []Event{NewEvent("a", "1"), NewEvent("b", "2")}
	clone := CloneEvents(original)

	clone[0] = NewEvent("x", "y")
	if original[0].Type != "a" {
		t.Error("modifying clone should not affect original")
	}

	batch := NewBatch(original)
	original[1] = NewEvent("z", "z")
	if batch.Events[1].Type != "b" {
		t.Error("batch should hold its own copy")
	}
	if batch.Len() != 2 {
		t.Errorf("expected batch length 2, got %d", batch.Len())
	}
}

func TestError_Is(t *testing.T) {
	err := NewError("store.Save", ErrPersistenceWrite, fs.ErrPermission)

	if !errors.Is(err, ErrPersistenceWrite) {
		t.Error("expected error to match its kind")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("expected error to match its cause")
	}
	if errors.Is(err, ErrTransport) {
		t.Error("error should not match an unrelated kind")
	}

	bare := NewError("dispatcher.SendBatch", ErrServerRejected, nil)
	if !errors.Is(bare, ErrServerRejected) {
		t.Error("expected bare error to match its kind")
	}
	if bare.Error() != "dispatcher.SendBatch: server rejected batch" {
		t.Errorf("unexpected message: %q", bare.Error())
	}
}
