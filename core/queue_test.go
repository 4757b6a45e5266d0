package core

import (
	"testing"
	"time"

	"pkt.systems/forgeview/schema"
)

func TestErrorQueueSupersedesSameRootCause(t *testing.T) {
	q := NewErrorQueue()
	first := schema.ErrorRecord{Message: "TypeError: x", SourceFile: "app.js", Timestamp: time.Now()}
	q.Enqueue(first)
	q.Enqueue(schema.ErrorRecord{Message: "SyntaxError: y", SourceFile: "main.py"})
	later := first
	later.Timestamp = first.Timestamp.Add(time.Second)
	q.Enqueue(later)

	if q.Len() != 2 {
		t.Fatalf("expected 2 records after supersede, got %d", q.Len())
	}
	recent, ok := q.MostRecent()
	if !ok {
		t.Fatalf("expected a most-recent record")
	}
	if recent.Message != "TypeError: x" || !recent.Timestamp.Equal(later.Timestamp) {
		t.Fatalf("expected superseded record to be most recent, got %+v", recent)
	}
}

func TestErrorQueueDistinguishesSourceFiles(t *testing.T) {
	q := NewErrorQueue()
	q.Enqueue(schema.ErrorRecord{Message: "TypeError: x", SourceFile: "a.js"})
	q.Enqueue(schema.ErrorRecord{Message: "TypeError: x", SourceFile: "b.js"})
	if q.Len() != 2 {
		t.Fatalf("same message in different files must not supersede, got %d records", q.Len())
	}
}

func TestErrorQueueFlushEmpties(t *testing.T) {
	q := NewErrorQueue()
	q.Enqueue(schema.ErrorRecord{Message: "a"})
	q.Enqueue(schema.ErrorRecord{Message: "b"})
	records := q.Flush()
	if len(records) != 2 {
		t.Fatalf("expected 2 flushed records, got %d", len(records))
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after flush, got %d", q.Len())
	}
	if _, ok := q.MostRecent(); ok {
		t.Fatalf("expected no most-recent record after flush")
	}
}
