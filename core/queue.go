package core

import (
	"sync"

	"pkt.systems/forgeview/schema"
)

// ErrorQueue accumulates classified failures between quiet periods. A newer
// record with the same root cause (message and source file) supersedes the
// older one instead of accumulating.
type ErrorQueue struct {
	mu      sync.Mutex
	records []schema.ErrorRecord
}

// NewErrorQueue constructs an empty queue.
func NewErrorQueue() *ErrorQueue {
	return &ErrorQueue{}
}

// Enqueue adds a record, superseding an existing record of the same root
// cause by moving it to the most-recent position.
func (q *ErrorQueue) Enqueue(record schema.ErrorRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, existing := range q.records {
		if existing.Message == record.Message && existing.SourceFile == record.SourceFile {
			q.records = append(q.records[:i], q.records[i+1:]...)
			break
		}
	}
	q.records = append(q.records, record)
}

// MostRecent returns the newest queued record without removing it.
func (q *ErrorQueue) MostRecent() (schema.ErrorRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.records) == 0 {
		return schema.ErrorRecord{}, false
	}
	return q.records[len(q.records)-1], true
}

// Flush returns all queued records and clears the queue.
func (q *ErrorQueue) Flush() []schema.ErrorRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	records := q.records
	q.records = nil
	return records
}

// Clear discards all queued records.
func (q *ErrorQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = nil
}

// Len reports the number of queued records.
func (q *ErrorQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}
