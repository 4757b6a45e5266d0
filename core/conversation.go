package core

import (
	"sync"

	"pkt.systems/forgeview/schema"
)

// ConversationBuffer retains the user-facing conversation log. It implements
// EventSink so it can sit behind the engine's sink fanout.
type ConversationBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewConversationBuffer constructs a buffer bounded to max lines.
func NewConversationBuffer(max int) *ConversationBuffer {
	if max <= 0 {
		max = schema.DefaultConversationMaxLines
	}
	return &ConversationBuffer{max: max}
}

// OnSnapshot implements EventSink.
func (b *ConversationBuffer) OnSnapshot(schema.ProgressSnapshot) {}

// OnConversation implements EventSink.
func (b *ConversationBuffer) OnConversation(event schema.ConversationEvent) {
	if len(event.Lines) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, event.Lines...)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// OnFileTree implements EventSink.
func (b *ConversationBuffer) OnFileTree(schema.FileTreeEvent) {}

// Lines returns a copy of the retained log.
func (b *ConversationBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}
