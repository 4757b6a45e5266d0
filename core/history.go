package core

import (
	"strings"
	"sync"

	"pkt.systems/forgeview/schema"
)

// ViewHistory is the bounded back/forward navigation stack over inspected
// artifacts. Visiting a path that is already present moves it to the
// most-recent position instead of duplicating it; the history never exceeds
// its bound.
type ViewHistory struct {
	mu      sync.Mutex
	entries []string
	cursor  int
	max     int
	loader  func(path string)
	cached  map[string]struct{}
}

// NewViewHistory constructs a history with the given bound. The loader is
// invoked when navigation lands on a path whose content is not cached; it
// may be nil.
func NewViewHistory(max int, loader func(path string)) *ViewHistory {
	if max <= 0 {
		max = schema.DefaultHistoryMax
	}
	return &ViewHistory{
		cursor: -1,
		max:    max,
		loader: loader,
		cached: make(map[string]struct{}),
	}
}

// Visit records an inspected path as most recent and moves the cursor to it.
func (h *ViewHistory) Visit(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, entry := range h.entries {
		if entry == path {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
	h.entries = append(h.entries, path)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	h.cursor = len(h.entries) - 1
}

// Back moves the cursor one position toward the oldest entry. Out of bounds
// is a no-op.
func (h *ViewHistory) Back() (string, bool) {
	return h.move(-1)
}

// Forward moves the cursor one position toward the newest entry. Out of
// bounds is a no-op.
func (h *ViewHistory) Forward() (string, bool) {
	return h.move(1)
}

func (h *ViewHistory) move(delta int) (string, bool) {
	h.mu.Lock()
	next := h.cursor + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return "", false
	}
	h.cursor = next
	path := h.entries[next]
	_, cached := h.cached[path]
	loader := h.loader
	h.mu.Unlock()
	if !cached && loader != nil {
		loader(path)
	}
	return path, true
}

// CanGoBack reports whether Back would move the cursor.
func (h *ViewHistory) CanGoBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

// CanGoForward reports whether Forward would move the cursor.
func (h *ViewHistory) CanGoForward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor >= 0 && h.cursor < len(h.entries)-1
}

// Current returns the path under the cursor.
func (h *ViewHistory) Current() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor < 0 || h.cursor >= len(h.entries) {
		return "", false
	}
	return h.entries[h.cursor], true
}

// Entries returns a copy of the history, oldest first.
func (h *ViewHistory) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

// Len reports the number of entries.
func (h *ViewHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// MarkCached records that content for the path is locally available, so
// navigation will not trigger another load.
func (h *ViewHistory) MarkCached(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cached[path] = struct{}{}
}

// Clear drops all entries and cache markers.
func (h *ViewHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.cursor = -1
	h.cached = make(map[string]struct{})
}
