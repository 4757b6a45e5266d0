package stream

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pkt.systems/forgeview/core"
	"pkt.systems/forgeview/schema"
)

type captureHandler struct {
	mu          sync.Mutex
	events      []schema.BuildEvent
	disconnects []error
	gotEvent    chan struct{}
	done        chan struct{}
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{
		gotEvent: make(chan struct{}, 16),
		done:     make(chan struct{}, 4),
	}
}

func (h *captureHandler) HandleEvent(event schema.BuildEvent) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	select {
	case h.gotEvent <- struct{}{}:
	default:
	}
}

func (h *captureHandler) HandleDisconnect(err error) {
	h.mu.Lock()
	h.disconnects = append(h.disconnects, err)
	h.mu.Unlock()
	select {
	case h.done <- struct{}{}:
	default:
	}
}

func (h *captureHandler) snapshot() ([]schema.BuildEvent, []error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]schema.BuildEvent(nil), h.events...), append([]error(nil), h.disconnects...)
}

func sseServer(t *testing.T, dials *atomic.Int32, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials != nil {
			dials.Add(1)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		flusher.Flush()
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}))
}

func newConn(t *testing.T, server *httptest.Server, handler core.ConnectionHandler, debounce time.Duration) core.Connection {
	t.Helper()
	factory := NewFactory(Config{
		BaseURL:  server.URL,
		Project:  "demo",
		Debounce: debounce,
	})
	return factory(handler)
}

func TestConnDeliversDecodedEvents(t *testing.T) {
	handler := newCaptureHandler()
	server := sseServer(t, nil, []string{
		`{"type":"status","phase":"generate","message":"working"}`,
		`{"type":"preview_ready","url":"http://x/p"}`,
	})
	defer server.Close()

	conn := newConn(t, server, handler, time.Millisecond)
	conn.Open("s1")

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream never settled")
	}
	events, disconnects := handler.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != schema.EventStatus || events[1].Type != schema.EventPreviewReady {
		t.Fatalf("unexpected event order: %+v", events)
	}
	// The server closed the stream without a transport error.
	if len(disconnects) != 1 || disconnects[0] != nil {
		t.Fatalf("expected one clean disconnect, got %v", disconnects)
	}
}

func TestConnDropsMalformedFrames(t *testing.T) {
	handler := newCaptureHandler()
	server := sseServer(t, nil, []string{
		`{not json`,
		`{"type":"alien_event"}`,
		`{"type":"file_created"}`,
		`{"type":"terminal_output","message":"ok line"}`,
	})
	defer server.Close()

	conn := newConn(t, server, handler, time.Millisecond)
	conn.Open("s1")

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream never settled")
	}
	events, _ := handler.snapshot()
	if len(events) != 1 {
		t.Fatalf("malformed frames must be dropped, got %+v", events)
	}
	if events[0].Message != "ok line" {
		t.Fatalf("expected the valid frame to survive, got %+v", events[0])
	}
}

func TestConnDoubleOpenDialsOnce(t *testing.T) {
	var dials atomic.Int32
	handler := newCaptureHandler()
	server := sseServer(t, &dials, []string{`{"type":"status","phase":"generate"}`})
	defer server.Close()

	conn := newConn(t, server, handler, 20*time.Millisecond)
	conn.Open("s1")
	conn.Open("s1")
	conn.Open("s1")

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream never settled")
	}
	if got := dials.Load(); got != 1 {
		t.Fatalf("rapid opens must collapse into one dial, got %d", got)
	}
}

func TestConnCloseDuringDebounceNeverDials(t *testing.T) {
	var dials atomic.Int32
	handler := newCaptureHandler()
	server := sseServer(t, &dials, nil)
	defer server.Close()

	conn := newConn(t, server, handler, 50*time.Millisecond)
	conn.Open("s1")
	conn.Close()

	time.Sleep(150 * time.Millisecond)
	if got := dials.Load(); got != 0 {
		t.Fatalf("close during debounce must cancel the dial, got %d dials", got)
	}
	if _, disconnects := handler.snapshot(); len(disconnects) != 0 {
		t.Fatalf("deliberate close must not report a disconnect, got %v", disconnects)
	}
}

func TestConnDeliberateCloseSuppressesCallback(t *testing.T) {
	handler := newCaptureHandler()
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-blocked:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(blocked)

	conn := newConn(t, server, handler, time.Millisecond)
	conn.Open("s1")
	time.Sleep(100 * time.Millisecond)
	conn.Close()
	time.Sleep(100 * time.Millisecond)

	if _, disconnects := handler.snapshot(); len(disconnects) != 0 {
		t.Fatalf("deliberate close must not call HandleDisconnect, got %v", disconnects)
	}
}

func TestConnOpenForDifferentSessionIgnored(t *testing.T) {
	var dials atomic.Int32
	handler := newCaptureHandler()
	server := sseServer(t, &dials, nil)
	defer server.Close()

	conn := newConn(t, server, handler, 30*time.Millisecond)
	conn.Open("s1")
	conn.Open("s2")

	time.Sleep(100 * time.Millisecond)
	if got := dials.Load(); got != 1 {
		t.Fatalf("expected a single dial for the owning session, got %d", got)
	}
}

func TestConnReportsHTTPErrorStatus(t *testing.T) {
	handler := newCaptureHandler()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	conn := newConn(t, server, handler, time.Millisecond)
	conn.Open("s1")

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a disconnect callback")
	}
	_, disconnects := handler.snapshot()
	if len(disconnects) != 1 || disconnects[0] == nil {
		t.Fatalf("expected an error disconnect, got %v", disconnects)
	}
}
