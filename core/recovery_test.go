package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/forgeview/schema"
)

type fakeBackend struct {
	mu            sync.Mutex
	remediations  []schema.RemediationRequest
	remediateResp func(req schema.RemediationRequest) (schema.RemediationResponse, error)
	runResp       schema.RunResponse
	runErr        error
	tree          []schema.FileTreeNode
}

func (f *fakeBackend) Run(context.Context, schema.RunRequest) (schema.RunResponse, error) {
	return f.runResp, f.runErr
}

func (f *fakeBackend) Remediate(_ context.Context, req schema.RemediationRequest) (schema.RemediationResponse, error) {
	f.mu.Lock()
	f.remediations = append(f.remediations, req)
	f.mu.Unlock()
	if f.remediateResp != nil {
		return f.remediateResp(req)
	}
	return schema.RemediationResponse{Success: true, ChangesApplied: true}, nil
}

func (f *fakeBackend) FileTree(context.Context, schema.ProjectID) ([]schema.FileTreeNode, error) {
	return f.tree, nil
}

func (f *fakeBackend) FileContent(context.Context, schema.ProjectID, string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeBackend) requests() []schema.RemediationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.RemediationRequest(nil), f.remediations...)
}

type recordingSink struct {
	mu        sync.Mutex
	snapshots []schema.ProgressSnapshot
	lines     []string
	trees     [][]schema.FileTreeNode
}

func (s *recordingSink) OnSnapshot(snapshot schema.ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
}

func (s *recordingSink) OnConversation(event schema.ConversationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, event.Lines...)
}

func (s *recordingSink) OnFileTree(event schema.FileTreeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees = append(s.trees, event.Nodes)
}

func (s *recordingSink) conversation() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

type recoveryHooks struct {
	mu        sync.Mutex
	recovered []schema.SessionID
	refreshes int
	changes   int
}

func (h *recoveryHooks) MarkRecovered(sessionID schema.SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recovered = append(h.recovered, sessionID)
}

func (h *recoveryHooks) RefreshFileTree() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshes++
}

func (h *recoveryHooks) SetPreviewURL(string) {}

func (h *recoveryHooks) NotifyChange() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changes++
}

func (h *recoveryHooks) counts() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.recovered), h.refreshes, h.changes
}

func newTestRecovery(backend *fakeBackend, sink *recordingSink, hooks *recoveryHooks) *RecoveryLoop {
	cfg := schema.EngineConfig{
		QuietPeriod: 30 * time.Millisecond,
		ReloadDelay: 10 * time.Millisecond,
	}
	return NewRecoveryLoop(cfg, RecoveryDeps{
		Backend:  backend,
		Sink:     sink,
		Changes:  hooks,
		Files:    hooks,
		Observer: hooks,
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRecoveryBatchesBurstIntoOneRequest(t *testing.T) {
	backend := &fakeBackend{}
	sink := &recordingSink{}
	hooks := &recoveryHooks{}
	loop := newTestRecovery(backend, sink, hooks)
	loop.Bind("s1", "demo")
	defer loop.Stop()

	for i := 0; i < 10; i++ {
		loop.ReportFailure(schema.ErrorRecord{
			Message:    fmt.Sprintf("TypeError: boom %d", i),
			SourceFile: "app.js",
			Line:       i,
		})
	}

	waitFor(t, "remediation request", func() bool { return len(backend.requests()) >= 1 })
	time.Sleep(100 * time.Millisecond)

	requests := backend.requests()
	if len(requests) != 1 {
		t.Fatalf("expected one request for the burst, got %d", len(requests))
	}
	if requests[0].ErrorMessage != "TypeError: boom 9" {
		t.Fatalf("expected most recent failure to represent the batch, got %q", requests[0].ErrorMessage)
	}
	if requests[0].ErrorType != schema.ErrorTypeRuntime {
		t.Fatalf("expected runtime classification, got %q", requests[0].ErrorType)
	}
	recovered, refreshes, changes := hooks.counts()
	if recovered != 1 || refreshes != 1 {
		t.Fatalf("expected recovery side effects, got recovered=%d refreshes=%d", recovered, refreshes)
	}
	if changes != 1 {
		t.Fatalf("expected one delayed reload after changes applied, got %d", changes)
	}
}

func TestRecoveryDropsNonActionableFailures(t *testing.T) {
	backend := &fakeBackend{}
	loop := newTestRecovery(backend, &recordingSink{}, &recoveryHooks{})
	loop.Bind("s1", "demo")
	defer loop.Stop()

	loop.ReportFailure(schema.ErrorRecord{Message: "[HMR] Waiting for update signal"})
	loop.ReportFailure(schema.ErrorRecord{Message: "Server listening on port 3000"})

	if loop.Queued() != 0 {
		t.Fatalf("expected nothing queued, got %d", loop.Queued())
	}
	time.Sleep(80 * time.Millisecond)
	if len(backend.requests()) != 0 {
		t.Fatalf("expected no remediation requests, got %d", len(backend.requests()))
	}
}

func TestRecoveryFallsBackToGenericTier(t *testing.T) {
	backend := &fakeBackend{}
	backend.remediateResp = func(req schema.RemediationRequest) (schema.RemediationResponse, error) {
		if req.ErrorType == schema.ErrorTypeGeneric {
			return schema.RemediationResponse{Success: true, Explanation: "rebuilt the handler"}, nil
		}
		return schema.RemediationResponse{Success: false, Error: "cannot fix"}, nil
	}
	sink := &recordingSink{}
	hooks := &recoveryHooks{}
	loop := newTestRecovery(backend, sink, hooks)
	loop.Bind("s1", "demo")
	defer loop.Stop()

	loop.ReportFailure(schema.ErrorRecord{Message: "SyntaxError: bad", SourceFile: "main.py"})
	waitFor(t, "two-tier remediation", func() bool { return len(backend.requests()) >= 2 })

	requests := backend.requests()
	if requests[0].ErrorType != schema.ErrorTypeSyntax {
		t.Fatalf("first tier must be targeted, got %q", requests[0].ErrorType)
	}
	if requests[1].ErrorType != schema.ErrorTypeGeneric {
		t.Fatalf("second tier must be generic, got %q", requests[1].ErrorType)
	}
	if requests[1].FilePath != "" || requests[1].LineNumber != 0 {
		t.Fatalf("generic tier must drop file targeting, got %+v", requests[1])
	}
	waitFor(t, "success conversation", func() bool {
		for _, line := range sink.conversation() {
			if line == "rebuilt the handler" {
				return true
			}
		}
		return false
	})
}

func TestRecoveryReportsWhenBothTiersFail(t *testing.T) {
	backend := &fakeBackend{}
	backend.remediateResp = func(schema.RemediationRequest) (schema.RemediationResponse, error) {
		return schema.RemediationResponse{Success: false, Error: "nope"}, nil
	}
	sink := &recordingSink{}
	hooks := &recoveryHooks{}
	loop := newTestRecovery(backend, sink, hooks)
	loop.Bind("s1", "demo")
	defer loop.Stop()

	loop.ReportFailure(schema.ErrorRecord{Message: "SyntaxError: bad"})
	waitFor(t, "failure conversation", func() bool {
		for _, line := range sink.conversation() {
			if strings.HasPrefix(line, "Automatic fix failed:") {
				return true
			}
		}
		return false
	})

	if recovered, _, _ := hooks.counts(); recovered != 0 {
		t.Fatalf("failed remediation must not mark recovery")
	}
	if loop.Queued() != 0 {
		t.Fatalf("failed batch must be dropped, got %d queued", loop.Queued())
	}
}

func TestRecoveryDiscardsStaleSessionResults(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{}
	backend.remediateResp = func(schema.RemediationRequest) (schema.RemediationResponse, error) {
		<-release
		return schema.RemediationResponse{Success: true, ChangesApplied: true}, nil
	}
	hooks := &recoveryHooks{}
	loop := newTestRecovery(backend, &recordingSink{}, hooks)
	loop.Bind("s1", "demo")
	defer loop.Stop()

	loop.ReportFailure(schema.ErrorRecord{Message: "TypeError: boom"})
	waitFor(t, "request in flight", func() bool { return len(backend.requests()) == 1 })

	loop.Bind("s2", "demo")
	close(release)
	time.Sleep(100 * time.Millisecond)

	if recovered, refreshes, _ := hooks.counts(); recovered != 0 || refreshes != 0 {
		t.Fatalf("stale result must be discarded, got recovered=%d refreshes=%d", recovered, refreshes)
	}
}

func TestRecoveryInFlightSuppressesSecondRequest(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{}
	backend.remediateResp = func(schema.RemediationRequest) (schema.RemediationResponse, error) {
		<-release
		return schema.RemediationResponse{Success: true}, nil
	}
	loop := newTestRecovery(backend, &recordingSink{}, &recoveryHooks{})
	loop.Bind("s1", "demo")
	defer loop.Stop()

	loop.ReportFailure(schema.ErrorRecord{Message: "TypeError: first"})
	waitFor(t, "first request", func() bool { return len(backend.requests()) == 1 })

	// While the first request is in flight, a new burst must wait.
	loop.ReportFailure(schema.ErrorRecord{Message: "TypeError: second"})
	time.Sleep(80 * time.Millisecond)
	if got := len(backend.requests()); got != 1 {
		t.Fatalf("in-flight remediation must serialize requests, got %d", got)
	}
	close(release)
}
