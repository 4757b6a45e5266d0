// Package mockbackend is an in-process builder backend for development
// and tests. It serves the same JSON-over-HTTP contract as the real
// backend and replays a scripted build over the event stream.
package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"pkt.systems/forgeview/schema"
	"pkt.systems/pslog"
)

// Options configures the mock backend.
type Options struct {
	// Script is the event sequence replayed per stream. Empty means the
	// default happy-path build.
	Script []schema.BuildEvent
	// StepDelay is the pause between scripted events.
	StepDelay time.Duration
	// FailRemediation makes every remediation request report failure.
	FailRemediation bool
	// PreviewURL is reported by run responses and the preview_ready event.
	PreviewURL string
	Logger     pslog.Logger
}

// Server implements the builder backend HTTP contract with canned
// behavior.
type Server struct {
	mu        sync.Mutex
	opts      Options
	logger    pslog.Logger
	files     map[schema.ProjectID]map[string]string
	runCount  int
	fixCount  int
	streamed  int
	lastError schema.RemediationRequest
}

// New creates a mock backend server.
func New(opts Options) *Server {
	if opts.StepDelay <= 0 {
		opts.StepDelay = 20 * time.Millisecond
	}
	if opts.PreviewURL == "" {
		opts.PreviewURL = "http://127.0.0.1:39999/preview"
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Server{
		opts:   opts,
		logger: logger,
		files:  make(map[schema.ProjectID]map[string]string),
	}
}

// Handler returns the HTTP handler for the backend contract.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/remediate", s.handleRemediate)
	mux.HandleFunc("/api/projects/", s.handleProjects)
	return mux
}

// RunCount reports how many run requests were accepted.
func (s *Server) RunCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCount
}

// RemediationCount reports how many remediation requests were received.
func (s *Server) RemediationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixCount
}

// LastRemediation returns the most recent remediation request.
func (s *Server) LastRemediation() schema.RemediationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// StreamCount reports how many stream connections were served.
func (s *Server) StreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamed
}

// SetFile seeds a project file served by the files endpoints.
func (s *Server) SetFile(project schema.ProjectID, path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files[project] == nil {
		s.files[project] = make(map[string]string)
	}
	s.files[project][path] = content
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req schema.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, schema.RunResponse{Error: "invalid request body"})
		return
	}
	if err := schema.ValidateProjectID(req.ProjectName); err != nil {
		writeJSON(w, http.StatusBadRequest, schema.RunResponse{Error: err.Error()})
		return
	}
	s.mu.Lock()
	s.runCount++
	s.mu.Unlock()
	s.logger.Info("mock run accepted", "project", req.ProjectName, "stack", req.TechStack)
	writeJSON(w, http.StatusOK, schema.RunResponse{
		Success:    true,
		PreviewURL: s.opts.PreviewURL,
	})
}

func (s *Server) handleRemediate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req schema.RemediationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, schema.RemediationResponse{Error: "invalid request body"})
		return
	}
	s.mu.Lock()
	s.fixCount++
	s.lastError = req
	fail := s.opts.FailRemediation
	s.mu.Unlock()
	if fail {
		s.logger.Info("mock remediation refused", "project", req.ProjectName)
		writeJSON(w, http.StatusOK, schema.RemediationResponse{
			Success: false,
			Error:   "no fix available",
		})
		return
	}
	s.logger.Info("mock remediation applied", "project", req.ProjectName, "type", req.ErrorType)
	writeJSON(w, http.StatusOK, schema.RemediationResponse{
		Success:        true,
		Explanation:    fmt.Sprintf("Patched %s error in %s", req.ErrorType, orDefault(req.FilePath, "the project")),
		Suggestions:    []string{"Re-run the preview to confirm the fix"},
		ChangesApplied: true,
	})
}

// handleProjects routes /api/projects/{name}/{files|file|stream}.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	name, op, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		http.NotFound(w, r)
		return
	}
	project := schema.ProjectID(name)
	switch op {
	case "files":
		s.handleFiles(w, r, project)
	case "file":
		s.handleFile(w, r, project)
	case "stream":
		s.handleStream(w, r, project)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request, project schema.ProjectID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	paths := make([]string, 0, len(s.files[project]))
	for path := range s.files[project] {
		paths = append(paths, path)
	}
	s.mu.Unlock()
	sort.Strings(paths)
	writeJSON(w, http.StatusOK, schema.FileTreeResponse{
		Success:  true,
		FileTree: buildTree(paths),
	})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request, project schema.ProjectID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := r.URL.Query().Get("path")
	s.mu.Lock()
	content, ok := s.files[project][path]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, schema.FileContentResponse{Error: "file not found"})
		return
	}
	writeJSON(w, http.StatusOK, schema.FileContentResponse{
		Success: true,
		Content: content,
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, project schema.ProjectID) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	s.streamed++
	script := s.opts.Script
	s.mu.Unlock()
	if len(script) == 0 {
		script = DefaultScript(s.opts.PreviewURL)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	s.logger.Info("mock stream opened", "project", project, "session", r.URL.Query().Get("session"))
	for _, event := range script {
		select {
		case <-r.Context().Done():
			s.logger.Info("mock stream closed early", "project", project)
			return
		case <-time.After(s.opts.StepDelay):
		}
		if event.Type == schema.EventFileContentUpdate || event.Type == schema.EventFileCreated {
			s.SetFile(project, event.Path, "// generated\n")
		}
		if err := writeSSE(w, event); err != nil {
			return
		}
		flusher.Flush()
	}
	// Hold the stream open until the client disconnects, like a real
	// builder that keeps emitting terminal output.
	<-r.Context().Done()
	s.logger.Info("mock stream closed", "project", project)
}

// DefaultScript is the happy-path build: all stages in order, a couple
// of generated files, then preview_ready.
func DefaultScript(previewURL string) []schema.BuildEvent {
	return []schema.BuildEvent{
		{Type: schema.EventStatus, Phase: "generate", Message: "Generating backend code"},
		{Type: schema.EventFileCreationStart, Message: "Writing project files"},
		{Type: schema.EventFileCreated, Path: "app/main.py", Message: "Created app/main.py"},
		{Type: schema.EventFileContentUpdate, Path: "app/main.py"},
		{Type: schema.EventFileCreationComplete, Message: "Project files written"},
		{Type: schema.EventStatus, Phase: "build", Message: "Building image"},
		{Type: schema.EventTerminalOutput, Message: "Step 1/4 : FROM python:3.12-slim", Level: "info"},
		{Type: schema.EventStatus, Phase: "deploy", Message: "Deploying container"},
		{Type: schema.EventStatus, Phase: "health", Message: "Waiting for health check"},
		{Type: schema.EventStatus, Phase: "backend_ready", Message: "Backend is up"},
		{Type: schema.EventStatus, Phase: "frontend", Message: "Preparing frontend"},
		{Type: schema.EventPreviewReady, URL: previewURL, Message: "Preview is live"},
	}
}

// FailingScript builds partway and then reports a compile error.
func FailingScript() []schema.BuildEvent {
	return []schema.BuildEvent{
		{Type: schema.EventStatus, Phase: "generate", Message: "Generating backend code"},
		{Type: schema.EventStatus, Phase: "build", Message: "Building image"},
		{Type: schema.EventBuildError, Message: "SyntaxError: invalid syntax", File: "app/main.py", Line: 12},
	}
}

func buildTree(paths []string) []schema.FileTreeNode {
	root := &treeNode{children: map[string]*treeNode{}}
	for _, path := range paths {
		parts := strings.Split(path, "/")
		node := root
		for i, part := range parts {
			full := strings.Join(parts[:i+1], "/")
			child, ok := node.children[part]
			if !ok {
				child = &treeNode{path: full, children: map[string]*treeNode{}}
				node.children[part] = child
				node.order = append(node.order, part)
			}
			if i == len(parts)-1 {
				child.file = true
			}
			node = child
		}
	}
	return root.nodes()
}

type treeNode struct {
	path     string
	file     bool
	children map[string]*treeNode
	order    []string
}

func (n *treeNode) nodes() []schema.FileTreeNode {
	out := make([]schema.FileTreeNode, 0, len(n.order))
	for _, name := range n.order {
		child := n.children[name]
		node := schema.FileTreeNode{Path: child.path, Kind: schema.NodeFile}
		if len(child.order) > 0 || !child.file {
			node.Kind = schema.NodeDir
			node.Children = child.nodes()
		}
		out = append(out, node)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeSSE(w http.ResponseWriter, event schema.BuildEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return err
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
