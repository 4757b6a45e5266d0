// Package forgeview composes the preview engine: the orchestration
// controller, the event stream, the error recovery loop, the preview
// refresh scheduler, and the file view history, wired against a builder
// backend.
package forgeview

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"pkt.systems/forgeview/core"
	"pkt.systems/forgeview/internal/mirror"
	"pkt.systems/forgeview/schema"
	"pkt.systems/forgeview/stream"
	"pkt.systems/pslog"
)

const (
	historyFetchTimeout = 30 * time.Second
	mirrorSyncTimeout   = 2 * time.Minute
)

// Options configures the engine compositor.
type Options struct {
	// Backend is the builder backend client. Required.
	Backend core.BackendClient
	// StreamBaseURL is the base URL for the build event stream. Usually
	// the same host the backend client talks to.
	StreamBaseURL string
	// Target receives preview reloads. Nil disables reloading.
	Target core.PreviewTarget
	// Sinks receive snapshots, conversation lines, and file trees.
	Sinks []core.EventSink
	// Mirror, when set, is synced from the backend whenever the file
	// tree is rebuilt.
	Mirror *mirror.Mirror
	// Config supplies timings and bounds; zero fields use defaults.
	Config schema.EngineConfig
	// HTTPClient overrides the stream's HTTP client. Mainly for tests.
	HTTPClient *http.Client
	Logger     pslog.Logger
}

// Engine is the top-level compositor. One engine drives one project
// preview at a time; starting a new build supersedes the previous one.
type Engine struct {
	cfg        schema.EngineConfig
	logger     pslog.Logger
	backend    core.BackendClient
	controller *core.Controller
	recovery   *core.RecoveryLoop
	scheduler  *core.RefreshScheduler
	history    *core.ViewHistory
	convo      *core.ConversationBuffer
	mirror     *mirror.Mirror

	mu      sync.Mutex
	project schema.ProjectID
	files   map[string]string
}

// New builds an engine from options.
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, errors.New("forgeview: backend client is required")
	}
	if opts.StreamBaseURL == "" {
		return nil, errors.New("forgeview: stream base url is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	cfg := schema.NormalizeEngineConfig(opts.Config)

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		backend: opts.Backend,
		convo:   core.NewConversationBuffer(cfg.ConversationMaxLines),
		mirror:  opts.Mirror,
		files:   make(map[string]string),
	}
	e.scheduler = core.NewRefreshScheduler(cfg.RefreshDelay, opts.Target, logger)
	e.history = core.NewViewHistory(cfg.HistoryMax, e.loadHistoryFile)

	sinks := append([]core.EventSink{e.convo}, opts.Sinks...)
	if opts.Mirror != nil {
		sinks = append(sinks, &mirrorSink{engine: e})
	}
	sink := sinkFanout{sinks: sinks}

	e.controller = core.NewController(cfg, core.ControllerDeps{
		NewConnection: func(handler core.ConnectionHandler) core.Connection {
			return stream.NewFactory(stream.Config{
				BaseURL:    opts.StreamBaseURL,
				Project:    e.currentProject(),
				Debounce:   cfg.OpenDebounce,
				HTTPClient: opts.HTTPClient,
				Logger:     logger,
			})(handler)
		},
		Backend:     opts.Backend,
		Sink:        sink,
		Changes:     e.scheduler,
		Diagnostics: diagForwarder{engine: e},
		Logger:      logger,
	})
	e.recovery = core.NewRecoveryLoop(cfg, core.RecoveryDeps{
		Backend:  opts.Backend,
		Sink:     sink,
		Changes:  e.scheduler,
		Files:    e.controller,
		Observer: e.controller,
		Logger:   logger,
	})
	return e, nil
}

// Start begins a build/preview session for the project.
func (e *Engine) Start(ctx context.Context, project schema.ProjectID, stack schema.TechStack) (schema.Session, error) {
	e.mu.Lock()
	e.project = project
	e.files = make(map[string]string)
	e.mu.Unlock()
	e.history.Clear()

	session, err := e.controller.Start(ctx, core.RunOptions{Project: project, Stack: stack})
	if err != nil {
		return schema.Session{}, err
	}
	e.recovery.Bind(session.ID, project)
	return session, nil
}

// Cancel tears down the active session.
func (e *Engine) Cancel() {
	e.controller.Cancel()
	e.recovery.Reset()
	e.history.Clear()
	e.mu.Lock()
	e.files = make(map[string]string)
	e.mu.Unlock()
}

// Retry restarts the build with the last-used options.
func (e *Engine) Retry(ctx context.Context) (schema.Session, error) {
	session, err := e.controller.Retry(ctx)
	if err != nil {
		return schema.Session{}, err
	}
	e.recovery.Bind(session.ID, session.Project)
	return session, nil
}

// Close stops all background activity. The engine cannot be reused.
func (e *Engine) Close() {
	e.controller.Cancel()
	e.recovery.Stop()
	e.scheduler.Stop()
}

// Snapshot returns the current progress view.
func (e *Engine) Snapshot() schema.ProgressSnapshot {
	return e.controller.Snapshot()
}

// Session returns the active session, if any.
func (e *Engine) Session() (schema.Session, bool) {
	return e.controller.Session()
}

// Conversation returns the accumulated conversation lines.
func (e *Engine) Conversation() []string {
	return e.convo.Lines()
}

// ReportFailure feeds a captured runtime failure into the recovery loop.
func (e *Engine) ReportFailure(record schema.ErrorRecord) {
	e.recovery.ReportFailure(record)
}

// RefreshFileTree rebuilds the artifact tree from the backend.
func (e *Engine) RefreshFileTree() {
	e.controller.RefreshFileTree()
}

// NotifyChange schedules a debounced preview refresh.
func (e *Engine) NotifyChange() {
	e.scheduler.NotifyChange()
}

// RefreshNow forces an immediate preview refresh.
func (e *Engine) RefreshNow() {
	e.scheduler.RefreshNow()
}

// OpenFile fetches a file, records the visit in the view history, and
// returns its content.
func (e *Engine) OpenFile(ctx context.Context, path string) (string, error) {
	project := e.currentProject()
	if project == "" {
		return "", schema.ErrNoSession
	}
	content, err := e.backend.FileContent(ctx, project, path)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	e.files[path] = content
	e.mu.Unlock()
	e.history.Visit(path)
	e.history.MarkCached(path)
	return content, nil
}

// HistoryBack moves one step back in the view history. Out of range is a
// no-op.
func (e *Engine) HistoryBack() (string, bool) {
	return e.history.Back()
}

// HistoryForward moves one step forward in the view history.
func (e *Engine) HistoryForward() (string, bool) {
	return e.history.Forward()
}

// HistoryEntries returns the visited paths, oldest first.
func (e *Engine) HistoryEntries() []string {
	return e.history.Entries()
}

// CanGoBack reports whether a back step is available.
func (e *Engine) CanGoBack() bool {
	return e.history.CanGoBack()
}

// CanGoForward reports whether a forward step is available.
func (e *Engine) CanGoForward() bool {
	return e.history.CanGoForward()
}

// CachedFile returns the locally cached content of a visited file.
func (e *Engine) CachedFile(path string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	content, ok := e.files[path]
	return content, ok
}

func (e *Engine) currentProject() schema.ProjectID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.project
}

// loadHistoryFile fetches a history path whose content fell out of the
// cache. Fetching is asynchronous; failures only log.
func (e *Engine) loadHistoryFile(path string) {
	project := e.currentProject()
	if project == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyFetchTimeout)
		defer cancel()
		content, err := e.backend.FileContent(ctx, project, path)
		if err != nil {
			e.logger.Warn("history file fetch failed", "project", project, "path", path, "err", err)
			return
		}
		e.mu.Lock()
		e.files[path] = content
		e.mu.Unlock()
		e.history.MarkCached(path)
	}()
}

// diagForwarder routes controller diagnostics into the recovery loop.
// Indirection only because the controller is constructed first.
type diagForwarder struct {
	engine *Engine
}

func (d diagForwarder) ReportFailure(record schema.ErrorRecord) {
	if d.engine.recovery == nil {
		return
	}
	d.engine.recovery.ReportFailure(record)
}

// mirrorSink syncs the local artifact mirror whenever the file tree is
// rebuilt.
type mirrorSink struct {
	engine *Engine
}

func (m *mirrorSink) OnSnapshot(schema.ProgressSnapshot) {}

func (m *mirrorSink) OnConversation(schema.ConversationEvent) {}

func (m *mirrorSink) OnFileTree(event schema.FileTreeEvent) {
	e := m.engine
	if e.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorSyncTimeout)
		defer cancel()
		if _, err := e.mirror.Sync(ctx, event.Project); err != nil {
			e.logger.Warn("mirror sync failed", "project", event.Project, "err", err)
		}
	}()
}
