package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pkt.systems/forgeview/internal/logx"
	"pkt.systems/forgeview/schema"
	"pkt.systems/pslog"
)

// RunOptions describes one build/preview request.
type RunOptions struct {
	Project schema.ProjectID
	Stack   schema.TechStack
}

// Controller drives the remote build/deploy pipeline through the stage
// state machine. All mutation happens under a single mutex; asynchronous
// results are checked against the owning session id before they are applied.
type Controller struct {
	mu   sync.Mutex
	cfg  schema.EngineConfig
	deps ControllerDeps

	session       *schema.Session
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	conn          Connection
	lastOpts      RunOptions
	haveOpts      bool
	graceTimer    *time.Timer

	stage      schema.Stage
	percent    int
	message    string
	errText    string
	mockMode   bool
	previewURL string
}

// NewController constructs a controller with normalized config.
func NewController(cfg schema.EngineConfig, deps ControllerDeps) *Controller {
	if deps.Logger == nil {
		deps.Logger = pslog.Ctx(context.Background())
	}
	return &Controller{
		cfg:   schema.NormalizeEngineConfig(cfg),
		deps:  deps,
		stage: schema.StagePending,
	}
}

// Start begins a new build session. Calling it while a session is active
// first tears down the previous session.
func (c *Controller) Start(ctx context.Context, opts RunOptions) (schema.Session, error) {
	if err := schema.ValidateProjectID(opts.Project); err != nil {
		return schema.Session{}, err
	}
	if c.deps.Backend == nil {
		return schema.Session{}, schema.ErrBackendUnavailable
	}

	c.mu.Lock()
	if c.session != nil {
		c.teardownLocked()
	}
	session := schema.Session{
		ID:        schema.SessionID(newSessionID()),
		Project:   opts.Project,
		CreatedAt: time.Now(),
	}
	c.session = &session
	c.sessionCtx, c.sessionCancel = context.WithCancel(context.WithoutCancel(ctx))
	c.lastOpts = opts
	c.haveOpts = true
	c.resetProgressLocked()
	if c.deps.NewConnection != nil {
		c.conn = c.deps.NewConnection(&sessionHandler{controller: c, session: session.ID})
		c.conn.Open(session.ID)
	}
	runCtx := c.sessionCtx
	c.mu.Unlock()

	log := logx.WithProject(c.deps.Logger, opts.Project)
	log.Info("orchestration start", "session", session.ID, "stack", opts.Stack)
	c.publishSnapshot()
	c.appendConversation(fmt.Sprintf("Starting build for %s...", opts.Project))

	go c.triggerRun(runCtx, session.ID, opts)
	return session, nil
}

// Cancel tears down the active session, if any, and resets to PENDING. It is
// always safe to call, including before Start.
func (c *Controller) Cancel() {
	c.mu.Lock()
	had := c.session != nil
	c.teardownLocked()
	c.resetProgressLocked()
	c.mu.Unlock()
	if had {
		c.deps.Logger.Info("orchestration cancelled")
	}
	c.publishSnapshot()
}

// Retry cancels the active session and starts over with the last-used
// options.
func (c *Controller) Retry(ctx context.Context) (schema.Session, error) {
	c.mu.Lock()
	opts := c.lastOpts
	have := c.haveOpts
	c.mu.Unlock()
	if !have {
		return schema.Session{}, schema.ErrNoSession
	}
	c.Cancel()
	return c.Start(ctx, opts)
}

// Snapshot returns the current progress view. Pure, side-effect-free.
func (c *Controller) Snapshot() schema.ProgressSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Session returns the active session, if any.
func (c *Controller) Session() (schema.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return schema.Session{}, false
	}
	return *c.session, true
}

// MarkRecovered cancels a pending build-error grace timer after a
// successful remediation for the session.
func (c *Controller) MarkRecovered(sessionID schema.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.ID != sessionID {
		return
	}
	c.stopGraceLocked()
}

// RefreshFileTree rebuilds the artifact tree wholesale from the backend and
// publishes it. Safe to call from any goroutine.
func (c *Controller) RefreshFileTree() {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}
	session := *c.session
	ctx := c.sessionCtx
	c.mu.Unlock()
	go c.loadFileTree(ctx, session)
}

func (c *Controller) triggerRun(ctx context.Context, sessionID schema.SessionID, opts RunOptions) {
	log := logx.WithProject(c.deps.Logger, opts.Project).With("session", sessionID)
	resp, err := c.deps.Backend.Run(ctx, schema.RunRequest{ProjectName: opts.Project, TechStack: opts.Stack})
	c.mu.Lock()
	if c.session == nil || c.session.ID != sessionID {
		c.mu.Unlock()
		log.Debug("run trigger result discarded, session changed")
		return
	}
	switch {
	case err != nil:
		log.Warn("run trigger failed", "err", err)
		c.failLocked(fmt.Sprintf("build request failed: %v", err), true)
	case !resp.Success:
		log.Warn("run trigger rejected", "backend_error", resp.Error)
		c.failLocked(fmt.Sprintf("build request rejected: %s", resp.Error), true)
	default:
		if resp.PreviewURL != "" {
			c.previewURL = resp.PreviewURL
		}
		log.Info("run trigger accepted", "preview_url", resp.PreviewURL)
		c.mu.Unlock()
		if resp.PreviewURL != "" && c.deps.Changes != nil {
			c.deps.Changes.SetPreviewURL(resp.PreviewURL)
		}
		return
	}
	c.mu.Unlock()
	c.publishSnapshot()
	c.reportFailureConversation()
}

// handleEvent applies one accepted BuildEvent for the session.
func (c *Controller) handleEvent(sessionID schema.SessionID, event schema.BuildEvent) {
	c.mu.Lock()
	if c.session == nil || c.session.ID != sessionID {
		c.mu.Unlock()
		return
	}
	log := logx.WithProject(c.deps.Logger, c.session.Project).With("session", sessionID)

	var conversation []string
	refreshTree := false
	notifyChange := false
	previewURL := ""

	switch event.Type {
	case schema.EventStatus:
		if stage, ok := schema.StageForPhase(event.Phase); ok {
			c.advanceLocked(stage)
		} else if event.Phase != "" {
			log.Debug("unknown pipeline phase ignored", "phase", event.Phase)
		}
		if event.Message != "" {
			c.message = event.Message
			conversation = append(conversation, event.Message)
		}
		if event.PreviewURL != "" {
			c.previewURL = event.PreviewURL
			previewURL = event.PreviewURL
		}
	case schema.EventPreviewReady:
		// Authoritative fast path: forces the terminal success path
		// regardless of the current stage.
		c.stage = schema.StageReady
		c.percent = 100
		c.errText = ""
		c.mockMode = false
		c.previewURL = event.URL
		previewURL = event.URL
		notifyChange = true
		c.stopGraceLocked()
		conversation = append(conversation, fmt.Sprintf("Preview ready at %s", event.URL))
	case schema.EventBuildError:
		c.message = event.Message
		c.armGraceLocked(sessionID, event.Message)
		conversation = append(conversation, fmt.Sprintf("Build error: %s", event.Message))
		c.reportDiagnostic(schema.ErrorRecord{
			Project:    c.session.Project,
			Message:    event.Message,
			Timestamp:  time.Now(),
			SourceFile: event.File,
			Line:       event.Line,
			Severity:   schema.SeverityError,
		})
	case schema.EventTerminalOutput:
		conversation = append(conversation, event.Message)
		if strings.EqualFold(event.Level, "error") {
			c.reportDiagnostic(schema.ErrorRecord{
				Project:   c.session.Project,
				Message:   event.Message,
				Timestamp: time.Now(),
				Severity:  schema.SeverityError,
			})
		}
	case schema.EventFileCreationStart, schema.EventFileCreationComplete:
		if event.Message != "" {
			c.message = event.Message
			conversation = append(conversation, event.Message)
		}
		refreshTree = event.Type == schema.EventFileCreationComplete
	case schema.EventFileCreated:
		refreshTree = true
	case schema.EventFileContentUpdate:
		notifyChange = true
	case schema.EventFileChanged:
		refreshTree = true
		notifyChange = true
	}
	snapshot := c.snapshotLocked()
	project := c.session.Project
	c.mu.Unlock()

	if c.deps.Sink != nil {
		c.deps.Sink.OnSnapshot(snapshot)
		if len(conversation) > 0 {
			c.deps.Sink.OnConversation(schema.ConversationEvent{Project: project, Lines: conversation})
		}
	}
	if c.deps.Changes != nil {
		if previewURL != "" {
			c.deps.Changes.SetPreviewURL(previewURL)
		}
		if notifyChange {
			c.deps.Changes.NotifyChange()
		}
	}
	if refreshTree {
		c.RefreshFileTree()
	}
}

// handleDisconnect reacts to a connection-level failure. A stream that ends
// after READY is a normal teardown, not a fault.
func (c *Controller) handleDisconnect(sessionID schema.SessionID, err error) {
	c.mu.Lock()
	if c.session == nil || c.session.ID != sessionID {
		c.mu.Unlock()
		return
	}
	if c.stage.Terminal() {
		c.mu.Unlock()
		return
	}
	log := logx.WithProject(c.deps.Logger, c.session.Project).With("session", sessionID)
	if err != nil {
		log.Warn("event stream lost", "err", err)
		c.failLocked(fmt.Sprintf("connection lost: %v", err), true)
	} else {
		log.Warn("event stream ended before completion")
		c.failLocked("connection closed before the build completed", true)
	}
	c.mu.Unlock()
	c.publishSnapshot()
	c.reportFailureConversation()
}

// advanceLocked moves to a later non-terminal stage. Transitions to an
// earlier stage are ignored; duplicates are tolerated.
func (c *Controller) advanceLocked(stage schema.Stage) {
	if c.stage == schema.StageFailed || c.stage == schema.StageReady {
		return
	}
	if schema.StageOrder(stage) <= schema.StageOrder(c.stage) {
		return
	}
	c.stage = stage
	if percent := schema.StagePercent(stage); percent > c.percent {
		c.percent = percent
	}
	if stage.Terminal() {
		c.stopGraceLocked()
	}
}

// failLocked transitions to FAILED. Mock mode is offered whenever a live
// backend could not be confirmed.
func (c *Controller) failLocked(errText string, offerMock bool) {
	c.stage = schema.StageFailed
	c.errText = errText
	c.mockMode = offerMock && c.previewURL == ""
	c.stopGraceLocked()
}

func (c *Controller) armGraceLocked(sessionID schema.SessionID, errText string) {
	c.stopGraceLocked()
	c.graceTimer = time.AfterFunc(c.cfg.FailureGrace, func() {
		c.mu.Lock()
		if c.session == nil || c.session.ID != sessionID || c.stage.Terminal() {
			c.mu.Unlock()
			return
		}
		c.failLocked(errText, true)
		c.mu.Unlock()
		c.publishSnapshot()
		c.reportFailureConversation()
	})
}

func (c *Controller) stopGraceLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

func (c *Controller) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.sessionCancel != nil {
		c.sessionCancel()
		c.sessionCancel = nil
	}
	c.stopGraceLocked()
	c.session = nil
	c.sessionCtx = nil
}

func (c *Controller) resetProgressLocked() {
	c.stage = schema.StagePending
	c.percent = 0
	c.message = ""
	c.errText = ""
	c.mockMode = false
	c.previewURL = ""
}

func (c *Controller) snapshotLocked() schema.ProgressSnapshot {
	return schema.ProgressSnapshot{
		Stage:           c.stage,
		ProgressPercent: c.percent,
		Message:         c.message,
		Error:           c.errText,
		MockMode:        c.mockMode,
		PreviewURL:      c.previewURL,
	}
}

func (c *Controller) publishSnapshot() {
	if c.deps.Sink == nil {
		return
	}
	c.deps.Sink.OnSnapshot(c.Snapshot())
}

func (c *Controller) appendConversation(lines ...string) {
	if c.deps.Sink == nil || len(lines) == 0 {
		return
	}
	c.mu.Lock()
	var project schema.ProjectID
	if c.session != nil {
		project = c.session.Project
	}
	c.mu.Unlock()
	c.deps.Sink.OnConversation(schema.ConversationEvent{Project: project, Lines: lines})
}

func (c *Controller) reportDiagnostic(record schema.ErrorRecord) {
	if c.deps.Diagnostics == nil {
		return
	}
	c.deps.Diagnostics.ReportFailure(record)
}

// reportFailureConversation appends the terminal failure explanation and the
// user's actionable choices to the conversation log.
func (c *Controller) reportFailureConversation() {
	c.mu.Lock()
	if c.stage != schema.StageFailed || c.session == nil {
		c.mu.Unlock()
		return
	}
	project := c.session.Project
	errText := c.errText
	mock := c.mockMode
	c.mu.Unlock()
	if c.deps.Sink == nil {
		return
	}
	lines := []string{fmt.Sprintf("Build failed: %s", errText)}
	if mock {
		lines = append(lines, "You can retry the build, or continue in mock mode with simulated responses.")
	} else {
		lines = append(lines, "You can retry the build.")
	}
	c.deps.Sink.OnConversation(schema.ConversationEvent{Project: project, Lines: lines})
}

func (c *Controller) loadFileTree(ctx context.Context, session schema.Session) {
	if c.deps.Backend == nil || ctx == nil {
		return
	}
	log := logx.WithProject(c.deps.Logger, session.Project).With("session", session.ID)
	nodes, err := c.deps.Backend.FileTree(ctx, session.Project)
	if err != nil {
		log.Warn("file tree refresh failed", "err", err)
		return
	}
	c.mu.Lock()
	stale := c.session == nil || c.session.ID != session.ID
	c.mu.Unlock()
	if stale {
		log.Debug("file tree result discarded, session changed")
		return
	}
	log.Debug("file tree refreshed", "nodes", len(nodes))
	if c.deps.Sink != nil {
		c.deps.Sink.OnFileTree(schema.FileTreeEvent{Project: session.Project, Nodes: nodes})
	}
}

// sessionHandler binds a connection to the session that opened it, so late
// callbacks from a torn-down connection cannot touch a newer session.
type sessionHandler struct {
	controller *Controller
	session    schema.SessionID
}

func (h *sessionHandler) HandleEvent(event schema.BuildEvent) {
	h.controller.handleEvent(h.session, event)
}

func (h *sessionHandler) HandleDisconnect(err error) {
	h.controller.handleDisconnect(h.session, err)
}
