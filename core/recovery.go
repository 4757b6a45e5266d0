package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pkt.systems/forgeview/internal/logx"
	"pkt.systems/forgeview/schema"
	"pkt.systems/pslog"
)

// FileRefresher rebuilds the artifact view after a successful remediation.
type FileRefresher interface {
	RefreshFileTree()
}

// RecoveryObserver learns that a session recovered from a reported failure.
type RecoveryObserver interface {
	MarkRecovered(sessionID schema.SessionID)
}

// RecoveryDeps captures dependencies for the error recovery loop.
type RecoveryDeps struct {
	Backend  BackendClient
	Sink     EventSink
	Changes  ChangeNotifier
	Files    FileRefresher
	Observer RecoveryObserver
	Logger   pslog.Logger
}

// RecoveryLoop converts noisy runtime failure signals into at most one
// remediation request per burst. A quiet-period timer batches arrivals; the
// in-flight flag is the sole serialization point preventing concurrent
// remediation requests.
type RecoveryLoop struct {
	mu       sync.Mutex
	cfg      schema.EngineConfig
	deps     RecoveryDeps
	queue    *ErrorQueue
	timer    *time.Timer
	inFlight bool
	session  schema.SessionID
	project  schema.ProjectID
}

// NewRecoveryLoop constructs a recovery loop with normalized config.
func NewRecoveryLoop(cfg schema.EngineConfig, deps RecoveryDeps) *RecoveryLoop {
	if deps.Logger == nil {
		deps.Logger = pslog.Ctx(context.Background())
	}
	return &RecoveryLoop{
		cfg:   schema.NormalizeEngineConfig(cfg),
		deps:  deps,
		queue: NewErrorQueue(),
	}
}

// Bind attaches the loop to a build session. Results resolving against an
// older session are discarded.
func (l *RecoveryLoop) Bind(sessionID schema.SessionID, project schema.ProjectID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = sessionID
	l.project = project
	l.queue.Clear()
	l.stopTimerLocked()
}

// Reset detaches the loop and discards queued failures.
func (l *RecoveryLoop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = ""
	l.project = ""
	l.queue.Clear()
	l.stopTimerLocked()
}

// Queued reports how many failures are waiting for the quiet period.
func (l *RecoveryLoop) Queued() int {
	return l.queue.Len()
}

// ReportFailure implements DiagnosticsSink. Only allowlisted,
// non-denylisted failures are queued; every arrival resets the quiet-period
// timer.
func (l *RecoveryLoop) ReportFailure(record schema.ErrorRecord) {
	if record.Type == "" {
		typ, ok := Classify(record.Message)
		if !ok {
			l.deps.Logger.Trace("failure not actionable", "message", record.Message)
			return
		}
		record.Type = typ
	}
	l.mu.Lock()
	if l.session == "" {
		l.mu.Unlock()
		return
	}
	if record.Project == "" {
		record.Project = l.project
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	l.queue.Enqueue(record)
	l.armTimerLocked()
	queued := l.queue.Len()
	log := logx.WithProject(l.deps.Logger, record.Project)
	l.mu.Unlock()
	log.Debug("failure queued", "type", record.Type, "queued", queued)
}

// Stop cancels the quiet-period timer and detaches the loop.
func (l *RecoveryLoop) Stop() {
	l.Reset()
}

func (l *RecoveryLoop) armTimerLocked() {
	l.stopTimerLocked()
	l.timer = time.AfterFunc(l.cfg.QuietPeriod, l.quietElapsed)
}

func (l *RecoveryLoop) stopTimerLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// quietElapsed runs when a burst went quiet. The most recent queued failure
// represents the batch.
func (l *RecoveryLoop) quietElapsed() {
	l.mu.Lock()
	if l.inFlight || l.session == "" {
		l.mu.Unlock()
		return
	}
	record, ok := l.queue.MostRecent()
	if !ok {
		l.mu.Unlock()
		return
	}
	l.inFlight = true
	session := l.session
	l.mu.Unlock()
	go l.remediate(session, record)
}

// remediate runs the two-tier repair: a targeted fix, then exactly one
// broader generic fix before giving up.
func (l *RecoveryLoop) remediate(session schema.SessionID, record schema.ErrorRecord) {
	log := logx.WithProject(l.deps.Logger, record.Project).With("session", session)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Info("remediation start", "type", record.Type, "file", record.SourceFile)
	l.appendConversation(record.Project, fmt.Sprintf("Attempting to fix: %s", record.Message))

	resp, err := l.deps.Backend.Remediate(ctx, schema.RemediationRequest{
		ProjectName:  record.Project,
		ErrorMessage: record.Message,
		FilePath:     record.SourceFile,
		LineNumber:   record.Line,
		ErrorType:    record.Type,
	})
	if err == nil && resp.Success {
		l.resolve(session, record, resp, nil)
		return
	}
	if err != nil {
		log.Warn("targeted remediation failed", "err", err)
	} else {
		log.Warn("targeted remediation rejected", "backend_error", resp.Error)
	}
	l.appendConversation(record.Project, "Targeted fix failed, attempting a general repair...")

	resp, err = l.deps.Backend.Remediate(ctx, schema.RemediationRequest{
		ProjectName:  record.Project,
		ErrorMessage: record.Message,
		ErrorType:    schema.ErrorTypeGeneric,
	})
	if err == nil && resp.Success {
		l.resolve(session, record, resp, nil)
		return
	}
	if err != nil {
		l.resolve(session, record, schema.RemediationResponse{}, fmt.Errorf("remediation service unavailable: %w", err))
		return
	}
	l.resolve(session, record, resp, fmt.Errorf("%w: %s", schema.ErrRemediationFailed, resp.Error))
}

func (l *RecoveryLoop) resolve(session schema.SessionID, record schema.ErrorRecord, resp schema.RemediationResponse, failure error) {
	l.mu.Lock()
	l.inFlight = false
	if l.session != session {
		l.mu.Unlock()
		l.deps.Logger.Debug("remediation result discarded, session changed")
		return
	}
	log := logx.WithProject(l.deps.Logger, record.Project).With("session", session)
	if failure != nil {
		// Both strategies failed. Surface and drop the batch; no automatic
		// retry beyond this.
		l.queue.Clear()
		l.stopTimerLocked()
		l.mu.Unlock()
		log.Warn("remediation unrecoverable", "err", failure)
		l.appendConversation(record.Project,
			fmt.Sprintf("Automatic fix failed: %s", record.Message),
			fmt.Sprintf("Reason: %v", failure))
		return
	}
	l.queue.Clear()
	l.mu.Unlock()

	log.Info("remediation succeeded", "changes_applied", resp.ChangesApplied)
	lines := []string{"Applied an automatic fix."}
	if resp.Explanation != "" {
		lines = append(lines, resp.Explanation)
	}
	for _, suggestion := range resp.Suggestions {
		lines = append(lines, fmt.Sprintf("Suggestion: %s", suggestion))
	}
	l.appendConversation(record.Project, lines...)

	if l.deps.Observer != nil {
		l.deps.Observer.MarkRecovered(session)
	}
	if l.deps.Files != nil {
		l.deps.Files.RefreshFileTree()
	}
	if resp.ChangesApplied && l.deps.Changes != nil {
		// Give the backend a moment to propagate the changed files before
		// the preview reloads.
		time.AfterFunc(l.cfg.ReloadDelay, l.deps.Changes.NotifyChange)
	}
}

func (l *RecoveryLoop) appendConversation(project schema.ProjectID, lines ...string) {
	if l.deps.Sink == nil || len(lines) == 0 {
		return
	}
	l.deps.Sink.OnConversation(schema.ConversationEvent{Project: project, Lines: lines})
}
