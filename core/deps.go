package core

import (
	"context"

	"pkt.systems/forgeview/schema"
	"pkt.systems/pslog"
)

// BackendClient is the builder backend consumed by the engine.
type BackendClient interface {
	Run(ctx context.Context, req schema.RunRequest) (schema.RunResponse, error)
	Remediate(ctx context.Context, req schema.RemediationRequest) (schema.RemediationResponse, error)
	FileTree(ctx context.Context, project schema.ProjectID) ([]schema.FileTreeNode, error)
	FileContent(ctx context.Context, project schema.ProjectID, path string) (string, error)
}

// Connection is one long-lived event stream for a build session.
type Connection interface {
	Open(sessionID schema.SessionID)
	Close()
}

// ConnectionHandler receives decoded events and terminal transport faults
// from a connection.
type ConnectionHandler interface {
	HandleEvent(event schema.BuildEvent)
	HandleDisconnect(err error)
}

// ConnectionFactory builds a connection delivering to the handler.
type ConnectionFactory func(handler ConnectionHandler) Connection

// ControllerDeps captures dependencies for the orchestration controller.
type ControllerDeps struct {
	NewConnection ConnectionFactory
	Backend       BackendClient
	Sink          EventSink
	Changes       ChangeNotifier
	Diagnostics   DiagnosticsSink
	Logger        pslog.Logger
}
