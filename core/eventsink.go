package core

import "pkt.systems/forgeview/schema"

// EventSink receives render-facing events from the engine.
type EventSink interface {
	OnSnapshot(event schema.ProgressSnapshot)
	OnConversation(event schema.ConversationEvent)
	OnFileTree(event schema.FileTreeEvent)
}

// DiagnosticsSink receives captured runtime failures. The hosting
// environment wires its own failure sources (uncaught exceptions, preview
// diagnostics, orchestration faults) into this interface.
type DiagnosticsSink interface {
	ReportFailure(record schema.ErrorRecord)
}

// ChangeNotifier receives artifact change signals and the live preview URL.
type ChangeNotifier interface {
	SetPreviewURL(url string)
	NotifyChange()
}
