package schema

import (
	"encoding/json"
	"strings"
)

// BuildEventType is the discriminator of inbound stream messages.
type BuildEventType string

const (
	// EventStatus carries a pipeline phase update.
	EventStatus BuildEventType = "status"
	// EventFileCreated announces a new file path.
	EventFileCreated BuildEventType = "file_created"
	// EventFileContentUpdate announces new content for a path.
	EventFileContentUpdate BuildEventType = "file_content_update"
	// EventFileCreationStart marks the start of a file-generation burst.
	EventFileCreationStart BuildEventType = "file_creation_start"
	// EventFileCreationComplete marks the end of a file-generation burst.
	EventFileCreationComplete BuildEventType = "file_creation_complete"
	// EventTerminalOutput carries build log output.
	EventTerminalOutput BuildEventType = "terminal_output"
	// EventFileChanged signals that the artifact tree changed.
	EventFileChanged BuildEventType = "file_changed"
	// EventBuildError reports a build failure from the backend.
	EventBuildError BuildEventType = "build_error"
	// EventPreviewReady reports the authoritative preview URL.
	EventPreviewReady BuildEventType = "preview_ready"
)

// BuildEvent is one typed message delivered over the streaming connection.
// Only the fields relevant to Type are populated.
type BuildEvent struct {
	Type       BuildEventType `json:"type"`
	Phase      Phase          `json:"phase,omitempty"`
	Message    string         `json:"message,omitempty"`
	PreviewURL string         `json:"preview_url,omitempty"`
	Path       string         `json:"path,omitempty"`
	Level      string         `json:"level,omitempty"`
	File       string         `json:"file,omitempty"`
	Line       int            `json:"line,omitempty"`
	URL        string         `json:"url,omitempty"`
}

// DecodeBuildEvent parses one stream message. Unknown types and malformed
// payloads return ok=false; they never propagate as a variant.
func DecodeBuildEvent(data []byte) (BuildEvent, bool) {
	var event BuildEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return BuildEvent{}, false
	}
	switch event.Type {
	case EventStatus:
		if strings.TrimSpace(string(event.Phase)) == "" && strings.TrimSpace(event.Message) == "" {
			return BuildEvent{}, false
		}
	case EventFileCreated, EventFileContentUpdate:
		if strings.TrimSpace(event.Path) == "" {
			return BuildEvent{}, false
		}
	case EventFileCreationStart, EventFileCreationComplete:
		// Message-only markers; an empty message is still meaningful.
	case EventTerminalOutput:
		if strings.TrimSpace(event.Message) == "" {
			return BuildEvent{}, false
		}
	case EventFileChanged:
	case EventBuildError:
		if strings.TrimSpace(event.Message) == "" {
			return BuildEvent{}, false
		}
	case EventPreviewReady:
		if strings.TrimSpace(event.URL) == "" {
			return BuildEvent{}, false
		}
	default:
		return BuildEvent{}, false
	}
	return event, true
}
