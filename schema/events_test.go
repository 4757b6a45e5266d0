package schema

import "testing"

func TestDecodeBuildEvent(t *testing.T) {
	cases := []struct {
		name string
		data string
		ok   bool
		typ  BuildEventType
	}{
		{name: "status with phase", data: `{"type":"status","phase":"generate","message":"generating"}`, ok: true, typ: EventStatus},
		{name: "status message only", data: `{"type":"status","message":"still working"}`, ok: true, typ: EventStatus},
		{name: "status empty", data: `{"type":"status"}`, ok: false},
		{name: "file created", data: `{"type":"file_created","path":"src/app.py"}`, ok: true, typ: EventFileCreated},
		{name: "file created no path", data: `{"type":"file_created"}`, ok: false},
		{name: "file content update", data: `{"type":"file_content_update","path":"src/app.py"}`, ok: true, typ: EventFileContentUpdate},
		{name: "creation start", data: `{"type":"file_creation_start","message":"writing files"}`, ok: true, typ: EventFileCreationStart},
		{name: "creation complete", data: `{"type":"file_creation_complete"}`, ok: true, typ: EventFileCreationComplete},
		{name: "terminal output", data: `{"type":"terminal_output","level":"info","message":"npm install"}`, ok: true, typ: EventTerminalOutput},
		{name: "terminal output empty", data: `{"type":"terminal_output","level":"info"}`, ok: false},
		{name: "file changed", data: `{"type":"file_changed"}`, ok: true, typ: EventFileChanged},
		{name: "build error", data: `{"type":"build_error","message":"SyntaxError","file":"main.py","line":3}`, ok: true, typ: EventBuildError},
		{name: "build error no message", data: `{"type":"build_error","file":"main.py"}`, ok: false},
		{name: "preview ready", data: `{"type":"preview_ready","url":"http://x"}`, ok: true, typ: EventPreviewReady},
		{name: "preview ready no url", data: `{"type":"preview_ready"}`, ok: false},
		{name: "unknown type", data: `{"type":"telemetry","message":"hi"}`, ok: false},
		{name: "missing type", data: `{"message":"hi"}`, ok: false},
		{name: "not json", data: `status: generate`, ok: false},
		{name: "empty", data: ``, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, ok := DecodeBuildEvent([]byte(tc.data))
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && event.Type != tc.typ {
				t.Fatalf("expected type %q, got %q", tc.typ, event.Type)
			}
		})
	}
}

func TestDecodeBuildEventKeepsFields(t *testing.T) {
	event, ok := DecodeBuildEvent([]byte(`{"type":"build_error","message":"boom","file":"src/api.py","line":42}`))
	if !ok {
		t.Fatalf("expected decode to succeed")
	}
	if event.File != "src/api.py" || event.Line != 42 || event.Message != "boom" {
		t.Fatalf("unexpected event: %+v", event)
	}
}
