package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pkt.systems/forgeview/internal/mockbackend"
	"pkt.systems/forgeview/schema"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: url})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientRoundTripsAgainstMockBackend(t *testing.T) {
	backend := mockbackend.New(mockbackend.Options{})
	backend.SetFile("demo", "app/main.py", "print('hi')")
	server := httptest.NewServer(backend.Handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx := context.Background()

	run, err := client.Run(ctx, schema.RunRequest{ProjectName: "demo", TechStack: "python-flask"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !run.Success || run.PreviewURL == "" {
		t.Fatalf("expected successful run with preview url, got %+v", run)
	}

	fix, err := client.Remediate(ctx, schema.RemediationRequest{
		ProjectName:  "demo",
		ErrorMessage: "SyntaxError: bad",
		ErrorType:    schema.ErrorTypeSyntax,
	})
	if err != nil {
		t.Fatalf("remediate: %v", err)
	}
	if !fix.Success || !fix.ChangesApplied {
		t.Fatalf("expected applied fix, got %+v", fix)
	}

	tree, err := client.FileTree(ctx, "demo")
	if err != nil {
		t.Fatalf("file tree: %v", err)
	}
	paths := schema.FilePaths(tree)
	if len(paths) != 1 || paths[0] != "app/main.py" {
		t.Fatalf("unexpected tree paths %v", paths)
	}

	content, err := client.FileContent(ctx, "demo", "app/main.py")
	if err != nil {
		t.Fatalf("file content: %v", err)
	}
	if content != "print('hi')" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientClassifiesUnreachableBackend(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")
	_, err := client.Run(context.Background(), schema.RunRequest{ProjectName: "demo"})
	var berr *Error
	if !errors.As(err, &berr) || berr.Kind != ErrorUnavailable {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestClientClassifiesStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FileTree(context.Background(), "demo")
	var berr *Error
	if !errors.As(err, &berr) || berr.Kind != ErrorStatus {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestClientClassifiesDecodeErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FileTree(context.Background(), "demo")
	var berr *Error
	if !errors.As(err, &berr) || berr.Kind != ErrorDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestClientReportsBackendRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error":"unknown project"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FileTree(context.Background(), "demo")
	var berr *Error
	if !errors.As(err, &berr) || berr.Kind != ErrorRejected {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, schema.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
