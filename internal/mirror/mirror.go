// Package mirror maintains a local on-disk copy of a project's generated
// files. The mirror doubles as an editor-friendly artifact directory and
// as a change source: a directory watcher reports local edits so the
// preview can refresh.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pkt.systems/forgeview/schema"
	"pkt.systems/pslog"
)

// Source provides the remote file tree and file contents.
type Source interface {
	FileTree(ctx context.Context, project schema.ProjectID) ([]schema.FileTreeNode, error)
	FileContent(ctx context.Context, project schema.ProjectID, path string) (string, error)
}

// Mirror syncs remote project files into a local directory.
type Mirror struct {
	mu     sync.Mutex
	root   string
	source Source
	logger pslog.Logger
}

// New creates a mirror rooted at dir.
func New(dir string, source Source, logger pslog.Logger) (*Mirror, error) {
	if dir == "" {
		return nil, errors.New("mirror: dir is required")
	}
	if source == nil {
		return nil, errors.New("mirror: source is required")
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Mirror{root: abs, source: source, logger: logger}, nil
}

// Root returns the absolute mirror directory.
func (m *Mirror) Root() string {
	return m.root
}

// ProjectDir returns the local directory for a project.
func (m *Mirror) ProjectDir(project schema.ProjectID) string {
	return filepath.Join(m.root, string(project))
}

// Sync fetches the project's file tree and writes every file under the
// project directory. Files that vanished remotely are left in place;
// the mirror is additive.
func (m *Mirror) Sync(ctx context.Context, project schema.ProjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nodes, err := m.source.FileTree(ctx, project)
	if err != nil {
		return 0, fmt.Errorf("mirror sync: %w", err)
	}
	paths := schema.FilePaths(nodes)
	written := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		content, err := m.source.FileContent(ctx, project, path)
		if err != nil {
			m.logger.Warn("mirror fetch failed", "project", project, "path", path, "error", err)
			continue
		}
		if err := m.writeFile(project, path, content); err != nil {
			m.logger.Warn("mirror write failed", "project", project, "path", path, "error", err)
			continue
		}
		written++
	}
	m.logger.Debug("mirror synced", "project", project, "files", written, "total", len(paths))
	return written, nil
}

// WriteFile stores a single file under the project directory.
func (m *Mirror) WriteFile(project schema.ProjectID, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeFile(project, path, content)
}

func (m *Mirror) writeFile(project schema.ProjectID, path, content string) error {
	target, err := m.localPath(project, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, []byte(content), 0o644)
}

// localPath resolves a remote path inside the project directory and
// rejects anything that would escape it.
func (m *Mirror) localPath(project schema.ProjectID, path string) (string, error) {
	clean := filepath.Clean(strings.TrimPrefix(path, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("mirror: path %q escapes project directory", path)
	}
	return filepath.Join(m.ProjectDir(project), clean), nil
}
