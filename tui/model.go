// Package tui renders the build dashboard: pipeline progress, the
// conversation log, the artifact tree, and the file viewer with
// back/forward history.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pkt.systems/forgeview"
	"pkt.systems/forgeview/schema"
)

const fileOpenTimeout = 30 * time.Second

// Model is the dashboard model.
type Model struct {
	engine  *forgeview.Engine
	project schema.ProjectID
	keys    KeyMap

	snapshot schema.ProgressSnapshot
	lines    []string
	paths    []string
	cursor   int

	filePath    string
	fileContent string

	progress progress.Model
	convo    viewport.Model
	file     viewport.Model
	width    int
	height   int
	ready    bool
	status   string
}

// NewModel creates a dashboard for an engine session.
func NewModel(engine *forgeview.Engine, project schema.ProjectID) Model {
	return Model{
		engine:   engine,
		project:  project,
		keys:     DefaultKeyMap(),
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		return m, nil

	case snapshotMsg:
		m.snapshot = schema.ProgressSnapshot(msg)
		return m, nil

	case conversationMsg:
		m.lines = append(m.lines, msg.lines...)
		m.convo.SetContent(strings.Join(m.lines, "\n"))
		m.convo.GotoBottom()
		return m, nil

	case fileTreeMsg:
		m.paths = schema.FilePaths(msg.nodes)
		if m.cursor >= len(m.paths) {
			m.cursor = max(0, len(m.paths)-1)
		}
		return m, nil

	case fileOpenedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("open %s: %v", msg.path, msg.err)
			return m, nil
		}
		m.status = ""
		m.filePath = msg.path
		m.fileContent = msg.content
		m.file.SetContent(msg.content)
		m.file.GotoTop()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.engine.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.paths)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if m.cursor < len(m.paths) {
			return m, m.openFileCmd(m.paths[m.cursor])
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		if path, ok := m.engine.HistoryBack(); ok {
			return m, m.showCachedCmd(path)
		}
		return m, nil

	case key.Matches(msg, m.keys.Forward):
		if path, ok := m.engine.HistoryForward(); ok {
			return m, m.showCachedCmd(path)
		}
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), fileOpenTimeout)
			defer cancel()
			if _, err := m.engine.Retry(ctx); err != nil {
				return fileOpenedMsg{path: "rebuild", err: err}
			}
			return nil
		}

	case key.Matches(msg, m.keys.Cancel):
		m.engine.Cancel()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.engine.RefreshNow()
		return m, nil
	}

	var cmd tea.Cmd
	m.convo, cmd = m.convo.Update(msg)
	return m, cmd
}

func (m Model) openFileCmd(path string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fileOpenTimeout)
		defer cancel()
		content, err := engine.OpenFile(ctx, path)
		return fileOpenedMsg{path: path, content: content, err: err}
	}
}

// showCachedCmd renders a history entry from the engine's file cache.
// Content that fell out of the cache is fetched in the background by the
// history itself and shows up on the next open.
func (m Model) showCachedCmd(path string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		content, ok := engine.CachedFile(path)
		if !ok {
			return fileOpenedMsg{path: path, content: "(loading...)"}
		}
		return fileOpenedMsg{path: path, content: content}
	}
}

func (m *Model) layout() {
	contentHeight := max(m.height-8, 4)
	m.convo = viewport.New(max(m.width/2-4, 20), contentHeight)
	m.convo.SetContent(strings.Join(m.lines, "\n"))
	m.convo.GotoBottom()
	m.file = viewport.New(max(m.width/2-4, 20), contentHeight)
	m.file.SetContent(m.fileContent)
	m.progress.Width = max(m.width-30, 10)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := headerStyle.Render(fmt.Sprintf("forgeview · %s", m.project))
	bar := m.progress.ViewAs(float64(m.snapshot.ProgressPercent) / 100.0)
	stage := m.renderStage()

	treeLines := make([]string, 0, len(m.paths))
	for i, path := range m.paths {
		line := "  " + path
		if i == m.cursor {
			line = selectedStyle.Render("> " + path)
		}
		treeLines = append(treeLines, line)
	}
	if len(treeLines) == 0 {
		treeLines = append(treeLines, mutedStyle.Render("(no files yet)"))
	}

	fileTitle := "file"
	if m.filePath != "" {
		fileTitle = m.filePath
	}
	left := paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		paneTitleStyle.Render("conversation"),
		m.convo.View(),
	))
	right := paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		paneTitleStyle.Render(fileTitle),
		m.file.View(),
	))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	statusLine := m.renderStatus()
	tree := mutedStyle.Render(strings.Join(treeLines, "  "))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		statusBarStyle.Render(stage+" "+bar),
		body,
		tree,
		statusLine,
	)
}

func (m Model) renderStage() string {
	stage := m.snapshot.Stage
	if stage == "" {
		stage = schema.StagePending
	}
	switch stage {
	case schema.StageFailed:
		return stageFailedStyle.Render(string(stage))
	case schema.StageReady:
		return stageReadyStyle.Render(string(stage))
	default:
		return stageStyle.Render(string(stage))
	}
}

func (m Model) renderStatus() string {
	if m.status != "" {
		return errorStyle.Render(m.status)
	}
	if m.snapshot.Error != "" {
		text := "error: " + m.snapshot.Error
		if m.snapshot.MockMode {
			text += " (mock mode available, press b to rebuild)"
		}
		return errorStyle.Render(text)
	}
	if m.snapshot.Message != "" {
		return statusBarStyle.Render(m.snapshot.Message)
	}
	return mutedStyle.Render("b rebuild · c cancel · r reload preview · ←/→ history · q quit")
}
