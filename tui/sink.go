package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"pkt.systems/forgeview/schema"
)

// Messages converted from engine events.
type snapshotMsg schema.ProgressSnapshot

type conversationMsg struct {
	lines []string
}

type fileTreeMsg struct {
	nodes []schema.FileTreeNode
}

type fileOpenedMsg struct {
	path    string
	content string
	err     error
}

// Sink bridges engine events into a running bubbletea program. It is
// safe to register before the program starts: sends are dropped until
// Attach is called.
type Sink struct {
	send func(tea.Msg)
}

// NewSink creates an unattached sink.
func NewSink() *Sink {
	return &Sink{}
}

// Attach connects the sink to a program.
func (s *Sink) Attach(p *tea.Program) {
	s.send = p.Send
}

// OnSnapshot forwards a progress snapshot.
func (s *Sink) OnSnapshot(snapshot schema.ProgressSnapshot) {
	s.post(snapshotMsg(snapshot))
}

// OnConversation forwards conversation lines.
func (s *Sink) OnConversation(event schema.ConversationEvent) {
	s.post(conversationMsg{lines: event.Lines})
}

// OnFileTree forwards a rebuilt file tree.
func (s *Sink) OnFileTree(event schema.FileTreeEvent) {
	s.post(fileTreeMsg{nodes: event.Nodes})
}

func (s *Sink) post(msg tea.Msg) {
	if s.send == nil {
		return
	}
	s.send(msg)
}
