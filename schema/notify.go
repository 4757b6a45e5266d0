package schema

// ConversationEvent carries appended conversation log lines.
type ConversationEvent struct {
	Project ProjectID
	Lines   []string
}

// FileTreeEvent carries a wholesale rebuild of the artifact tree.
type FileTreeEvent struct {
	Project ProjectID
	Nodes   []FileTreeNode
}
