package schema

// NodeKind distinguishes files from directories in the artifact tree.
type NodeKind string

const (
	// NodeFile marks a regular file node.
	NodeFile NodeKind = "file"
	// NodeDir marks a directory node.
	NodeDir NodeKind = "dir"
)

// FileTreeNode is one node of the project artifact tree. The tree is rebuilt
// wholesale from the backend on relevant events, never patched in place.
type FileTreeNode struct {
	Path     string         `json:"path"`
	Kind     NodeKind       `json:"kind"`
	Children []FileTreeNode `json:"children,omitempty"`
}

// FilePaths returns the file (non-directory) paths of a tree in depth-first
// order.
func FilePaths(nodes []FileTreeNode) []string {
	var paths []string
	var walk func(nodes []FileTreeNode)
	walk = func(nodes []FileTreeNode) {
		for _, node := range nodes {
			if node.Kind == NodeFile {
				paths = append(paths, node.Path)
			}
			if len(node.Children) > 0 {
				walk(node.Children)
			}
		}
	}
	walk(nodes)
	return paths
}
