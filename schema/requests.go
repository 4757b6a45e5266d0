package schema

// Run/deploy trigger.

// RunRequest asks the backend to generate and deploy a project.
type RunRequest struct {
	ProjectName ProjectID `json:"project_name"`
	TechStack   TechStack `json:"tech_stack"`
}

// RunResponse reports the run trigger outcome.
type RunResponse struct {
	Success    bool   `json:"success"`
	PreviewURL string `json:"preview_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Remediation.

// RemediationRequest asks the backend to fix a captured failure.
type RemediationRequest struct {
	ProjectName  ProjectID `json:"project_name"`
	ErrorMessage string    `json:"error_message"`
	FilePath     string    `json:"file_path,omitempty"`
	LineNumber   int       `json:"line_number,omitempty"`
	ErrorType    ErrorType `json:"error_type"`
}

// RemediationResponse reports the remediation outcome.
type RemediationResponse struct {
	Success        bool     `json:"success"`
	Explanation    string   `json:"explanation,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
	ChangesApplied bool     `json:"changes_applied,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// File queries.

// FileTreeResponse reports the project artifact tree.
type FileTreeResponse struct {
	Success  bool           `json:"success"`
	FileTree []FileTreeNode `json:"file_tree"`
	Error    string         `json:"error,omitempty"`
}

// FileContentResponse reports the content of one artifact.
type FileContentResponse struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}
