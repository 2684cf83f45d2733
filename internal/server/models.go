package server

import "github.com/mohammad-safakhou/planweave/internal/agent/core"

// PromptInput is the body of the direct execute endpoint.
type PromptInput struct {
	Input string `json:"input"`
}

// ExecuteRequest is the body of the workflow execution endpoints.
type ExecuteRequest struct {
	Input  string          `json:"input"`
	Config *core.RunConfig `json:"config,omitempty"`
}

// SaveResponse reports the outcome of a workflow upload.
type SaveResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
}

// WorkflowSummary is one row of the workflow listing. Filename and
// DefaultName duplicate ID for older clients.
type WorkflowSummary struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	ID          string `json:"id"`
	Description string `json:"description"`
	DefaultName string `json:"default_name"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// RenameRequest is the body of the rename endpoint.
type RenameRequest struct {
	Name string `json:"name"`
}
