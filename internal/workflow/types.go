package workflow

import "time"

// Node kinds. Start nodes only mark an entry point, act nodes run a full
// agent cycle, choice nodes branch on a single true/false model call,
// terminal nodes end the traversal.
const (
	NodeStart    = "start"
	NodeAct      = "act"
	NodeChoice   = "choice"
	NodeTerminal = "terminal"
)

// Workflow is a stored flowchart: nodes plus directed connections.
type Workflow struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty"`
	Metadata    Metadata     `json:"metadata" yaml:"metadata"`
	Nodes       []Node       `json:"nodes" yaml:"nodes"`
	Connections []Connection `json:"connections,omitempty" yaml:"connections,omitempty"`
	CreatedAt   time.Time    `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Metadata names and describes a workflow.
type Metadata struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Node is one step of a workflow. Prompt is a pointer so a missing or null
// prompt on an act node can be told apart from an empty one. Position is
// editor layout data, carried through storage untouched.
type Node struct {
	ID       string    `json:"id" yaml:"id"`
	Type     string    `json:"type" yaml:"type"`
	Content  string    `json:"content,omitempty" yaml:"content,omitempty"`
	Prompt   *string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Position *Position `json:"position,omitempty" yaml:"position,omitempty"`
}

// Position is a node's coordinates in the flowchart editor.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// PromptText returns the node prompt, empty when unset.
func (n Node) PromptText() string {
	if n.Prompt == nil {
		return ""
	}
	return *n.Prompt
}

// Connection is a directed edge. Label carries the branch ("true"/"false")
// for edges leaving a choice node.
type Connection struct {
	From  Endpoint `json:"from" yaml:"from"`
	To    Endpoint `json:"to" yaml:"to"`
	Label string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// Endpoint names the node on one side of a connection. Position is the
// edge anchor point from the editor, if any.
type Endpoint struct {
	NodeID   string    `json:"nodeId" yaml:"nodeId"`
	Position *Position `json:"position,omitempty" yaml:"position,omitempty"`
}

// Description returns the workflow description, falling back to the content
// of the first node that has any.
func (w *Workflow) Description() string {
	if w.Metadata.Description != "" {
		return w.Metadata.Description
	}
	for _, n := range w.Nodes {
		if n.Content != "" {
			return n.Content
		}
	}
	return ""
}
