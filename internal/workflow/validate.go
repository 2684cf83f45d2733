package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammad-safakhou/planweave/utils"
)

// ValidationError is a user-facing rejection of an uploaded workflow. It is
// raised before any model call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Parse decodes a workflow definition from JSON or YAML bytes and validates
// it. The two formats are tried in that order.
func Parse(content []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(content, &wf); err != nil {
		if yerr := yaml.Unmarshal(content, &wf); yerr != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("Invalid workflow format: %v", err)}
		}
	}
	if err := Validate(&wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Validate checks the structural rules every stored workflow must satisfy:
// a metadata name, and a non-null prompt on every act node.
func Validate(wf *Workflow) error {
	if strings.TrimSpace(wf.Metadata.Name) == "" {
		return &ValidationError{Message: "Flowchart must have a name in metadata"}
	}
	for _, node := range wf.Nodes {
		if node.Type == NodeAct && node.Prompt == nil {
			if node.ID != "" {
				return &ValidationError{Message: fmt.Sprintf("Node %s must have a command", node.ID)}
			}
			return &ValidationError{Message: "Action nodes must have a command"}
		}
	}
	return nil
}

// DeriveID builds a store key from the workflow name: every non-alphanumeric
// rune becomes an underscore.
func DeriveID(wf *Workflow) string {
	return utils.Sanitize(wf.Metadata.Name)
}
