package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// Plan is the ordered list of step descriptions produced by the planner.
type Plan struct {
	Steps []string `json:"steps"`
}

// StepRecord is one completed (task, result) pair. Records are appended to
// the run's past-steps history and never mutated.
type StepRecord struct {
	Task   string `json:"task"`
	Result string `json:"result"`
}

// ActKind discriminates the replanner's tagged union.
type ActKind string

const (
	// ActResponse means no work remains: Response carries the final answer.
	ActResponse ActKind = "response"
	// ActPlan means more work remains: Steps carries the remaining plan.
	ActPlan ActKind = "plan"
)

// Act is the replanner's output: either a final response to the user or a
// new plan containing only the steps still to be done.
type Act struct {
	Kind     ActKind  `json:"action"`
	Response string   `json:"response,omitempty"`
	Steps    []string `json:"steps,omitempty"`
}

// Validate checks the discriminant against the populated fields.
func (a Act) Validate() error {
	switch a.Kind {
	case ActResponse:
		if a.Response == "" {
			return fmt.Errorf("act tagged response has empty response")
		}
	case ActPlan:
		if len(a.Steps) == 0 {
			return fmt.Errorf("act tagged plan has no steps")
		}
	default:
		return fmt.Errorf("unknown act tag: %q", a.Kind)
	}
	return nil
}

// GoalAssessment is the assessor's structured verdict on the original goal.
// JSONOutput is either a list of strings or an object of string to string;
// which one is declared by IsListOutput.
type GoalAssessment struct {
	IsSatisfied   bool            `json:"is_satisfied"`
	FinalResponse string          `json:"final_response"`
	IsListOutput  bool            `json:"is_list_output"`
	JSONOutput    json.RawMessage `json:"json_output"`
}

// ResponsePayload serializes JSONOutput, repairing shape mismatches: a
// declared list that is not a list becomes "[]"; a declared object that is
// not an object becomes a single-key object wrapping FinalResponse.
func (g GoalAssessment) ResponsePayload() string {
	if g.IsListOutput {
		var list []string
		if err := json.Unmarshal(g.JSONOutput, &list); err != nil {
			return "[]"
		}
		b, err := json.Marshal(list)
		if err != nil {
			return "[]"
		}
		return string(b)
	}
	var obj map[string]string
	if err := json.Unmarshal(g.JSONOutput, &obj); err != nil || obj == nil {
		b, _ := json.Marshal(map[string]string{"text": g.FinalResponse})
		return string(b)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"text": g.FinalResponse})
	}
	return string(b)
}

// RunState is the mutable record threaded through one run of the machine.
type RunState struct {
	Input     string
	Plan      []string
	PastSteps []StepRecord
	Response  string
	Feedback  string
}

// RunResult is the outcome of one run. Error, when non-empty, is the
// authoritative failure signal; FinalResult holds whatever step output had
// accumulated before the failure.
type RunResult struct {
	FinalResult            string `json:"final_result"`
	GoalAssessmentResult   string `json:"goal_assessment_result,omitempty"`
	GoalAssessmentFeedback string `json:"goal_assessment_feedback,omitempty"`
	Error                  string `json:"error,omitempty"`
}

// Machine state names, also used as Event.State values.
const (
	StatePlanner  = "planner"
	StateAgent    = "agent"
	StateAssessor = "goal_assessor"
	StateReplan   = "replan"
)

// Event is a typed transition event emitted after each machine state
// executes. Exactly the fields relevant to the state are populated.
type Event struct {
	State    string
	Plan     []string
	Step     *StepRecord
	Response string
	Feedback string
}

// RunConfig carries per-run overrides. RecursionLimit is the single global
// transition ceiling for a run; zero means the configured default.
type RunConfig struct {
	RecursionLimit int `json:"recursion_limit,omitempty"`
}

// LLMProvider is the contract every model adapter is built on.
type LLMProvider interface {
	// Generate generates text using the LLM.
	Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error)

	// GenerateWithTokens generates text and returns prompt/completion token usage.
	GenerateWithTokens(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, int64, int64, error)

	// GetAvailableModels returns available models.
	GetAvailableModels() []string

	// GetModelInfo returns information about a specific model.
	GetModelInfo(model string) (ModelInfo, error)

	// CalculateCost calculates the cost for a given number of tokens.
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// ModelInfo contains information about an LLM model.
type ModelInfo struct {
	Name            string  `json:"name"`
	Provider        string  `json:"provider"`
	MaxTokens       int     `json:"max_tokens"`
	CostPer1KInput  float64 `json:"cost_per_1k_input"`
	CostPer1KOutput float64 `json:"cost_per_1k_output"`
	Description     string  `json:"description"`
}
