package core

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/planweave/config"
)

const assessorTemplate = `You are a goal assessment expert. Your job is to determine if the user's original goal has been satisfied based on the work that has been done so far.

IMPORTANT: Analyze if the goal is asking for a list or text:
- If the goal is asking for a list (e.g., "list of people", "list of items", etc.), format your output as a JSON list.
- If the goal is asking for text (e.g., explanation, description, etc.), format your output as a JSON object with one entry.

For example, if the goal was "Get me a list of AI researchers", your json_output should be a list like:
["Geoffrey Hinton", "Yann LeCun", "Yoshua Bengio"]

If the goal was "Explain what AI is", your json_output should be a json object with a single key & value. The key is "response_text", the value is your answer as a text string.

Original goal: %s

Original plan:
%s

Steps completed:
%s

Based on the above information, has the original goal been fully satisfied?
If yes, provide a final response to the user that addresses their original goal.
If no, explain why the goal hasn't been satisfied yet and what still needs to be done.

Respond ONLY with strict JSON:
{"is_satisfied": bool, "final_response": string, "is_list_output": bool, "json_output": [...] or {...}}`

// Assessor judges whether the original goal has been satisfied.
type Assessor struct {
	llm     LLMProvider
	model   string
	history HistoryPolicy
	logger  *log.Logger
}

// NewAssessor creates an assessor routed to the assessment model.
func NewAssessor(cfg *config.Config, llm LLMProvider) *Assessor {
	return &Assessor{
		llm:     llm,
		model:   cfg.LLM.Routing.Route(cfg.LLM.Routing.Assessment),
		history: historyPolicyFrom(cfg),
		logger:  log.New(log.Writer(), "[ASSESSOR] ", log.LstdFlags),
	}
}

// Assess returns the model's verdict on the goal given the work so far.
func (a *Assessor) Assess(ctx context.Context, state RunState) (GoalAssessment, error) {
	prompt := fmt.Sprintf(assessorTemplate,
		state.Input, numberedPlan(state.Plan), a.history.BuildContext(state.PastSteps))

	reply, err := a.llm.Generate(ctx, prompt, a.model, map[string]interface{}{"temperature": 0.0})
	if err != nil {
		return GoalAssessment{}, fmt.Errorf("assessor: %w", err)
	}

	var assessment GoalAssessment
	if err := decodeJSONReply(reply, &assessment); err != nil {
		return GoalAssessment{}, fmt.Errorf("assessor: %w", err)
	}
	if assessment.IsSatisfied {
		a.logger.Printf("goal satisfied")
	} else {
		a.logger.Printf("goal not satisfied: %s", assessment.FinalResponse)
	}
	return assessment, nil
}
