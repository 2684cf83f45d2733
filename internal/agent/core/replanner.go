package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/planweave/config"
)

const replannerTemplate = `For the given objective, come up with a simple step by step plan.
This plan should involve individual tasks, that if executed correctly will yield the correct answer.
Do not add any superfluous steps.
The result of the final step should be the final answer.
Make sure that each step has all the information needed - do not skip steps.

Your objective was this:
%s

Your original plan was this:
%s

You have currently done the follow steps:
%s

%s
Update your plan accordingly.
If no more steps are needed and you can return to the user, then respond with that.
Otherwise, fill out the plan. Only add steps to the plan that still NEED to be done.
Do not return previously done steps as part of the plan, and do not add any steps that
are effectively the same as steps that have already been done.

Respond ONLY with strict JSON, one of:
{"action": "response", "response": "final answer to the user"}
{"action": "plan", "steps": ["remaining step 1", "remaining step 2", ...]}`

// Replanner updates the plan mid-run, or decides the run is done.
type Replanner struct {
	llm     LLMProvider
	model   string
	history HistoryPolicy
	logger  *log.Logger
}

// NewReplanner creates a replanner routed to the planning model.
func NewReplanner(cfg *config.Config, llm LLMProvider) *Replanner {
	return &Replanner{
		llm:     llm,
		model:   cfg.LLM.Routing.Route(cfg.LLM.Routing.Planning),
		history: historyPolicyFrom(cfg),
		logger:  log.New(log.Writer(), "[REPLAN] ", log.LstdFlags),
	}
}

// Replan returns either a final response or the steps still to be done.
func (r *Replanner) Replan(ctx context.Context, state RunState) (Act, error) {
	feedback := ""
	if state.Feedback != "" {
		feedback = fmt.Sprintf("Take account of the feedback provided:\nGoal Assessment Feedback: %s\n\n", state.Feedback)
	}
	prompt := fmt.Sprintf(replannerTemplate,
		state.Input, numberedPlan(state.Plan), r.history.BuildContext(state.PastSteps), feedback)

	reply, err := r.llm.Generate(ctx, prompt, r.model, map[string]interface{}{"temperature": 0.2})
	if err != nil {
		return Act{}, fmt.Errorf("replanner: %w", err)
	}

	var act Act
	if err := decodeJSONReply(reply, &act); err != nil {
		return Act{}, fmt.Errorf("replanner: %w", err)
	}
	if err := act.Validate(); err != nil {
		return Act{}, fmt.Errorf("replanner: %w", err)
	}
	if act.Kind == ActPlan {
		r.logger.Printf("replanned %d remaining steps", len(act.Steps))
	} else {
		r.logger.Printf("responding to user")
	}
	return act, nil
}

func numberedPlan(plan []string) string {
	var b strings.Builder
	for i, step := range plan {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	return b.String()
}

func historyPolicyFrom(cfg *config.Config) HistoryPolicy {
	return HistoryPolicy{
		MaxResultChars:    cfg.Agent.MaxResultChars,
		RecentDetailSteps: cfg.Agent.RecentDetailSteps,
		SummaryThreshold:  cfg.Agent.SummaryThreshold,
	}.normalized()
}
