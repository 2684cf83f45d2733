package core

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/planweave/config"
)

const plannerTemplate = `For the given objective, come up with a simple step by step plan.
This plan should involve individual tasks, that if executed correctly will yield the correct answer.
The plan should use the supplied tools when appropriate. The tools are:
- search: search the web for current information given a query.
Do not add any superfluous steps.
The result of the final step should be the final answer.
Make sure that each step has all the information needed - do not skip steps.

Respond ONLY with strict JSON: {"steps": ["step 1", "step 2", ...]}

Objective: %s`

// Planner turns an objective into an ordered list of steps.
type Planner struct {
	llm    LLMProvider
	model  string
	logger *log.Logger
}

// NewPlanner creates a planner routed to the planning model.
func NewPlanner(cfg *config.Config, llm LLMProvider) *Planner {
	return &Planner{
		llm:    llm,
		model:  cfg.LLM.Routing.Route(cfg.LLM.Routing.Planning),
		logger: log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// Plan produces the initial plan for an objective.
func (p *Planner) Plan(ctx context.Context, input string) ([]string, error) {
	prompt := fmt.Sprintf(plannerTemplate, input)
	reply, err := p.llm.Generate(ctx, prompt, p.model, map[string]interface{}{"temperature": 0.2})
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	var plan Plan
	if err := decodeJSONReply(reply, &plan); err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("planner: model returned an empty plan")
	}
	p.logger.Printf("planned %d steps", len(plan.Steps))
	return plan.Steps, nil
}
