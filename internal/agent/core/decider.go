package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/planweave/config"
)

// ErrAmbiguousDecision marks a decision reply that did not parse into
// true or false. Callers may fall back to a default branch for this error
// only; anything else from Decide is a failed model call.
var ErrAmbiguousDecision = errors.New("ambiguous decision")

const deciderTemplate = `Answer the following question with exactly one word, true or false.

Question: %s

Context from previous steps:
%s`

// Decider answers a yes/no question with a single direct model call. It is
// used for branching nodes, where running the whole machine would be waste.
type Decider struct {
	llm    LLMProvider
	model  string
	logger *log.Logger
}

// NewDecider creates a decider routed to the decision model.
func NewDecider(cfg *config.Config, llm LLMProvider) *Decider {
	return &Decider{
		llm:    llm,
		model:  cfg.LLM.Routing.Route(cfg.LLM.Routing.Decision),
		logger: log.New(log.Writer(), "[DECIDER] ", log.LstdFlags),
	}
}

// Decide asks the model the question and parses the reply. An unparseable
// reply is an error; callers decide how to fall back.
func (d *Decider) Decide(ctx context.Context, question, history string) (bool, error) {
	prompt := fmt.Sprintf(deciderTemplate, question, history)
	reply, err := d.llm.Generate(ctx, prompt, d.model, map[string]interface{}{"temperature": 0.0})
	if err != nil {
		return false, fmt.Errorf("decide: %w", err)
	}

	lower := strings.ToLower(reply)
	hasTrue := strings.Contains(lower, "true")
	hasFalse := strings.Contains(lower, "false")
	switch {
	case hasTrue && !hasFalse:
		return true, nil
	case hasFalse && !hasTrue:
		return false, nil
	default:
		return false, fmt.Errorf("decide: %w: reply %q", ErrAmbiguousDecision, strings.TrimSpace(reply))
	}
}
