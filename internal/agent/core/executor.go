package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/planweave/config"
	"github.com/mohammad-safakhou/planweave/tools/web_search"
)

const executorTemplate = `You are a helpful assistant.

You have one tool available:
- search: search the web for current information.

To use the tool, respond ONLY with strict JSON: {"tool": "search", "query": "your search query"}
When you have enough information to complete the task, respond with the answer as plain text (no JSON).

Today's date is %s.

For the following plan:
%s

You are tasked with executing step 1, %s.

%s`

// Executor runs a single plan step with a tool-calling loop around the LLM.
type Executor struct {
	llm        LLMProvider
	model      string
	searcher   web_search.WebSearcher
	maxResults int
	history    HistoryPolicy
	maxCalls   int
	logger     *log.Logger
}

// NewExecutor creates a step executor. maxCalls bounds the tool loop; it is
// the same knob that bounds machine transitions.
func NewExecutor(cfg *config.Config, llm LLMProvider, searcher web_search.WebSearcher, maxCalls int) *Executor {
	maxResults := cfg.Search.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Executor{
		llm:        llm,
		model:      cfg.LLM.Routing.Route(cfg.LLM.Routing.Execution),
		searcher:   searcher,
		maxResults: maxResults,
		history:    historyPolicyFrom(cfg),
		maxCalls:   maxCalls,
		logger:     log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
	}
}

// ExecuteStep runs the head of the plan and returns its (task, result) record.
func (e *Executor) ExecuteStep(ctx context.Context, state RunState) (StepRecord, error) {
	if len(state.Plan) == 0 {
		return StepRecord{}, fmt.Errorf("execute: plan is empty")
	}
	task := state.Plan[0]

	contextBlock := ""
	if block := e.history.BuildContext(state.PastSteps); block != "" {
		contextBlock = "Results of previous steps:\n" + block + "\n"
	}
	prompt := fmt.Sprintf(executorTemplate,
		time.Now().Format("2006-01-02"), numberedPlan(state.Plan), task, contextBlock)

	transcript := prompt
	limit := e.maxCalls
	if limit <= 0 {
		limit = 50
	}
	for i := 0; i < limit; i++ {
		reply, err := e.llm.Generate(ctx, transcript, e.model, map[string]interface{}{"temperature": 0.3})
		if err != nil {
			return StepRecord{}, fmt.Errorf("execute %q: %w", task, err)
		}

		query, ok := parseToolCall(reply)
		if !ok {
			return StepRecord{Task: task, Result: strings.TrimSpace(reply)}, nil
		}

		e.logger.Printf("search: %s", query)
		observation := e.runSearch(ctx, query)
		transcript += fmt.Sprintf("\n\nSearch results for %q:\n%s\nContinue with the task.", query, observation)
	}
	return StepRecord{}, fmt.Errorf("execute %q: tool loop exceeded %d calls", task, limit)
}

func (e *Executor) runSearch(ctx context.Context, query string) string {
	results, err := e.searcher.Search(ctx, query, e.maxResults)
	if err != nil {
		return fmt.Sprintf("search failed: %v", err)
	}
	if len(results) == 0 {
		return "no results found"
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
	}
	return b.String()
}

// parseToolCall reports whether a model reply is a search tool invocation.
func parseToolCall(reply string) (string, bool) {
	raw := extractFirstJSON(reply)
	var call struct {
		Tool  string `json:"tool"`
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		return "", false
	}
	if call.Tool != "search" || call.Query == "" {
		return "", false
	}
	return call.Query, true
}
