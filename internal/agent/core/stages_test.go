package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/planweave/tools/web_search/models"
)

// stubLLM replays scripted replies and records the prompts it saw.
type stubLLM struct {
	replies []string
	calls   int
	prompts []string
	err     error
}

func (s *stubLLM) Generate(ctx context.Context, prompt, model string, options map[string]interface{}) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	return s.replies[i], nil
}

func (s *stubLLM) GenerateWithTokens(ctx context.Context, prompt, model string, options map[string]interface{}) (string, int64, int64, error) {
	out, err := s.Generate(ctx, prompt, model, options)
	return out, 0, 0, err
}

func (s *stubLLM) GetAvailableModels() []string               { return nil }
func (s *stubLLM) GetModelInfo(string) (ModelInfo, error)     { return ModelInfo{}, nil }
func (s *stubLLM) CalculateCost(_, _ int64, _ string) float64 { return 0 }

type stubSearcher struct {
	results []models.Result
	queries []string
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	s.queries = append(s.queries, q)
	return s.results, s.err
}

func TestPlannerParsesSteps(t *testing.T) {
	llm := &stubLLM{replies: []string{"Here is the plan:\n{\"steps\": [\"search news\", \"summarize\"]}"}}
	p := NewPlanner(testConfig(), llm)

	steps, err := p.Plan(context.Background(), "goal")
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || steps[0] != "search news" {
		t.Errorf("steps = %v", steps)
	}
}

func TestPlannerRejectsEmptyPlan(t *testing.T) {
	llm := &stubLLM{replies: []string{`{"steps": []}`}}
	if _, err := NewPlanner(testConfig(), llm).Plan(context.Background(), "goal"); err == nil {
		t.Fatal("expected error for empty plan")
	}
}

func TestReplannerIncludesFeedback(t *testing.T) {
	llm := &stubLLM{replies: []string{`{"action": "plan", "steps": ["retry"]}`}}
	r := NewReplanner(testConfig(), llm)

	state := RunState{Input: "goal", Plan: []string{"a"}, Feedback: "dates are missing"}
	act, err := r.Replan(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if act.Kind != ActPlan || act.Steps[0] != "retry" {
		t.Errorf("act = %+v", act)
	}
	if !strings.Contains(llm.prompts[0], "Goal Assessment Feedback: dates are missing") {
		t.Errorf("feedback missing from prompt")
	}
}

func TestReplannerRejectsMalformedAct(t *testing.T) {
	llm := &stubLLM{replies: []string{`{"action": "response"}`}}
	if _, err := NewReplanner(testConfig(), llm).Replan(context.Background(), RunState{Input: "goal"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestAssessorParsesVerdict(t *testing.T) {
	llm := &stubLLM{replies: []string{`{"is_satisfied": true, "final_response": "ok", "is_list_output": true, "json_output": ["a"]}`}}
	a := NewAssessor(testConfig(), llm)

	g, err := a.Assess(context.Background(), RunState{Input: "goal"})
	if err != nil {
		t.Fatal(err)
	}
	if !g.IsSatisfied || g.ResponsePayload() != `["a"]` {
		t.Errorf("assessment = %+v", g)
	}
}

func TestExecutorToolLoop(t *testing.T) {
	llm := &stubLLM{replies: []string{
		`{"tool": "search", "query": "ai news this week"}`,
		"Prominent people: A and B.",
	}}
	searcher := &stubSearcher{results: []models.Result{{Title: "T", URL: "u", Snippet: "s"}}}
	e := NewExecutor(testConfig(), llm, searcher, 10)

	rec, err := e.ExecuteStep(context.Background(), RunState{Plan: []string{"find people in ai news"}})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Result != "Prominent people: A and B." {
		t.Errorf("result = %q", rec.Result)
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "ai news this week" {
		t.Errorf("queries = %v", searcher.queries)
	}
	// the second prompt carries the observation
	if !strings.Contains(llm.prompts[1], "T (u): s") {
		t.Errorf("observation missing from follow-up prompt")
	}
}

func TestExecutorToolLoopBounded(t *testing.T) {
	llm := &stubLLM{replies: []string{`{"tool": "search", "query": "again"}`}}
	e := NewExecutor(testConfig(), llm, &stubSearcher{}, 3)

	if _, err := e.ExecuteStep(context.Background(), RunState{Plan: []string{"loop"}}); err == nil {
		t.Fatal("expected tool loop limit error")
	}
	if llm.calls != 3 {
		t.Errorf("llm called %d times, want 3", llm.calls)
	}
}

func TestExecutorIncludesHistory(t *testing.T) {
	llm := &stubLLM{replies: []string{"done"}}
	e := NewExecutor(testConfig(), llm, &stubSearcher{}, 5)

	state := RunState{
		Plan:      []string{"current"},
		PastSteps: []StepRecord{{Task: "earlier", Result: "found X"}},
	}
	if _, err := e.ExecuteStep(context.Background(), state); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(llm.prompts[0], "found X") {
		t.Errorf("previous results missing from prompt")
	}
}

func TestDeciderParsing(t *testing.T) {
	cases := []struct {
		reply   string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"False.", false, false},
		{"The answer is TRUE", true, false},
		{"true or false, hard to say", false, true},
		{"maybe", false, true},
	}
	for _, tc := range cases {
		llm := &stubLLM{replies: []string{tc.reply}}
		got, err := NewDecider(testConfig(), llm).Decide(context.Background(), "q", "ctx")
		if (err != nil) != tc.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tc.reply, err, tc.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrAmbiguousDecision) {
			t.Errorf("%q: err = %v, want ErrAmbiguousDecision", tc.reply, err)
		}
		if err == nil && got != tc.want {
			t.Errorf("%q: got %v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestDeciderModelFailureIsNotAmbiguous(t *testing.T) {
	llm := &stubLLM{err: errors.New("OpenAI status 500")}
	_, err := NewDecider(testConfig(), llm).Decide(context.Background(), "q", "ctx")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrAmbiguousDecision) {
		t.Errorf("model failure misreported as ambiguous: %v", err)
	}
}

func TestExtractFirstJSON(t *testing.T) {
	in := "```json\n{\"a\": {\"b\": 1}}\n```\ntrailing"
	if got := extractFirstJSON(in); got != `{"a": {"b": 1}}` {
		t.Errorf("got %q", got)
	}
}

func TestParseToolCall(t *testing.T) {
	if q, ok := parseToolCall(`{"tool": "search", "query": "x"}`); !ok || q != "x" {
		t.Errorf("got %q, %v", q, ok)
	}
	if _, ok := parseToolCall("plain answer text"); ok {
		t.Error("plain text parsed as tool call")
	}
	if _, ok := parseToolCall(`{"tool": "browser", "query": "x"}`); ok {
		t.Error("unknown tool accepted")
	}
}

func TestNumberedPlan(t *testing.T) {
	got := numberedPlan([]string{"a", "b"})
	want := "1. a\n2. b\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
