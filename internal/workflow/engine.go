package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/planweave/internal/agent/core"
)

// Runner is one full cycle of the plan-execute-assess machine.
type Runner interface {
	Run(ctx context.Context, input string, rc core.RunConfig) core.RunResult
}

// BranchDecider answers a choice node's true/false question.
type BranchDecider interface {
	Decide(ctx context.Context, question, history string) (bool, error)
}

// Result is the outcome of one workflow traversal.
type Result struct {
	FinalResult            string `json:"final_result"`
	GoalAssessmentResult   string `json:"goal_assessment_result,omitempty"`
	GoalAssessmentFeedback string `json:"goal_assessment_feedback,omitempty"`
	Error                  string `json:"error,omitempty"`
}

// Engine walks a workflow graph, running the machine once per act node and a
// single decision call per choice node, carrying context forward.
type Engine struct {
	machine Runner
	decider BranchDecider
	logger  *log.Logger
}

// NewEngine creates a traversal engine.
func NewEngine(machine Runner, decider BranchDecider) *Engine {
	return &Engine{
		machine: machine,
		decider: decider,
		logger:  log.New(log.Writer(), "[WORKFLOW] ", log.LstdFlags),
	}
}

// Execute traverses the workflow from its start node. A node failure aborts
// the remaining traversal but whatever accumulated is still returned.
func (e *Engine) Execute(ctx context.Context, wf *Workflow, input string, rc core.RunConfig) Result {
	if len(wf.Nodes) == 0 {
		return Result{Error: "workflow has no nodes"}
	}
	for _, node := range wf.Nodes {
		if node.Type == NodeAct && node.Prompt == nil {
			return Result{Error: fmt.Sprintf("Node %s must have a command", node.ID)}
		}
	}

	nodes := make(map[string]Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodes[n.ID] = n
	}
	// outgoing edges in declaration order; edges touching unknown nodes are
	// skipped rather than failing the run
	outgoing := make(map[string][]Connection)
	for _, c := range wf.Connections {
		if _, ok := nodes[c.From.NodeID]; !ok {
			continue
		}
		if _, ok := nodes[c.To.NodeID]; !ok {
			continue
		}
		outgoing[c.From.NodeID] = append(outgoing[c.From.NodeID], c)
	}

	limit := rc.RecursionLimit
	if limit <= 0 {
		limit = 50
	}

	current := startNode(wf, outgoing)
	var (
		result Result
		final  strings.Builder
		carry  = input
		visits int
	)

	for {
		visits++
		if visits > limit {
			result.FinalResult = final.String()
			result.Error = fmt.Sprintf("recursion limit of %d reached", limit)
			return result
		}
		node, ok := nodes[current]
		if !ok {
			break
		}
		e.logger.Printf("node %s (%s)", node.ID, node.Type)

		switch node.Type {
		case NodeTerminal:
			final.WriteString(node.Content)
			result.FinalResult = final.String()
			return result

		case NodeAct:
			prompt := node.PromptText()
			if carry != "" {
				prompt = prompt + "\n\nContext so far:\n" + carry
			}
			run := e.machine.Run(ctx, prompt, rc)
			result.GoalAssessmentResult = run.GoalAssessmentResult
			result.GoalAssessmentFeedback = run.GoalAssessmentFeedback
			if run.Error != "" {
				final.WriteString(run.FinalResult)
				result.FinalResult = final.String()
				result.Error = run.Error
				return result
			}
			output := run.GoalAssessmentResult
			if output == "" {
				output = run.FinalResult
			}
			carry = output
			final.WriteString(output + "\n")

			next, ok := firstConnection(outgoing[node.ID])
			if !ok {
				result.FinalResult = final.String()
				return result
			}
			current = next

		case NodeChoice:
			decision, err := e.decider.Decide(ctx, node.PromptText(), carry)
			ambiguous := errors.Is(err, core.ErrAmbiguousDecision)
			if err != nil && !ambiguous {
				// a failed decision call fails the run; only an
				// unparseable reply falls back to a default branch
				result.FinalResult = final.String()
				result.Error = err.Error()
				return result
			}
			if ambiguous {
				e.logger.Printf("choice %s: %v, taking default branch", node.ID, err)
			}
			next, ok := branchTarget(outgoing[node.ID], decision, ambiguous)
			if !ok {
				result.FinalResult = final.String()
				if ambiguous {
					result.Error = err.Error()
				}
				return result
			}
			current = next

		case NodeStart:
			next, ok := firstConnection(outgoing[node.ID])
			if !ok {
				result.FinalResult = final.String()
				return result
			}
			current = next

		default:
			// nodes of any other type end traversal normally
			result.FinalResult = final.String()
			return result
		}
	}

	result.FinalResult = final.String()
	return result
}

// startNode picks the unique node with no incoming connections; when none or
// several qualify, declaration order breaks the tie.
func startNode(wf *Workflow, outgoing map[string][]Connection) string {
	incoming := make(map[string]int)
	for _, conns := range outgoing {
		for _, c := range conns {
			incoming[c.To.NodeID]++
		}
	}
	for _, n := range wf.Nodes {
		if incoming[n.ID] == 0 {
			return n.ID
		}
	}
	return wf.Nodes[0].ID
}

func firstConnection(conns []Connection) (string, bool) {
	if len(conns) == 0 {
		return "", false
	}
	return conns[0].To.NodeID, true
}

// branchTarget routes a choice node. The connection labeled with the
// decision wins; with no exact label match, any available connection serves.
// An ambiguous decision prefers the "true" branch.
func branchTarget(conns []Connection, decision, ambiguous bool) (string, bool) {
	if len(conns) == 0 {
		return "", false
	}
	want := "false"
	if decision || ambiguous {
		want = "true"
	}
	for _, c := range conns {
		if strings.EqualFold(c.Label, want) {
			return c.To.NodeID, true
		}
	}
	return conns[0].To.NodeID, true
}
