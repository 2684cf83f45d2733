package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/planweave/config"
	"github.com/mohammad-safakhou/planweave/tools/web_search"
)

// ErrInterrupted marks a run cut short by context cancellation. It is
// reported distinctly from ordinary failures.
var ErrInterrupted = errors.New("execution was interrupted")

type planStep interface {
	Plan(ctx context.Context, input string) ([]string, error)
}

type execStep interface {
	ExecuteStep(ctx context.Context, state RunState) (StepRecord, error)
}

type assessStep interface {
	Assess(ctx context.Context, state RunState) (GoalAssessment, error)
}

type replanStep interface {
	Replan(ctx context.Context, state RunState) (Act, error)
}

// Machine is the plan-execute-assess control loop. One Machine is safe to
// reuse across runs; all run state lives in RunState.
type Machine struct {
	planner   planStep
	executor  execStep
	assessor  assessStep
	replanner replanStep

	limit  int // default transition ceiling, overridable per run
	events func(Event)
	logger *log.Logger
}

// NewMachine wires the four stages from configuration.
func NewMachine(cfg *config.Config, llm LLMProvider, searcher web_search.WebSearcher) *Machine {
	limit := cfg.Agent.RecursionLimit
	if limit <= 0 {
		limit = 50
	}
	return &Machine{
		planner:   NewPlanner(cfg, llm),
		executor:  NewExecutor(cfg, llm, searcher, limit),
		assessor:  NewAssessor(cfg, llm),
		replanner: NewReplanner(cfg, llm),
		limit:     limit,
		logger:    log.New(log.Writer(), "[MACHINE] ", log.LstdFlags),
	}
}

// OnEvent registers a callback invoked after every state transition.
func (m *Machine) OnEvent(fn func(Event)) { m.events = fn }

func (m *Machine) emit(ev Event) {
	transitionsTotal.WithLabelValues(ev.State).Inc()
	if ev.Step != nil {
		stepsExecuted.Inc()
	}
	if m.events != nil {
		m.events(ev)
	}
}

// Run drives a goal through planner, agent, assessor and replan until a
// response is produced, a limit is hit, or something fails. The returned
// result always carries whatever step output had accumulated.
func (m *Machine) Run(ctx context.Context, input string, rc RunConfig) RunResult {
	limit := rc.RecursionLimit
	if limit <= 0 {
		limit = m.limit
	}

	runID := uuid.NewString()[:8]
	started := time.Now()
	defer func() {
		runDuration.Observe(time.Since(started).Seconds())
		m.logger.Printf("[%s] run finished in %s", runID, time.Since(started).Round(time.Millisecond))
	}()
	m.logger.Printf("[%s] run started (recursion limit %d)", runID, limit)

	state := RunState{Input: input}
	var finalResult strings.Builder
	transitions := 0

	fail := func(err error) RunResult {
		res := RunResult{
			FinalResult:            finalResult.String(),
			GoalAssessmentFeedback: fmt.Sprintf("Execution failed with error: %v", err),
			Error:                  err.Error(),
		}
		outcome := "error"
		if errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled) {
			res.GoalAssessmentFeedback = "Execution was interrupted by user"
			res.Error = ErrInterrupted.Error()
			outcome = "interrupted"
		}
		runsTotal.WithLabelValues(outcome).Inc()
		res.GoalAssessmentResult = state.Response
		return res
	}

	step := func() error {
		transitions++
		if transitions > limit {
			return fmt.Errorf("recursion limit of %d reached", limit)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		return nil
	}

	// planner
	if err := step(); err != nil {
		return fail(err)
	}
	plan, err := m.planner.Plan(ctx, input)
	if err != nil {
		return fail(err)
	}
	state.Plan = plan
	m.emit(Event{State: StatePlanner, Plan: plan})

	for {
		// agent: drain the plan one step at a time
		for len(state.Plan) > 0 {
			if err := step(); err != nil {
				return fail(err)
			}
			record, err := m.executor.ExecuteStep(ctx, state)
			if err != nil {
				return fail(err)
			}
			state.PastSteps = append(state.PastSteps, record)
			state.Plan = state.Plan[1:]
			finalResult.WriteString(record.Result + "\n")
			m.emit(Event{State: StateAgent, Step: &record, Plan: state.Plan})
		}

		// goal assessor
		if err := step(); err != nil {
			return fail(err)
		}
		assessment, err := m.assessor.Assess(ctx, state)
		if err != nil {
			return fail(err)
		}
		if assessment.IsSatisfied {
			state.Response = assessment.ResponsePayload()
			state.Feedback = ""
			m.emit(Event{State: StateAssessor, Response: state.Response})
			break
		}
		state.Feedback = assessment.FinalResponse
		m.emit(Event{State: StateAssessor, Feedback: state.Feedback})

		// replan
		if err := step(); err != nil {
			return fail(err)
		}
		act, err := m.replanner.Replan(ctx, state)
		if err != nil {
			return fail(err)
		}
		if act.Kind == ActResponse {
			state.Response = act.Response
			m.emit(Event{State: StateReplan, Response: state.Response})
			break
		}
		state.Plan = act.Steps
		m.emit(Event{State: StateReplan, Plan: state.Plan})
	}

	runsTotal.WithLabelValues("success").Inc()
	return RunResult{
		FinalResult:            finalResult.String(),
		GoalAssessmentResult:   state.Response,
		GoalAssessmentFeedback: state.Feedback,
	}
}
