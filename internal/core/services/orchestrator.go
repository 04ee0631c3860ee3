package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.AskService = (*Orchestrator)(nil)

// Planner produces a plan for a question.
type Planner interface {
	Plan(ctx context.Context, question string, today time.Time, repository string) (domain.QueryPlan, error)
}

// Executor runs a plan against the stores.
type Executor interface {
	Execute(ctx context.Context, plan domain.QueryPlan) (domain.RetrievalResult, error)
}

// Synthesizer writes the answer for a retrieval result.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, result domain.RetrievalResult) (string, error)
}

// Orchestrator drives one question through PLANNING, EXECUTING and
// SYNTHESIZING. Stages run strictly in sequence and are never retried
// as a whole; retries happen inside individual external calls.
type Orchestrator struct {
	planner     Planner
	executor    Executor
	synthesizer Synthesizer
	now         func() time.Time
	newID       func() string
}

// NewOrchestrator creates an orchestrator from its three stages.
func NewOrchestrator(planner Planner, executor Executor, synthesizer Synthesizer) *Orchestrator {
	return &Orchestrator{
		planner:     planner,
		executor:    executor,
		synthesizer: synthesizer,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Ask answers req. The returned Answer is never nil: on failure it holds
// the states visited and the usage incurred so far, and the error is a
// *domain.StageError naming the failed stage.
func (o *Orchestrator) Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	start := o.now()
	ledger := domain.UsageLedgerFrom(ctx)
	if ledger == nil {
		ledger = domain.NewUsageLedger()
		ctx = domain.WithUsageLedger(ctx, ledger)
	}

	run := &askRun{
		answer: &domain.Answer{
			RequestID: o.newID(),
			Question:  strings.TrimSpace(req.Question),
			Result:    domain.NewRetrievalResult("", nil),
		},
	}
	defer func() {
		run.answer.Usage = ledger.Records()
		run.answer.Elapsed = o.now().Sub(start)
	}()

	logger.DebugFields("ask", logger.Fields{"request_id": run.answer.RequestID, "repo": req.Repository})

	if run.answer.Question == "" {
		return run.answer, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	today := req.Today
	if today.IsZero() {
		today = o.now()
	}

	// PLANNING
	run.enter(domain.StatePlanning)
	if err := ctx.Err(); err != nil {
		return run.answer, run.fail(domain.ErrPlanning, err)
	}
	plan, err := o.planner.Plan(ctx, run.answer.Question, today, req.Repository)
	if err != nil {
		kind := domain.ErrPlanning
		if errors.Is(err, domain.ErrPlanValidation) {
			kind = domain.ErrPlanValidation
		}
		return run.answer, run.fail(kind, err)
	}
	run.answer.Plan = &plan

	// EXECUTING
	run.enter(domain.StateExecuting)
	if err := ctx.Err(); err != nil {
		return run.answer, run.fail(domain.ErrRetrieval, err)
	}
	result, err := o.executor.Execute(ctx, plan)
	if err != nil {
		kind := domain.ErrRetrieval
		if errors.Is(err, domain.ErrPlanValidation) {
			kind = domain.ErrPlanValidation
		}
		return run.answer, run.fail(kind, err)
	}
	run.answer.Result = result

	// SYNTHESIZING
	run.enter(domain.StateSynthesizing)
	if err := ctx.Err(); err != nil {
		return run.answer, run.fail(domain.ErrSynthesis, err)
	}
	text, err := o.synthesizer.Synthesize(ctx, run.answer.Question, result)
	if err != nil {
		return run.answer, run.fail(domain.ErrSynthesis, err)
	}
	run.answer.Text = text

	run.enter(domain.StateDone)
	return run.answer, nil
}

// askRun tracks the state machine of one request.
type askRun struct {
	answer *domain.Answer
}

func (r *askRun) enter(next domain.State) {
	if cur := r.answer.State(); cur != "" && !cur.CanTransition(next) {
		panic(fmt.Sprintf("invalid pipeline transition %s -> %s", cur, next))
	}
	logger.Debug("State: %s", next)
	r.answer.States = append(r.answer.States, next)
}

// fail moves to FAILED and wraps err with the stage it happened in.
func (r *askRun) fail(kind, err error) error {
	stage := r.answer.State()
	r.enter(domain.StateFailed)
	logger.Warn("%s failed: %v", stage, err)
	return domain.NewStageError(stage, kind, err)
}
