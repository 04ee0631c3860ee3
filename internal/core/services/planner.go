package services

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driven"
	"github.com/gkabbz/github-delivery-visibility/internal/core/ports/driving"
	"github.com/gkabbz/github-delivery-visibility/internal/logger"
)

// Ensure QueryPlanner implements the interface.
var _ driving.PlanService = (*QueryPlanner)(nil)

// Planning call settings. Planning must be reproducible, so temperature is 0.
const (
	PlanMaxTokens   = 500
	PlanTemperature = 0.0
)

//go:embed schemas/query_plan.schema.json
var queryPlanSchema []byte

// QueryPlanner turns a question into a validated QueryPlan with one
// language model call.
type QueryPlanner struct {
	lm      *LanguageModelClient
	prompts driven.PromptStore
	schema  *jsonschema.Schema
	now     func() time.Time
}

// NewQueryPlanner creates a planner. Both collaborators are required.
func NewQueryPlanner(lm *LanguageModelClient, prompts driven.PromptStore) (*QueryPlanner, error) {
	if lm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if prompts == nil {
		return nil, fmt.Errorf("query planner: prompt store is required")
	}

	schema, err := compilePlanSchema()
	if err != nil {
		return nil, err
	}

	return &QueryPlanner{
		lm:      lm,
		prompts: prompts,
		schema:  schema,
		now:     time.Now,
	}, nil
}

func compilePlanSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(queryPlanSchema)
	if err != nil {
		return nil, fmt.Errorf("compile query plan schema: %w", err)
	}
	return schema, nil
}

// Plan asks the model for a plan, then parses and validates it.
// A non-empty repository overrides whatever scope the model chose.
//
// Model failures match domain.ErrPlanning; anything wrong with the
// response matches domain.ErrPlanValidation.
func (p *QueryPlanner) Plan(
	ctx context.Context, question string, today time.Time, repository string,
) (domain.QueryPlan, error) {
	logger.Section("Query Planning")

	question = strings.TrimSpace(question)
	if question == "" {
		return domain.QueryPlan{}, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	if today.IsZero() {
		today = p.now()
	}

	template, err := p.prompts.Load(driven.PromptQueryPlanner)
	if err != nil {
		return domain.QueryPlan{}, fmt.Errorf("%w: load prompt: %w", domain.ErrPlanning, err)
	}

	text, _, err := p.lm.Complete(ctx, LanguageModelRequest{
		Operation:   domain.OperationPlan,
		System:      plannerSystemPrompt(template, today),
		Prompt:      question,
		MaxTokens:   PlanMaxTokens,
		Temperature: PlanTemperature,
	})
	if err != nil {
		return domain.QueryPlan{}, fmt.Errorf("%w: %w", domain.ErrPlanning, err)
	}
	logger.Debug("Planner response: %s", text)

	plan, err := p.ParseResponse(text, question)
	if err != nil {
		return domain.QueryPlan{}, err
	}
	if repository != "" {
		plan.RepoName = repository
	}

	plan = plan.Normalize()
	if err := plan.Validate(); err != nil {
		return domain.QueryPlan{}, err
	}

	logger.Debug("Plan: %s", plan)
	return plan, nil
}

// ParseResponse converts raw model output into a plan. The output must be
// a single JSON object, optionally inside one Markdown code fence, that
// satisfies the plan schema. A missing query_type is resolved from the
// remaining fields and the question.
func (p *QueryPlanner) ParseResponse(text, question string) (domain.QueryPlan, error) {
	body := stripCodeFence(text)
	if len(body) == 0 {
		return domain.QueryPlan{}, domain.PlanValidationError("empty planner response")
	}
	if !json.Valid(body) {
		return domain.QueryPlan{}, domain.PlanValidationError("planner response is not valid JSON: %.80q", body)
	}

	result := p.schema.ValidateJSON(body)
	if !result.IsValid() {
		return domain.QueryPlan{}, domain.PlanValidationError("planner response violates schema: %v", result.Errors)
	}

	plan, err := domain.ParseQueryPlan(body)
	if err != nil {
		return domain.QueryPlan{}, err
	}

	return resolveQueryType(plan, question), nil
}

// resolveQueryType fills a missing query type. The descriptive text is the
// semantic query or, failing that, the question itself; the plan is hybrid
// when an author or date range accompanies it, otherwise semantic.
func resolveQueryType(plan domain.QueryPlan, question string) domain.QueryPlan {
	if plan.QueryType != "" {
		return plan
	}
	if strings.TrimSpace(plan.SemanticQuery) == "" {
		plan.SemanticQuery = question
	}
	if plan.Author != "" || plan.HasDateRange() {
		plan.QueryType = domain.QueryTypeHybrid
	} else {
		plan.QueryType = domain.QueryTypeSemantic
	}
	logger.Debug("query_type missing, resolved to %s", plan.QueryType.Label())
	return plan
}

// plannerSystemPrompt renders today's date into the template. Templates
// edited without the placeholder still get the date appended.
func plannerSystemPrompt(template string, today time.Time) string {
	date := today.Format(domain.DateLayout)
	if strings.Count(template, "%s") == 1 && !strings.Contains(strings.ReplaceAll(template, "%s", ""), "%") {
		return fmt.Sprintf(template, date)
	}
	return template + "\n\nToday's date: " + date
}

// stripCodeFence removes one surrounding ``` fence, with or without a
// language tag. Inner fences are left alone.
func stripCodeFence(text string) []byte {
	body := bytes.TrimSpace([]byte(text))
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	nl := bytes.IndexByte(body, '\n')
	if nl < 0 {
		return nil
	}
	body = body[nl+1:]
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}
