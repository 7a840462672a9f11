package datagen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/tunebridge-backend/internal/observability"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/platform/openai"
)

const DefaultTimeout = 90 * time.Second

// ErrMalformedOutput marks an agent whose reply matched no accepted shape.
var ErrMalformedOutput = errors.New("agent output is not a JSON example list")

const baseInstruction = `Write training examples for fine-tuning a language model.
Respond with a JSON array only. Each element must be an object with two
non-empty string fields: "input" (what a user would send) and "output" (the
ideal reply). Do not add commentary.`

type Config struct {
	Timeout time.Duration
	Roles   []Role
}

type Orchestrator struct {
	log     *logger.Logger
	gen     openai.TextGenerator
	roles   []Role
	timeout time.Duration
}

func NewOrchestrator(log *logger.Logger, gen openai.TextGenerator, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Orchestrator{
		log:     log.With("service", "DatagenOrchestrator"),
		gen:     gen,
		roles:   cfg.Roles,
		timeout: cfg.Timeout,
	}
}

func ExamplesPerAgent(total, agents int) int {
	if agents <= 0 {
		return 0
	}
	return (total + agents - 1) / agents
}

func validate(req GenerateRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return apierr.BadRequest("invalid_prompt", "prompt is required")
	}
	if req.TotalExamples < MinExamples || req.TotalExamples > MaxExamples {
		return apierr.BadRequest("invalid_total_examples", "totalExamples must be between %d and %d", MinExamples, MaxExamples)
	}
	if req.NumAgents < MinAgents || req.NumAgents > MaxAgents {
		return apierr.BadRequest("invalid_num_agents", "numAgents must be between %d and %d", MinAgents, MaxAgents)
	}
	return nil
}

type agentResult struct {
	examples []TrainingExample
	err      error
}

// Generate fans the request out to NumAgents concurrent agents and merges
// their deduplicated output. A failing agent, including one whose reply is
// not an example list, contributes nothing. If the
// global timeout fires first every result is discarded.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (out []TrainingExample, err error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	ctx, span := observability.StartSpan(ctx, "datagen.generate",
		attribute.Int("datagen.total_examples", req.TotalExamples),
		attribute.Int("datagen.num_agents", req.NumAgents),
		attribute.Bool("datagen.diverse", req.Diverse),
	)
	defer func() { observability.EndSpan(span, err) }()

	perAgent := ExamplesPerAgent(req.TotalExamples, req.NumAgents)
	roles := AssignRoles(o.roles, req.NumAgents, req.Diverse)
	results := make([]agentResult, len(roles))

	// Agents outlive the timeout; only the orchestration gives up.
	var g errgroup.Group
	for i, role := range roles {
		i, role := i, role
		g.Go(func() error {
			results[i] = o.runAgent(ctx, i, role, req.Prompt, perAgent)
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		o.log.Warn("datagen timed out; discarding agent output", "timeout", o.timeout.String(), "agents", len(roles))
		return nil, apierr.Timeout("generation did not finish within %s", o.timeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apierr.Timeout("generation deadline exceeded")
		}
		return nil, apierr.Retryable(fmt.Errorf("generation cancelled: %w", ctx.Err()))
	}

	merged := make([]TrainingExample, 0, req.TotalExamples)
	failed := 0
	var firstErr error
	for _, r := range results {
		if r.err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		merged = append(merged, r.examples...)
	}
	if failed == len(results) {
		return nil, apierr.Fatal(fmt.Errorf("all agents failed: %w", firstErr))
	}
	out = Dedupe(merged)
	o.log.Info("datagen finished",
		"agents", len(results),
		"failed_agents", failed,
		"merged", len(merged),
		"unique", len(out),
	)
	return out, nil
}

func (o *Orchestrator) runAgent(ctx context.Context, idx int, role Role, prompt string, count int) (res agentResult) {
	defer func() {
		if r := recover(); r != nil {
			res = agentResult{err: fmt.Errorf("agent %d panicked: %v", idx, r)}
		}
	}()
	temp := role.Temperature
	text, err := o.gen.GenerateText(ctx, openai.GenerateTextRequest{
		SystemPrompt: role.Prompt + "\n\n" + baseInstruction,
		UserPrompt:   fmt.Sprintf("%s\n\nProduce exactly %d examples.", strings.TrimSpace(prompt), count),
		Temperature:  &temp,
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			o.log.Warn("datagen agent failed", "agent", idx, "role", role.Name, "error", err)
		}
		return agentResult{err: err}
	}
	examples, ok := parseExamples(text)
	if !ok {
		o.log.Warn("datagen agent returned malformed output", "agent", idx, "role", role.Name)
		return agentResult{err: ErrMalformedOutput}
	}
	if len(examples) == 0 {
		o.log.Warn("datagen agent returned no usable examples", "agent", idx, "role", role.Name)
	}
	return agentResult{examples: examples}
}
