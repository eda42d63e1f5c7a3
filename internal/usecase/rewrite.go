package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/metrics"
	"ContentRewriter/internal/ports"
	"ContentRewriter/internal/prompt"
	"ContentRewriter/internal/quality"
	"ContentRewriter/internal/ratelimit"
	"ContentRewriter/internal/recovery"
	"ContentRewriter/internal/retry"
	"ContentRewriter/internal/usage"
)

const (
	// DefaultRewriteService is the rate-limit and usage key of the generative service.
	DefaultRewriteService = "llm"
	// DefaultMinInputLength is the shortest article text worth sending.
	DefaultMinInputLength = 100
	// DefaultQualityThreshold is the minimum model score accepted by the gate.
	DefaultQualityThreshold = 60
)

// RewriterDeps wires the rewrite orchestration. Selector may be nil, in
// which case Template is used for every item. Usage may be nil.
type RewriterDeps struct {
	Generator      ports.Generator
	Limiter        *ratelimit.Limiter
	Selector       *prompt.Selector
	Template       string
	Parser         *recovery.Parser
	Gate           *quality.Gate
	Usage          *usage.Accounting
	Policy         retry.Policy
	Service        string
	MinInterval    time.Duration
	Threshold      float64
	MinInputLength int
	Logger         *slog.Logger
}

// Rewriter turns an extracted item into a validated RewriteResult.
type Rewriter struct {
	generator      ports.Generator
	limiter        *ratelimit.Limiter
	selector       *prompt.Selector
	template       string
	parser         *recovery.Parser
	gate           *quality.Gate
	usage          *usage.Accounting
	policy         retry.Policy
	service        string
	minInterval    time.Duration
	threshold      float64
	minInputLength int
	logger         *slog.Logger
}

// RewriteOutcome is everything learned about one item by the rewriter.
type RewriteOutcome struct {
	Result    domain.RewriteResult
	Heuristic *domain.HeuristicScore
	VariantID string
	Step      string
	Decision  quality.Decision
}

// NewRewriter validates deps and applies defaults.
func NewRewriter(deps RewriterDeps) (*Rewriter, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("rewriter needs a generator")
	}
	if deps.Parser == nil || deps.Gate == nil {
		return nil, fmt.Errorf("rewriter needs a parser and a quality gate")
	}
	if deps.Selector == nil && strings.TrimSpace(deps.Template) == "" {
		deps.Template = prompt.DefaultTemplate
	}
	if deps.Service == "" {
		deps.Service = DefaultRewriteService
	}
	if deps.Threshold <= 0 {
		deps.Threshold = DefaultQualityThreshold
	}
	if deps.MinInputLength <= 0 {
		deps.MinInputLength = DefaultMinInputLength
	}
	if deps.Policy.MaxAttempts <= 0 {
		deps.Policy = retry.RewritePolicy
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Rewriter{
		generator:      deps.Generator,
		limiter:        deps.Limiter,
		selector:       deps.Selector,
		template:       deps.Template,
		parser:         deps.Parser,
		gate:           deps.Gate,
		usage:          deps.Usage,
		policy:         deps.Policy,
		service:        deps.Service,
		minInterval:    deps.MinInterval,
		threshold:      deps.Threshold,
		minInputLength: deps.MinInputLength,
		logger:         logger.With("component", "rewriter"),
	}, nil
}

// Rewrite runs rate limit, prompt selection, the retried service call,
// response recovery and the quality gate. Business rejections come back
// as *domain.Rejection together with whatever outcome was gathered.
func (r *Rewriter) Rewrite(ctx context.Context, item domain.CandidateItem) (RewriteOutcome, error) {
	if n := len([]rune(strings.TrimSpace(item.Content))); n < r.minInputLength {
		return RewriteOutcome{}, &domain.Rejection{
			Reason: domain.ReasonContentTooShort,
			Detail: fmt.Sprintf("%d chars sent to rewrite, need %d", n, r.minInputLength),
		}
	}

	variant := r.variant()
	outcome := RewriteOutcome{VariantID: variant.ID}
	text := prompt.Render(variant.Template, item)

	completion, err := retry.DoValue(ctx, r.policy, func(ctx context.Context) (domain.Completion, error) {
		if err := r.limiter.Wait(ctx, r.service, r.minInterval); err != nil {
			return domain.Completion{}, err
		}
		start := time.Now()
		c, err := r.generator.Generate(ctx, text)
		metrics.RewriteLatency.WithLabelValues(variant.ID).Observe(time.Since(start).Seconds())
		return c, err
	})
	if err != nil {
		return outcome, fmt.Errorf("generate rewrite for %s: %w", item.URL, err)
	}

	if r.usage != nil {
		r.usage.Record(ctx, r.service, 1, int64(completion.Tokens))
	}
	metrics.TokensTotal.Add(float64(completion.Tokens))

	if strings.TrimSpace(completion.Text) == "" {
		return outcome, &domain.Rejection{Reason: domain.ReasonEmptyResponse}
	}

	recovered, ok := r.parser.Recover(completion.Text, text)
	if !ok {
		return outcome, &domain.Rejection{Reason: domain.ReasonMalformedOutput, Detail: "no parse step produced a JSON object"}
	}
	metrics.RecoverySteps.WithLabelValues(recovered.Step).Inc()
	outcome.Step = recovered.Step
	outcome.Result = recovered.Record.Result()
	if !recovered.Record.HasQualityScore() {
		r.logger.Warn("response carries no quality score", "url", item.URL, "variant", variant.ID)
	}

	outcome.Heuristic = r.gate.Evaluate(item.Fingerprint, outcome.Result.Body)
	outcome.Decision = r.gate.Accept(outcome.Result, r.threshold)

	if r.selector != nil {
		res := outcome.Result
		if err := r.selector.RecordOutcome(ctx, variant.ID, res.QualityScore, res.OriginalityScore, res.SEOScore, outcome.Decision.Accepted); err != nil {
			r.logger.Warn("prompt outcome not recorded", "variant", variant.ID, "error", err)
		}
	}

	r.logger.Info("rewrite evaluated",
		"url", item.URL,
		"variant", variant.ID,
		"step", recovered.Step,
		"decision", outcome.Decision.String(),
		"heuristic", outcome.Heuristic.Score,
		"tokens", completion.Tokens,
	)

	if !outcome.Decision.Accepted {
		return outcome, &domain.Rejection{Reason: outcome.Decision.Reason, Detail: outcome.Decision.String()}
	}
	return outcome, nil
}

func (r *Rewriter) variant() domain.PromptVariant {
	if r.selector != nil {
		return r.selector.Select()
	}
	return domain.PromptVariant{ID: prompt.CustomVariantID, Template: r.template}
}
