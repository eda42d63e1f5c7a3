package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ContentRewriter/internal/approval"
	"ContentRewriter/internal/dedup"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/metrics"
	"ContentRewriter/internal/ports"
	"ContentRewriter/internal/retry"
)

// PipelineDeps wires all driven adapters into the cycle. Extractor and
// Notifier are optional.
type PipelineDeps struct {
	Source           ports.CandidateSource
	Dedup            *dedup.Deduplicator
	Extractor        ports.ContentExtractor
	Rewriter         *Rewriter
	Approvals        *approval.Workflow
	Notifier         ports.Notifier
	Logger           *slog.Logger
	FeedPolicy       retry.Policy
	ExtractionPolicy retry.Policy
	Cooldown         time.Duration
	AutoPublish      bool
}

// Pipeline processes candidates one at a time, in feed order.
type Pipeline struct {
	source           ports.CandidateSource
	dedup            *dedup.Deduplicator
	extractor        ports.ContentExtractor
	rewriter         *Rewriter
	approvals        *approval.Workflow
	notifier         ports.Notifier
	logger           *slog.Logger
	feedPolicy       retry.Policy
	extractionPolicy retry.Policy
	cooldown         time.Duration
	autoPublish      bool

	manual     atomic.Bool
	manualOnce sync.Once
	sleep      func(context.Context, time.Duration) error
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("pipeline needs a candidate source")
	}
	if deps.Rewriter == nil || deps.Approvals == nil {
		return nil, fmt.Errorf("pipeline needs a rewriter and an approval workflow")
	}
	if deps.FeedPolicy.MaxAttempts <= 0 {
		deps.FeedPolicy = retry.FeedPolicy
	}
	if deps.ExtractionPolicy.MaxAttempts <= 0 {
		deps.ExtractionPolicy = retry.ExtractionPolicy
	}
	if deps.Cooldown < 0 {
		deps.Cooldown = 0
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		source:           deps.Source,
		dedup:            deps.Dedup,
		extractor:        deps.Extractor,
		rewriter:         deps.Rewriter,
		approvals:        deps.Approvals,
		notifier:         deps.Notifier,
		logger:           logger.With("component", "pipeline"),
		feedPolicy:       deps.FeedPolicy,
		extractionPolicy: deps.ExtractionPolicy,
		cooldown:         deps.Cooldown,
		autoPublish:      deps.AutoPublish,
		sleep:            retry.Sleep,
	}, nil
}

// RequireManualApproval switches the process to manual approval. It is
// safe to call from any goroutine; only the first call is logged.
func (p *Pipeline) RequireManualApproval(reason error) {
	p.manual.Store(true)
	metrics.ManualApproval.Set(1)
	p.manualOnce.Do(func() {
		p.logger.Warn("publication target unavailable, manual approval required", "error", reason)
	})
}

// ManualApproval reports whether auto-publication is disabled.
func (p *Pipeline) ManualApproval() bool {
	return p.manual.Load()
}

// RunCycle fetches candidates and processes them sequentially. Per-item
// failures are counted, never returned. Only a failed feed fetch fails
// the cycle.
func (p *Pipeline) RunCycle(ctx context.Context) (domain.CycleStats, error) {
	stats := domain.CycleStats{
		CycleID:    uuid.NewString(),
		StartedAt:  time.Now(),
		Rejections: map[domain.RejectReason]int{},
	}
	logger := p.logger.With("cycle", stats.CycleID)
	logger.Info("cycle started", "manual_approval", p.ManualApproval())
	p.notify(ctx, "info", "Cycle started")

	items, err := retry.DoValue(ctx, p.feedPolicy, p.source.FetchCandidates)
	if err != nil {
		stats.FinishedAt = time.Now()
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return stats, fmt.Errorf("fetch candidates: %w", err)
	}
	stats.Candidates = len(items)

	if p.dedup != nil {
		var dropped int
		items, dropped = p.dedup.Filter(ctx, items)
		for i := 0; i < dropped; i++ {
			stats.Reject(domain.ReasonDuplicate)
			metrics.ItemsTotal.WithLabelValues(string(domain.StatusRejected), string(domain.ReasonDuplicate)).Inc()
		}
	} else {
		for i := range items {
			if items[i].Fingerprint == "" {
				items[i].Fingerprint = dedup.Fingerprint(items[i].URL)
			}
		}
	}
	logger.Info("candidates fetched", "total", stats.Candidates, "fresh", len(items))

	for i, item := range items {
		if ctx.Err() != nil {
			stats.Interrupted = true
			break
		}

		status, reason := p.processItem(ctx, logger, item)
		metrics.ItemsTotal.WithLabelValues(string(status), string(reason)).Inc()

		switch status {
		case domain.StatusProcessed:
			stats.Processed++
			if i < len(items)-1 && p.cooldown > 0 {
				if err := p.sleep(ctx, p.cooldown); err != nil {
					stats.Interrupted = true
				}
			}
		case domain.StatusRejected:
			stats.Reject(reason)
		case domain.StatusFailed:
			stats.Failed++
		}
		if stats.Interrupted {
			break
		}
	}

	stats.FinishedAt = time.Now()
	result := "ok"
	if stats.Interrupted {
		result = "interrupted"
	}
	metrics.CyclesTotal.WithLabelValues(result).Inc()

	logger.Info("cycle finished",
		"processed", stats.Processed,
		"rejected", stats.Rejected,
		"failed", stats.Failed,
		"interrupted", stats.Interrupted,
		"duration", stats.FinishedAt.Sub(stats.StartedAt).Round(time.Millisecond),
	)
	// ctx may already be done; the summary still goes out
	p.notify(context.WithoutCancel(ctx), "info", buildCycleMessage(stats))
	return stats, nil
}

func (p *Pipeline) processItem(ctx context.Context, logger *slog.Logger, item domain.CandidateItem) (status domain.ProcessingStatus, reason domain.RejectReason) {
	logger = logger.With("url", item.URL)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("item panicked", "panic", fmt.Sprint(r))
			status, reason = domain.StatusFailed, domain.ReasonNone
		}
	}()

	if p.extractor != nil {
		extracted, err := retry.DoValue(ctx, p.extractionPolicy, func(ctx context.Context) (domain.CandidateItem, error) {
			return p.extractor.Extract(ctx, item)
		})
		if err != nil {
			return p.classify(logger, "extraction", err)
		}
		item = extracted
	}

	outcome, err := p.rewriter.Rewrite(ctx, item)
	if err != nil {
		return p.classify(logger, "rewrite", err)
	}

	record, err := p.approvals.Submit(ctx, approval.Submission{
		Item:           item,
		Result:         outcome.Result,
		HeuristicScore: outcome.Heuristic.Score,
		VariantID:      outcome.VariantID,
	})
	if err != nil {
		logger.Error("submit for approval failed", "error", err)
		return domain.StatusFailed, domain.ReasonNone
	}

	if p.autoPublish && !p.ManualApproval() {
		res, err := p.approvals.Approve(ctx, record.ID, "auto-published")
		switch {
		case err != nil:
			logger.Error("auto-publish failed", "approval_id", record.ID, "error", err)
		case !res.Published:
			logger.Warn("auto-publish handoff failed", "approval_id", record.ID, "message", res.Message)
		}
	}
	return domain.StatusProcessed, domain.ReasonNone
}

func (p *Pipeline) classify(logger *slog.Logger, stage string, err error) (domain.ProcessingStatus, domain.RejectReason) {
	var rejection *domain.Rejection
	if errors.As(err, &rejection) {
		logger.Info("item rejected", "stage", stage, "reason", rejection.Reason, "detail", rejection.Detail)
		return domain.StatusRejected, rejection.Reason
	}
	logger.Error("item failed", "stage", stage, "error", err)
	return domain.StatusFailed, domain.ReasonNone
}

func (p *Pipeline) notify(ctx context.Context, level, message string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, level, message); err != nil {
		p.logger.Warn("notification failed", "error", err)
	}
}

func buildCycleMessage(stats domain.CycleStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle finished: %d processed, %d rejected, %d failed of %d candidates",
		stats.Processed, stats.Rejected, stats.Failed, stats.Candidates)
	if stats.Interrupted {
		b.WriteString(" (interrupted)")
	}

	reasons := make([]string, 0, len(stats.Rejections))
	for reason := range stats.Rejections {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(&b, "\n- %s: %d", reason, stats.Rejections[domain.RejectReason(reason)])
	}
	return b.String()
}
