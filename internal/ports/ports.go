package ports

import (
	"context"
	"time"

	"ContentRewriter/internal/domain"
)

// CandidateSource pulls fresh candidate items from upstream feeds.
type CandidateSource interface {
	FetchCandidates(ctx context.Context) ([]domain.CandidateItem, error)
}

// ContentExtractor downloads the article and returns a copy carrying its text.
// Soft skips are reported as *domain.Rejection.
type ContentExtractor interface {
	Extract(ctx context.Context, item domain.CandidateItem) (domain.CandidateItem, error)
}

// Generator sends a prompt to the generative text service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (domain.Completion, error)
}

// PublicationSink creates the public post for an approved record.
type PublicationSink interface {
	Publish(ctx context.Context, record domain.ApprovalRecord) (domain.Publication, error)
}

// Notifier streams operator messages to chat channels.
type Notifier interface {
	Notify(ctx context.Context, level, message string) error
}

// PublishedRepository persists handed-off articles for deduplication and audit.
type PublishedRepository interface {
	PublishedExists(ctx context.Context, fingerprint string) (bool, error)
	SavePublished(ctx context.Context, article domain.PublishedArticle) error
	SetPublicationURL(ctx context.Context, fingerprint, url string) error
}

// RateLimitStore keeps the last request time per service.
type RateLimitStore interface {
	LastRequest(ctx context.Context, service string) (time.Time, bool, error)
	TouchRequest(ctx context.Context, service string, at time.Time) error
}

// UsageRepository stores per-day API usage counters.
type UsageRepository interface {
	AddUsage(ctx context.Context, service string, day time.Time, calls, tokens int64) error
	ListUsage(ctx context.Context, service string, from, to time.Time) ([]domain.UsageCounter, error)
}

// ApprovalRepository persists review records.
// TransitionApproval must only change rows still in pending state and
// reports false when none matched. ClaimPublication sets published_at on an
// approved record that has none and reports false otherwise.
// SetApprovalPublication with a non-empty publishErr clears that mark.
type ApprovalRepository interface {
	CreateApproval(ctx context.Context, record domain.ApprovalRecord) (int64, error)
	GetApproval(ctx context.Context, id int64) (domain.ApprovalRecord, error)
	ListApprovals(ctx context.Context, status domain.ApprovalStatus) ([]domain.ApprovalRecord, error)
	TransitionApproval(ctx context.Context, id int64, to domain.ApprovalStatus, notes string, at time.Time) (bool, error)
	ClaimPublication(ctx context.Context, id int64, at time.Time) (bool, error)
	SetApprovalPublication(ctx context.Context, id int64, url, publishErr string) error
	CountApprovals(ctx context.Context) (domain.ApprovalStats, error)
}

// VariantStatsRepository persists learned prompt statistics.
// Loading an unknown variant yields zero stats.
type VariantStatsRepository interface {
	LoadVariantStats(ctx context.Context, id string) (domain.VariantStats, error)
	SaveVariantStats(ctx context.Context, variant domain.PromptVariant, stats domain.VariantStats) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
