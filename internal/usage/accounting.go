package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/ports"
)

// Accounting keeps per-service, per-day call and token counters.
type Accounting struct {
	repo   ports.UsageRepository
	logger *slog.Logger
	now    func() time.Time
}

// New binds the accounting to a usage repository.
func New(repo ports.UsageRepository, logger *slog.Logger) *Accounting {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accounting{
		repo:   repo,
		logger: logger.With("component", "usage"),
		now:    time.Now,
	}
}

// Record adds calls and tokens to today's UTC row. Failures are logged only.
func (a *Accounting) Record(ctx context.Context, service string, calls, tokens int64) {
	day := Day(a.now())
	if err := a.repo.AddUsage(ctx, service, day, calls, tokens); err != nil {
		a.logger.Warn("usage not recorded", "service", service, "calls", calls, "tokens", tokens, "error", err)
	}
}

// Summarize sums counters for service over the inclusive day range.
func (a *Accounting) Summarize(ctx context.Context, service string, from, to time.Time) (domain.UsageSummary, error) {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return domain.UsageSummary{}, fmt.Errorf("invalid range: %s is before %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	rows, err := a.repo.ListUsage(ctx, service, from, to)
	if err != nil {
		return domain.UsageSummary{}, fmt.Errorf("list usage for %s: %w", service, err)
	}

	summary := domain.UsageSummary{Service: service, From: from, To: to}
	for _, row := range rows {
		summary.Days++
		summary.Calls += row.Calls
		summary.Tokens += row.Tokens
	}
	return summary, nil
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
