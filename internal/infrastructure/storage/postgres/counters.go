package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"ContentRewriter/internal/domain"
)

const (
	rateLimitTable = "rate_limit_logs"
	usageTable     = "api_usage_logs"
	variantTable   = "prompt_variant_stats"
)

func (s *Store) LastRequest(ctx context.Context, service string) (time.Time, bool, error) {
	var last time.Time
	err := s.get(ctx, &last, psql.Select("last_request_at").From(rateLimitTable).Where(sq.Eq{"service": service}))
	if errors.Is(err, domain.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read rate limit %s: %w", service, err)
	}
	return last, true, nil
}

func (s *Store) TouchRequest(ctx context.Context, service string, at time.Time) error {
	if _, err := s.exec(ctx, touchRequestQuery(service, at)); err != nil {
		return fmt.Errorf("write rate limit %s: %w", service, err)
	}
	return nil
}

func (s *Store) AddUsage(ctx context.Context, service string, day time.Time, calls, tokens int64) error {
	if _, err := s.exec(ctx, addUsageQuery(service, day, calls, tokens)); err != nil {
		return fmt.Errorf("add usage %s: %w", service, err)
	}
	return nil
}

func (s *Store) ListUsage(ctx context.Context, service string, from, to time.Time) ([]domain.UsageCounter, error) {
	var rows []struct {
		Service string    `db:"service"`
		Day     time.Time `db:"day"`
		Calls   int64     `db:"calls"`
		Tokens  int64     `db:"tokens"`
	}
	err := s.selectRows(ctx, &rows, psql.Select("service", "day", "calls", "tokens").
		From(usageTable).
		Where(sq.Eq{"service": service}).
		Where(sq.GtOrEq{"day": from.Format(time.DateOnly)}).
		Where(sq.LtOrEq{"day": to.Format(time.DateOnly)}).
		OrderBy("day"))
	if err != nil {
		return nil, fmt.Errorf("list usage %s: %w", service, err)
	}

	out := make([]domain.UsageCounter, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.UsageCounter{
			Service: row.Service,
			Day:     time.Date(row.Day.Year(), row.Day.Month(), row.Day.Day(), 0, 0, 0, 0, time.UTC),
			Calls:   row.Calls,
			Tokens:  row.Tokens,
		})
	}
	return out, nil
}

func (s *Store) LoadVariantStats(ctx context.Context, id string) (domain.VariantStats, error) {
	var row struct {
		Samples         int     `db:"samples"`
		MeanQuality     float64 `db:"mean_quality"`
		MeanOriginality float64 `db:"mean_originality"`
		MeanSEO         float64 `db:"mean_seo"`
		MeanAcceptance  float64 `db:"mean_acceptance"`
	}
	err := s.get(ctx, &row, psql.Select("samples", "mean_quality", "mean_originality", "mean_seo", "mean_acceptance").
		From(variantTable).
		Where(sq.Eq{"variant_id": id}))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.VariantStats{}, nil
	}
	if err != nil {
		return domain.VariantStats{}, fmt.Errorf("load variant %s: %w", id, err)
	}
	return domain.VariantStats{
		Samples:         row.Samples,
		MeanQuality:     row.MeanQuality,
		MeanOriginality: row.MeanOriginality,
		MeanSEO:         row.MeanSEO,
		MeanAcceptance:  row.MeanAcceptance,
	}, nil
}

func (s *Store) SaveVariantStats(ctx context.Context, variant domain.PromptVariant, stats domain.VariantStats) error {
	if _, err := s.exec(ctx, saveVariantQuery(variant, stats, s.now())); err != nil {
		return fmt.Errorf("save variant %s: %w", variant.ID, err)
	}
	return nil
}

func touchRequestQuery(service string, at time.Time) sq.InsertBuilder {
	return psql.Insert(rateLimitTable).
		Columns("service", "last_request_at").
		Values(service, at).
		Suffix("ON CONFLICT (service) DO UPDATE SET last_request_at = EXCLUDED.last_request_at")
}

// addUsageQuery increments the (service, day) row, creating it on first use.
func addUsageQuery(service string, day time.Time, calls, tokens int64) sq.InsertBuilder {
	return psql.Insert(usageTable).
		Columns("service", "day", "calls", "tokens").
		Values(service, day.UTC().Format(time.DateOnly), calls, tokens).
		Suffix("ON CONFLICT (service, day) DO UPDATE SET " +
			"calls = " + usageTable + ".calls + EXCLUDED.calls, " +
			"tokens = " + usageTable + ".tokens + EXCLUDED.tokens")
}

func saveVariantQuery(v domain.PromptVariant, stats domain.VariantStats, now time.Time) sq.InsertBuilder {
	return psql.Insert(variantTable).
		Columns("variant_id", "template", "samples", "mean_quality", "mean_originality", "mean_seo", "mean_acceptance", "updated_at").
		Values(v.ID, v.Template, stats.Samples, stats.MeanQuality, stats.MeanOriginality, stats.MeanSEO, stats.MeanAcceptance, now).
		Suffix("ON CONFLICT (variant_id) DO UPDATE SET " +
			"template = EXCLUDED.template, samples = EXCLUDED.samples, " +
			"mean_quality = EXCLUDED.mean_quality, mean_originality = EXCLUDED.mean_originality, " +
			"mean_seo = EXCLUDED.mean_seo, mean_acceptance = EXCLUDED.mean_acceptance, " +
			"updated_at = EXCLUDED.updated_at")
}
