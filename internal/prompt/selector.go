package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/ports"
)

// MinSamples is the number of outcomes a variant needs before it is ranked.
const MinSamples = 5

// ErrUnknownVariant is returned for ids outside the configured pool.
var ErrUnknownVariant = errors.New("unknown prompt variant")

// Selector rotates through variants and tracks their running statistics.
// The cursor is in-memory and restarts at the first variant; statistics
// live in the repository and survive restarts.
type Selector struct {
	mu       sync.Mutex
	variants []domain.PromptVariant
	position map[string]int
	cursor   int
	repo     ports.VariantStatsRepository
	logger   *slog.Logger
}

// Report pairs a variant with its learned statistics.
type Report struct {
	ID        string  `json:"id"`
	Samples   int     `json:"samples"`
	Quality   float64 `json:"meanQuality"`
	Original  float64 `json:"meanOriginality"`
	SEO       float64 `json:"meanSeo"`
	Accepted  float64 `json:"acceptanceRate"`
	Composite float64 `json:"composite"`
	Ranked    bool    `json:"ranked"`
}

// NewSelector validates the pool and binds a statistics repository.
func NewSelector(variants []domain.PromptVariant, repo ports.VariantStatsRepository, logger *slog.Logger) (*Selector, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("prompt selector needs at least one variant")
	}
	if repo == nil {
		return nil, fmt.Errorf("prompt selector needs a statistics repository")
	}
	position := make(map[string]int, len(variants))
	for i, v := range variants {
		if v.ID == "" {
			return nil, fmt.Errorf("variant %d has no id", i)
		}
		if _, dup := position[v.ID]; dup {
			return nil, fmt.Errorf("duplicate variant id %s", v.ID)
		}
		position[v.ID] = i
	}
	return &Selector{
		variants: append([]domain.PromptVariant(nil), variants...),
		position: position,
		repo:     repo,
		logger:   logger,
	}, nil
}

// Select returns the next variant in round-robin order.
func (s *Selector) Select() domain.PromptVariant {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.variants[s.cursor%len(s.variants)]
	s.cursor = (s.cursor + 1) % len(s.variants)
	return v
}

// RecordOutcome folds one rewrite outcome into the variant's running means.
func (s *Selector) RecordOutcome(ctx context.Context, id string, quality, originality, seo float64, accepted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.position[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariant, id)
	}

	stats, err := s.repo.LoadVariantStats(ctx, id)
	if err != nil {
		return fmt.Errorf("load stats for %s: %w", id, err)
	}
	stats = stats.Observe(quality, originality, seo, accepted)
	if err := s.repo.SaveVariantStats(ctx, s.variants[idx], stats); err != nil {
		return fmt.Errorf("save stats for %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.Debug("prompt outcome recorded", "variant", id, "samples", stats.Samples, "accepted", accepted)
	}
	return nil
}

// Best returns the top-ranked variant among those with at least MinSamples
// outcomes. Ties go to the lowest variant id, numeric when both ids are
// integers. Without any ranked variant the first configured one is returned.
func (s *Selector) Best(ctx context.Context) (domain.PromptVariant, error) {
	reports, err := s.Statistics(ctx)
	if err != nil {
		return domain.PromptVariant{}, err
	}
	for _, r := range reports {
		if r.Ranked {
			return s.variants[s.position[r.ID]], nil
		}
	}
	return s.variants[0], nil
}

// Statistics lists every variant, ranked ones first by descending
// composite score and ascending id, then the rest in configured order.
func (s *Selector) Statistics(ctx context.Context) ([]Report, error) {
	reports := make([]Report, 0, len(s.variants))
	for _, v := range s.variants {
		stats, err := s.repo.LoadVariantStats(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("load stats for %s: %w", v.ID, err)
		}
		reports = append(reports, Report{
			ID:        v.ID,
			Samples:   stats.Samples,
			Quality:   stats.MeanQuality,
			Original:  stats.MeanOriginality,
			SEO:       stats.MeanSEO,
			Accepted:  stats.MeanAcceptance,
			Composite: stats.Composite(),
			Ranked:    stats.Samples >= MinSamples,
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if a.Ranked != b.Ranked {
			return a.Ranked
		}
		if !a.Ranked {
			return false
		}
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		return lowerID(a.ID, b.ID)
	})
	return reports, nil
}

// Variants returns the configured pool.
func (s *Selector) Variants() []domain.PromptVariant {
	return append([]domain.PromptVariant(nil), s.variants...)
}

// lowerID orders integer ids numerically, so "9" comes before "10", and
// everything else as strings.
func lowerID(a, b string) bool {
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	if errA == nil && errB == nil && x != y {
		return x < y
	}
	return a < b
}
