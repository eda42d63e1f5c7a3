package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ContentRewriter/internal/config"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/ports"
	"ContentRewriter/internal/scanner"
)

// StrategySource implements CandidateSource by running the scanner strategy
// configured for every source.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource binds configured sources to a scanner registry.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, logger *slog.Logger) *StrategySource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StrategySource{registry: reg, sources: sources, logger: logger}
}

// FetchCandidates returns the candidates of all sources in configuration
// and feed order. A source whose scan fails is skipped unless every source
// failed; an unknown scanner name is a configuration error.
func (s *StrategySource) FetchCandidates(ctx context.Context) ([]domain.CandidateItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	var (
		candidates []domain.CandidateItem
		failures   []error
	)
	for _, src := range s.sources {
		strategy, err := s.registry.Resolve(src.Scanner)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		items, err := strategy.Scan(ctx, requestFor(src))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("source scan failed", "source", src.Name, "scanner", src.Scanner, "error", err)
			failures = append(failures, fmt.Errorf("scan source %s: %w", src.Name, err))
			continue
		}

		for i := range items {
			if items[i].Source == "" {
				items[i].Source = src.Name
			}
		}
		s.logger.Debug("source scanned", "source", src.Name, "candidates", len(items))
		candidates = append(candidates, items...)
	}

	if len(s.sources) > 0 && len(failures) == len(s.sources) {
		return nil, errors.Join(failures...)
	}
	return candidates, nil
}

func requestFor(src config.SourceConfig) scanner.Request {
	feeds := make([]scanner.Feed, 0, len(src.Feeds))
	for _, f := range src.Feeds {
		feeds = append(feeds, scanner.Feed{Name: f.Name, URL: f.URL})
	}
	return scanner.Request{
		SiteName:    src.Name,
		Feeds:       feeds,
		MaxItems:    src.MaxItems,
		MinInterval: src.MinInterval,
		Options:     src.Options,
	}
}
