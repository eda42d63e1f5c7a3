package domain

import "time"

// PromptVariant is one rewrite template in the A/B pool.
type PromptVariant struct {
	ID       string
	Template string
}

// VariantStats holds running means for a variant.
type VariantStats struct {
	Samples         int
	MeanQuality     float64
	MeanOriginality float64
	MeanSEO         float64
	MeanAcceptance  float64
}

// Observe folds one sample into the running means:
// mean' = (mean*n + x) / (n+1).
func (s VariantStats) Observe(quality, originality, seo float64, accepted bool) VariantStats {
	n := float64(s.Samples)
	acceptance := 0.0
	if accepted {
		acceptance = 1
	}
	return VariantStats{
		Samples:         s.Samples + 1,
		MeanQuality:     (s.MeanQuality*n + quality) / (n + 1),
		MeanOriginality: (s.MeanOriginality*n + originality) / (n + 1),
		MeanSEO:         (s.MeanSEO*n + seo) / (n + 1),
		MeanAcceptance:  (s.MeanAcceptance*n + acceptance) / (n + 1),
	}
}

// Composite is the ranking score used to pick the best variant.
func (s VariantStats) Composite() float64 {
	return s.MeanQuality + s.MeanOriginality + s.MeanSEO + 100*s.MeanAcceptance
}

// RateLimitState is the last call time of a named service.
type RateLimitState struct {
	Service       string
	LastRequestAt time.Time
}

// UsageCounter is one per-service, per-day usage row.
type UsageCounter struct {
	Service string
	Day     time.Time
	Calls   int64
	Tokens  int64
}

// UsageSummary aggregates counters over a day range.
type UsageSummary struct {
	Service string    `json:"service"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Days    int       `json:"days"`
	Calls   int64     `json:"calls"`
	Tokens  int64     `json:"tokens"`
}
