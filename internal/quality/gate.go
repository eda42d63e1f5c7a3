package quality

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"ContentRewriter/internal/domain"
)

// DefaultCacheSize bounds the heuristic memo when no size is configured.
const DefaultCacheSize = 100

// Decision is the outcome of the acceptance check.
type Decision struct {
	Accepted bool
	Reason   domain.RejectReason
	Missing  []string
	Score    float64
}

func (d Decision) String() string {
	switch {
	case d.Accepted:
		return fmt.Sprintf("accepted (score %.0f)", d.Score)
	case d.Reason == domain.ReasonMissingFields:
		return "missing fields: " + strings.Join(d.Missing, ", ")
	default:
		return fmt.Sprintf("%s (score %.0f)", d.Reason, d.Score)
	}
}

type heuristicKey struct {
	fingerprint string
	words       int
	unique      int
}

// Gate validates rewrite results and owns the heuristic score memo.
type Gate struct {
	cache *lru.Cache[heuristicKey, *domain.HeuristicScore]

	mu       sync.Mutex
	computed int
}

// NewGate builds a gate whose memo holds at most cacheSize entries.
func NewGate(cacheSize int) (*Gate, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[heuristicKey, *domain.HeuristicScore](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("heuristic cache: %w", err)
	}
	return &Gate{cache: cache}, nil
}

// Accept checks required fields first, then the model-provided quality
// score against threshold. Rejections are expected outcomes.
func (g *Gate) Accept(result domain.RewriteResult, threshold float64) Decision {
	if missing := result.MissingFields(); len(missing) > 0 {
		return Decision{Reason: domain.ReasonMissingFields, Missing: missing, Score: result.QualityScore}
	}
	if result.QualityScore < threshold {
		return Decision{Reason: domain.ReasonLowQuality, Score: result.QualityScore}
	}
	return Decision{Accepted: true, Score: result.QualityScore}
}

// Heuristic returns the memoized heuristic score for the key. Repeated calls
// with the same key return the same pointer without recomputation.
func (g *Gate) Heuristic(fingerprint string, words, unique int) *domain.HeuristicScore {
	key := heuristicKey{fingerprint: fingerprint, words: words, unique: unique}
	if cached, ok := g.cache.Get(key); ok {
		return cached
	}

	g.mu.Lock()
	g.computed++
	g.mu.Unlock()

	score := &domain.HeuristicScore{
		Score:       HeuristicScore(words, unique),
		WordCount:   words,
		UniqueWords: unique,
	}
	g.cache.Add(key, score)
	return score
}

// Evaluate counts words in an HTML or plain-text body and scores it.
func (g *Gate) Evaluate(fingerprint, body string) *domain.HeuristicScore {
	words, unique := CountWords(body)
	return g.Heuristic(fingerprint, words, unique)
}

// HeuristicScore is 30 for 300+ words, +20 for 500+, +10 for 800+ and +40
// when more than half the words are unique, capped at 100.
func HeuristicScore(words, unique int) int {
	if words <= 0 {
		return 0
	}
	score := 0
	if words >= 300 {
		score += 30
	}
	if words >= 500 {
		score += 20
	}
	if words >= 800 {
		score += 10
	}
	if float64(unique)/float64(words) > 0.5 {
		score += 40
	}
	return min(score, 100)
}

// CountWords strips markup and returns total and case-insensitive unique
// word counts.
func CountWords(body string) (words, unique int) {
	text := body
	if strings.ContainsRune(body, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
			doc.Find("script, style").Remove()
			// keep words in adjacent block elements apart
			doc.Find("body *").AppendHtml(" ")
			text = doc.Text()
		}
	}

	seen := map[string]struct{}{}
	for _, w := range strings.Fields(text) {
		words++
		seen[strings.ToLower(w)] = struct{}{}
	}
	return words, len(seen)
}
