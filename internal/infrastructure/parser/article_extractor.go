package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ContentRewriter/internal/config"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/ports"
	"ContentRewriter/internal/ratelimit"
)

const (
	extractionService = "extraction"
	// DefaultMinContentLength is the shortest article text kept after extraction.
	DefaultMinContentLength = 150
)

// noise is removed before text is collected.
const noise = "script, style, noscript, nav, header, footer, aside, form, iframe, figure"

// ArticleExtractor downloads an article page and keeps its readable text.
type ArticleExtractor struct {
	client      *http.Client
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
	blocked     []string
	userAgent   string
	minLength   int
	minInterval time.Duration
}

var _ ports.ContentExtractor = (*ArticleExtractor)(nil)

// NewArticleExtractor builds an extractor from configuration. limiter may be nil.
func NewArticleExtractor(cfg config.ExtractionConfig, limiter *ratelimit.Limiter, logger *slog.Logger) *ArticleExtractor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	minLength := cfg.MinContentLength
	if minLength <= 0 {
		minLength = DefaultMinContentLength
	}
	blocked := make([]string, 0, len(cfg.BlockedDomains))
	for _, d := range cfg.BlockedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			blocked = append(blocked, d)
		}
	}
	return &ArticleExtractor{
		client:      &http.Client{Timeout: timeout},
		limiter:     limiter,
		logger:      logger,
		blocked:     blocked,
		userAgent:   cfg.UserAgent,
		minLength:   minLength,
		minInterval: cfg.MinInterval,
	}
}

// Extract returns a copy of item carrying the article text. Blocked
// domains and short texts are reported as *domain.Rejection.
func (e *ArticleExtractor) Extract(ctx context.Context, item domain.CandidateItem) (domain.CandidateItem, error) {
	if domainName, blocked := e.isBlocked(item.URL); blocked {
		return domain.CandidateItem{}, &domain.Rejection{Reason: domain.ReasonBlockedDomain, Detail: domainName}
	}

	if err := e.limiter.Wait(ctx, extractionService, e.minInterval); err != nil {
		return domain.CandidateItem{}, err
	}

	doc, err := fetchDocument(ctx, e.client, item.URL, e.userAgent)
	if err != nil {
		return domain.CandidateItem{}, fmt.Errorf("extract %s: %w", item.URL, err)
	}

	text := articleText(doc)
	if n := len([]rune(text)); n < e.minLength {
		return domain.CandidateItem{}, &domain.Rejection{
			Reason: domain.ReasonContentTooShort,
			Detail: fmt.Sprintf("%d chars extracted, need %d", n, e.minLength),
		}
	}

	if e.logger != nil {
		e.logger.Debug("article extracted", "url", item.URL, "chars", len(text))
	}
	return item.WithContent(text), nil
}

func (e *ArticleExtractor) isBlocked(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range e.blocked {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}

// articleText prefers the <article> or <main> element and joins paragraph
// text; without paragraphs the whole container text is used.
func articleText(doc *goquery.Document) string {
	doc.Find(noise).Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var paragraphs []string
	root.Find("p, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return strings.Join(strings.Fields(root.Text()), " ")
	}
	return strings.Join(paragraphs, "\n\n")
}
