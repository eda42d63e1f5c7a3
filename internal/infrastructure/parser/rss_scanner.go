package parser

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ContentRewriter/internal/dedup"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/ratelimit"
	"ContentRewriter/internal/scanner"
)

const feedService = "rss"

// RSSScanner reads RSS 2.0, RSS 1.0 and Atom feeds and returns the newest
// entries of each feed.
type RSSScanner struct {
	client  *http.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client and an optional limiter.
func NewRSSScanner(client *http.Client, limiter *ratelimit.Limiter, logger *slog.Logger) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &RSSScanner{client: client, limiter: limiter, logger: logger, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (s *RSSScanner) Name() string {
	return "rss"
}

// Scan reads every feed of the request. A failing feed is logged and
// skipped; the scan fails only when every feed failed.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	if len(req.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	var (
		results []domain.CandidateItem
		errs    []error
	)
	for _, feed := range req.Feeds {
		if err := s.limiter.Wait(ctx, feedService, req.MinInterval); err != nil {
			return nil, err
		}

		items, err := s.scanFeed(ctx, req, feed)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.Name, err))
			if s.logger != nil {
				s.logger.Error("feed failed", "site", req.SiteName, "feed", feed.URL, "error", err)
			}
			continue
		}
		if s.logger != nil {
			s.logger.Info("feed read", "site", req.SiteName, "feed", feed.URL, "items", len(items))
		}
		results = append(results, items...)
	}

	if len(errs) == len(req.Feeds) {
		return nil, errors.Join(errs...)
	}
	return results, nil
}

func (s *RSSScanner) scanFeed(ctx context.Context, req scanner.Request, feed scanner.Feed) ([]domain.CandidateItem, error) {
	body, err := fetch(ctx, s.client, feed.URL, req.Options["userAgent"])
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var doc feedDocument
	if err := xml.NewDecoder(body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	source := firstNonEmpty(feed.Name, doc.title(), req.SiteName)
	entries := doc.entries()
	if limit := req.Limit(); len(entries) > limit {
		entries = entries[:limit]
	}

	now := s.now()
	items := make([]domain.CandidateItem, 0, len(entries))
	for _, e := range entries {
		link := strings.TrimSpace(e.link)
		if link == "" {
			continue
		}
		items = append(items, domain.CandidateItem{
			URL:          link,
			Title:        strings.TrimSpace(e.title),
			Source:       source,
			Content:      plainText(e.summary),
			Fingerprint:  dedup.Fingerprint(link),
			DiscoveredAt: now,
		})
	}
	return items, nil
}

type feedDocument struct {
	XMLName xml.Name
	Channel *rssChannel `xml:"channel"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
	Items   []rssItem   `xml:"item"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Encoded     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	Links   []atomLink `xml:"link"`
	Summary string     `xml:"summary"`
	Content string     `xml:"content"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type feedEntry struct {
	title   string
	link    string
	summary string
}

func (d feedDocument) title() string {
	if d.Channel != nil && d.Channel.Title != "" {
		return strings.TrimSpace(d.Channel.Title)
	}
	return strings.TrimSpace(d.Title)
}

func (d feedDocument) entries() []feedEntry {
	var out []feedEntry
	items := d.Items
	if d.Channel != nil {
		items = append(items, d.Channel.Items...)
	}
	for _, it := range items {
		link := it.Link
		if link == "" && strings.HasPrefix(it.GUID, "http") {
			link = it.GUID
		}
		out = append(out, feedEntry{
			title:   it.Title,
			link:    link,
			summary: firstNonEmpty(it.Encoded, it.Description),
		})
	}
	for _, e := range d.Entries {
		out = append(out, feedEntry{
			title:   e.Title,
			link:    e.href(),
			summary: firstNonEmpty(e.Content, e.Summary),
		})
	}
	return out
}

func (e atomEntry) href() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
