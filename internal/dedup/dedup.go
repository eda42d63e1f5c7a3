package dedup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"

	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/ports"
)

// Fingerprint hashes the canonical form of a source URL.
func Fingerprint(rawURL string) string {
	sum := md5.Sum([]byte(canonicalURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// ContentHash hashes a rewritten body for duplicate-content audits.
func ContentHash(body string) string {
	sum := md5.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

// canonicalURL lowercases scheme and host and drops the fragment.
// Unparseable input is used as-is after trimming.
func canonicalURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return trimmed
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}

// Deduplicator rejects candidates whose URL fingerprint is already stored.
type Deduplicator struct {
	repo   ports.PublishedRepository
	logger *slog.Logger
}

// New builds a deduplicator backed by the published-article store.
func New(repo ports.PublishedRepository, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{repo: repo, logger: logger}
}

// IsDuplicate looks the fingerprint up without side effects. Lookup errors
// are logged and treated as "not seen"; the store's unique constraint on
// fingerprint still protects storage.
func (d *Deduplicator) IsDuplicate(ctx context.Context, fingerprint string) bool {
	if d == nil || d.repo == nil {
		return false
	}
	exists, err := d.repo.PublishedExists(ctx, fingerprint)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("duplicate lookup failed", "fingerprint", fingerprint, "error", err)
		}
		return false
	}
	return exists
}

// Filter drops already-stored candidates and repeats inside the batch,
// preserving feed order. It returns the number of dropped items.
func (d *Deduplicator) Filter(ctx context.Context, items []domain.CandidateItem) ([]domain.CandidateItem, int) {
	fresh := make([]domain.CandidateItem, 0, len(items))
	seen := map[string]struct{}{}
	dropped := 0
	for _, item := range items {
		fp := item.Fingerprint
		if fp == "" {
			fp = Fingerprint(item.URL)
			item.Fingerprint = fp
		}
		if _, ok := seen[fp]; ok {
			dropped++
			continue
		}
		seen[fp] = struct{}{}
		if d.IsDuplicate(ctx, fp) {
			dropped++
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh, dropped
}
