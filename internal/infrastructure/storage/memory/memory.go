package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/ports"
)

// Store keeps every repository in process memory. It backs tests and the
// "memory" storage backend.
type Store struct {
	mu         sync.RWMutex
	published  map[string]domain.PublishedArticle
	rateLimits map[string]time.Time
	usage      map[usageKey]domain.UsageCounter
	approvals  map[int64]domain.ApprovalRecord
	nextID     int64
	variants   map[string]domain.VariantStats
}

type usageKey struct {
	service string
	day     string
}

var (
	_ ports.PublishedRepository    = (*Store)(nil)
	_ ports.RateLimitStore         = (*Store)(nil)
	_ ports.UsageRepository        = (*Store)(nil)
	_ ports.ApprovalRepository     = (*Store)(nil)
	_ ports.VariantStatsRepository = (*Store)(nil)
)

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		published:  map[string]domain.PublishedArticle{},
		rateLimits: map[string]time.Time{},
		usage:      map[usageKey]domain.UsageCounter{},
		approvals:  map[int64]domain.ApprovalRecord{},
		variants:   map[string]domain.VariantStats{},
	}
}

// -----------------------------------------------------------------------------
// Published articles
// -----------------------------------------------------------------------------

func (s *Store) PublishedExists(_ context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.published[fingerprint]
	return ok, nil
}

func (s *Store) SavePublished(_ context.Context, article domain.PublishedArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.published[article.Fingerprint]; ok {
		return fmt.Errorf("fingerprint %s already stored", article.Fingerprint)
	}
	s.published[article.Fingerprint] = article
	return nil
}

func (s *Store) SetPublicationURL(_ context.Context, fingerprint, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	article, ok := s.published[fingerprint]
	if !ok {
		return domain.ErrNotFound
	}
	article.PublicationURL = url
	s.published[fingerprint] = article
	return nil
}

// Published returns a stored article, for inspection in tests.
func (s *Store) Published(fingerprint string) (domain.PublishedArticle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.published[fingerprint]
	return a, ok
}

// -----------------------------------------------------------------------------
// Rate limit state
// -----------------------------------------------------------------------------

func (s *Store) LastRequest(_ context.Context, service string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.rateLimits[service]
	return t, ok, nil
}

func (s *Store) TouchRequest(_ context.Context, service string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimits[service] = at
	return nil
}

// -----------------------------------------------------------------------------
// Usage counters
// -----------------------------------------------------------------------------

func (s *Store) AddUsage(_ context.Context, service string, day time.Time, calls, tokens int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := usageKey{service: service, day: day.Format(time.DateOnly)}
	counter, ok := s.usage[key]
	if !ok {
		counter = domain.UsageCounter{Service: service, Day: day}
	}
	counter.Calls += calls
	counter.Tokens += tokens
	s.usage[key] = counter
	return nil
}

func (s *Store) ListUsage(_ context.Context, service string, from, to time.Time) ([]domain.UsageCounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.UsageCounter
	for key, counter := range s.usage {
		if key.service != service {
			continue
		}
		if counter.Day.Before(from) || counter.Day.After(to) {
			continue
		}
		out = append(out, counter)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// -----------------------------------------------------------------------------
// Approvals
// -----------------------------------------------------------------------------

func (s *Store) CreateApproval(_ context.Context, record domain.ApprovalRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record.ID = s.nextID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.approvals[record.ID] = cloneApproval(record)
	return record.ID, nil
}

func (s *Store) GetApproval(_ context.Context, id int64) (domain.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.approvals[id]
	if !ok {
		return domain.ApprovalRecord{}, domain.ErrNotFound
	}
	return cloneApproval(record), nil
}

func (s *Store) ListApprovals(_ context.Context, status domain.ApprovalStatus) ([]domain.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ApprovalRecord
	for _, record := range s.approvals {
		if record.Status == status {
			out = append(out, cloneApproval(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) TransitionApproval(_ context.Context, id int64, to domain.ApprovalStatus, notes string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.approvals[id]
	if !ok || record.Status != domain.ApprovalPending {
		return false, nil
	}
	record.Status = to
	record.ReviewerNotes = notes
	reviewed := at
	record.ReviewedAt = &reviewed
	s.approvals[id] = record
	return true, nil
}

func (s *Store) ClaimPublication(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.approvals[id]
	if !ok || record.Status != domain.ApprovalApproved || record.PublishedAt != nil {
		return false, nil
	}
	published := at
	record.PublishedAt = &published
	s.approvals[id] = record
	return true, nil
}

func (s *Store) SetApprovalPublication(_ context.Context, id int64, url, publishErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.approvals[id]
	if !ok {
		return domain.ErrNotFound
	}
	record.PublicationURL = url
	record.PublishError = publishErr
	if publishErr != "" {
		record.PublishedAt = nil
	}
	s.approvals[id] = record
	return nil
}

func (s *Store) CountApprovals(_ context.Context) (domain.ApprovalStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats domain.ApprovalStats
	for _, record := range s.approvals {
		switch record.Status {
		case domain.ApprovalPending:
			stats.Pending++
		case domain.ApprovalApproved:
			stats.Approved++
		case domain.ApprovalRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

func cloneApproval(r domain.ApprovalRecord) domain.ApprovalRecord {
	r.Result.Keywords = append([]string(nil), r.Result.Keywords...)
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		r.ReviewedAt = &t
	}
	if r.PublishedAt != nil {
		t := *r.PublishedAt
		r.PublishedAt = &t
	}
	return r
}

// -----------------------------------------------------------------------------
// Prompt variant statistics
// -----------------------------------------------------------------------------

func (s *Store) LoadVariantStats(_ context.Context, id string) (domain.VariantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.variants[id], nil
}

func (s *Store) SaveVariantStats(_ context.Context, variant domain.PromptVariant, stats domain.VariantStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[variant.ID] = stats
	return nil
}
