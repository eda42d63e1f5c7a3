package domain

import "time"

// CandidateItem is a feed entry considered for rewriting.
// Values are never mutated after extraction; WithContent returns a copy.
type CandidateItem struct {
	URL          string
	Title        string
	Source       string
	Content      string
	Fingerprint  string
	DiscoveredAt time.Time
}

// WithContent returns a copy of the item carrying extracted article text.
func (c CandidateItem) WithContent(content string) CandidateItem {
	c.Content = content
	return c
}

// PublishedArticle is the dedup/audit row written when an item is handed to approval.
type PublishedArticle struct {
	Fingerprint      string
	URL              string
	Title            string
	ContentHash      string
	BodySnippet      string
	FullBody         string
	Source           string
	PublishedAt      time.Time
	QualityScore     float64
	OriginalityScore float64
	PublicationURL   string
}

// ProcessingStatus enumerates per-item pipeline outcomes.
type ProcessingStatus string

const (
	StatusProcessed ProcessingStatus = "processed"
	StatusRejected  ProcessingStatus = "rejected"
	StatusFailed    ProcessingStatus = "failed"
)

// RejectReason names the business rule that excluded an item.
type RejectReason string

const (
	ReasonNone            RejectReason = ""
	ReasonDuplicate       RejectReason = "duplicate"
	ReasonBlockedDomain   RejectReason = "blocked_domain"
	ReasonContentTooShort RejectReason = "content_too_short"
	ReasonEmptyResponse   RejectReason = "empty_response"
	ReasonMalformedOutput RejectReason = "malformed_output"
	ReasonMissingFields   RejectReason = "missing_fields"
	ReasonLowQuality      RejectReason = "low_quality"
)

// Rejection is returned by collaborators that decide to skip an item.
// It is an expected outcome and is counted, not reported.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return "rejected: " + string(r.Reason)
	}
	return "rejected: " + string(r.Reason) + ": " + r.Detail
}

// CycleStats aggregates the outcome of one pipeline run.
type CycleStats struct {
	CycleID     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Candidates  int
	Processed   int
	Rejected    int
	Failed      int
	Rejections  map[RejectReason]int
	Interrupted bool
}

// Reject counts a soft rejection.
func (s *CycleStats) Reject(reason RejectReason) {
	if s.Rejections == nil {
		s.Rejections = map[RejectReason]int{}
	}
	s.Rejected++
	s.Rejections[reason]++
}
