package domain

import (
	"fmt"
	"time"
)

// ApprovalStatus is the state of a review record.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s ApprovalStatus) Terminal() bool {
	switch s {
	case ApprovalPending:
		return false
	case ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// ParseApprovalStatus validates a persisted status string.
func ParseApprovalStatus(v string) (ApprovalStatus, error) {
	switch s := ApprovalStatus(v); s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return s, nil
	}
	return "", fmt.Errorf("unknown approval status %q", v)
}

// ApprovalRecord is a rewritten article waiting for, or past, human review.
type ApprovalRecord struct {
	ID             int64
	Result         RewriteResult
	SourceURL      string
	SourceName     string
	Fingerprint    string
	HeuristicScore int
	VariantID      string
	Status         ApprovalStatus
	ReviewedAt     *time.Time
	ReviewerNotes  string
	PublishedAt    *time.Time
	PublicationURL string
	PublishError   string
	CreatedAt      time.Time
}

// Published reports whether the record was handed to the publication sink.
// It holds from the moment the handoff is claimed, so a record whose outcome
// could not be stored is never offered to the sink again. The sink may
// return an empty URL.
func (r ApprovalRecord) Published() bool {
	return r.PublishedAt != nil
}

// ApprovalStats counts records per status.
type ApprovalStats struct {
	Pending  int `json:"pendingCount"`
	Approved int `json:"approvedCount"`
	Rejected int `json:"rejectedCount"`
}

// Total sums all statuses.
func (s ApprovalStats) Total() int {
	return s.Pending + s.Approved + s.Rejected
}
