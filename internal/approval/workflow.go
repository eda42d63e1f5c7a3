package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ContentRewriter/internal/dedup"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/metrics"
	"ContentRewriter/internal/ports"
)

// SnippetLength is the number of runes kept in PublishedArticle.BodySnippet.
const SnippetLength = 500

var (
	// ErrInvalidState is returned when a record is not in the state an
	// operation requires.
	ErrInvalidState = errors.New("approval record is not in a valid state for this operation")
	// ErrNotFound is returned for unknown record ids.
	ErrNotFound = domain.ErrNotFound
)

// Outcome describes the result of an approval or publication retry.
type Outcome struct {
	Approved       bool   `json:"approved"`
	Published      bool   `json:"published"`
	PublicationURL string `json:"publicationUrl,omitempty"`
	Message        string `json:"message"`
}

// Submission is what the pipeline hands to review.
type Submission struct {
	Item           domain.CandidateItem
	Result         domain.RewriteResult
	HeuristicScore int
	VariantID      string
}

// WorkflowDeps wires the collaborators of the workflow. Sink may be nil,
// in which case approvals are recorded but never handed off.
type WorkflowDeps struct {
	Approvals      ports.ApprovalRepository
	Published      ports.PublishedRepository
	Sink           ports.PublicationSink
	Logger         *slog.Logger
	OnUnauthorized func(error)
}

// Workflow guards publication behind a pending → approved|rejected
// state machine.
type Workflow struct {
	approvals      ports.ApprovalRepository
	published      ports.PublishedRepository
	sink           ports.PublicationSink
	logger         *slog.Logger
	onUnauthorized func(error)
	now            func() time.Time
}

// NewWorkflow validates deps and returns a workflow.
func NewWorkflow(deps WorkflowDeps) (*Workflow, error) {
	if deps.Approvals == nil {
		return nil, fmt.Errorf("approval repository is required")
	}
	if deps.Published == nil {
		return nil, fmt.Errorf("published repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		approvals:      deps.Approvals,
		published:      deps.Published,
		sink:           deps.Sink,
		logger:         logger.With("component", "approval"),
		onUnauthorized: deps.OnUnauthorized,
		now:            time.Now,
	}, nil
}

// Submit stores a pending record and registers the article for
// deduplication. A failure to register is logged; the record stays.
func (w *Workflow) Submit(ctx context.Context, sub Submission) (domain.ApprovalRecord, error) {
	now := w.now()
	record := domain.ApprovalRecord{
		Result:         sub.Result,
		SourceURL:      sub.Item.URL,
		SourceName:     sub.Item.Source,
		Fingerprint:    sub.Item.Fingerprint,
		HeuristicScore: sub.HeuristicScore,
		VariantID:      sub.VariantID,
		Status:         domain.ApprovalPending,
		CreatedAt:      now,
	}
	if record.Fingerprint == "" {
		record.Fingerprint = dedup.Fingerprint(sub.Item.URL)
	}

	id, err := w.approvals.CreateApproval(ctx, record)
	if err != nil {
		return domain.ApprovalRecord{}, fmt.Errorf("create approval: %w", err)
	}
	record.ID = id

	article := domain.PublishedArticle{
		Fingerprint:      record.Fingerprint,
		URL:              sub.Item.URL,
		Title:            sub.Result.Title,
		ContentHash:      dedup.ContentHash(sub.Result.Body),
		BodySnippet:      snippet(sub.Result.Body, SnippetLength),
		FullBody:         sub.Result.Body,
		Source:           sub.Item.Source,
		PublishedAt:      now,
		QualityScore:     sub.Result.QualityScore,
		OriginalityScore: sub.Result.OriginalityScore,
	}
	if err := w.published.SavePublished(ctx, article); err != nil {
		w.logger.Error("article not registered for deduplication", "approval_id", id, "fingerprint", record.Fingerprint, "error", err)
	}

	w.logger.Info("article awaiting approval", "approval_id", id, "title", record.Result.Title, "quality", record.Result.QualityScore)
	return record, nil
}

// ListPending returns pending records, newest first.
func (w *Workflow) ListPending(ctx context.Context) ([]domain.ApprovalRecord, error) {
	records, err := w.approvals.ListApprovals(ctx, domain.ApprovalPending)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return records, nil
}

// Get returns one record.
func (w *Workflow) Get(ctx context.Context, id int64) (domain.ApprovalRecord, error) {
	record, err := w.approvals.GetApproval(ctx, id)
	if err != nil {
		return domain.ApprovalRecord{}, fmt.Errorf("get approval %d: %w", id, err)
	}
	return record, nil
}

// Approve moves a pending record to approved, then hands it to the sink.
// A handoff failure does not undo the approval; it is reported in the
// outcome and stored as the record's publish error.
func (w *Workflow) Approve(ctx context.Context, id int64, notes string) (Outcome, error) {
	record, err := w.transition(ctx, id, domain.ApprovalApproved, notes)
	if err != nil {
		return Outcome{}, err
	}
	metrics.ApprovalDecisions.WithLabelValues(string(domain.ApprovalApproved)).Inc()
	w.logger.Info("article approved", "approval_id", id, "title", record.Result.Title)
	return w.handoff(ctx, record), nil
}

// Reject moves a pending record to rejected.
func (w *Workflow) Reject(ctx context.Context, id int64, notes string) error {
	if _, err := w.transition(ctx, id, domain.ApprovalRejected, notes); err != nil {
		return err
	}
	metrics.ApprovalDecisions.WithLabelValues(string(domain.ApprovalRejected)).Inc()
	w.logger.Info("article rejected", "approval_id", id)
	return nil
}

// RetryPublication re-attempts the handoff of an approved record that was
// never published.
func (w *Workflow) RetryPublication(ctx context.Context, id int64) (Outcome, error) {
	record, err := w.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if record.Status != domain.ApprovalApproved {
		return Outcome{}, fmt.Errorf("%w: record %d is %s", ErrInvalidState, id, record.Status)
	}
	if record.Published() {
		return Outcome{}, fmt.Errorf("%w: record %d already handed off at %s", ErrInvalidState, id, record.PublishedAt.Format(time.RFC3339))
	}
	return w.handoff(ctx, record), nil
}

// Stats counts records per status.
func (w *Workflow) Stats(ctx context.Context) (domain.ApprovalStats, error) {
	stats, err := w.approvals.CountApprovals(ctx)
	if err != nil {
		return domain.ApprovalStats{}, fmt.Errorf("count approvals: %w", err)
	}
	return stats, nil
}

func (w *Workflow) transition(ctx context.Context, id int64, to domain.ApprovalStatus, notes string) (domain.ApprovalRecord, error) {
	record, err := w.Get(ctx, id)
	if err != nil {
		return domain.ApprovalRecord{}, err
	}
	if record.Status.Terminal() {
		return domain.ApprovalRecord{}, fmt.Errorf("%w: record %d is already %s", ErrInvalidState, id, record.Status)
	}

	at := w.now()
	ok, err := w.approvals.TransitionApproval(ctx, id, to, notes, at)
	if err != nil {
		return domain.ApprovalRecord{}, fmt.Errorf("transition approval %d to %s: %w", id, to, err)
	}
	if !ok {
		// another reviewer won the race
		return domain.ApprovalRecord{}, fmt.Errorf("%w: record %d was decided concurrently", ErrInvalidState, id)
	}

	record.Status = to
	record.ReviewerNotes = notes
	record.ReviewedAt = &at
	return record, nil
}

// handoff claims the record before calling the sink, so a record reaches the
// sink at most once unless the failure is stored and the claim released.
func (w *Workflow) handoff(ctx context.Context, record domain.ApprovalRecord) Outcome {
	if w.sink == nil {
		return Outcome{Approved: true, Message: "approved; no publication target configured"}
	}

	claimed, err := w.approvals.ClaimPublication(ctx, record.ID, w.now())
	if err != nil {
		w.logger.Error("publication not claimed", "approval_id", record.ID, "error", err)
		return Outcome{Approved: true, Message: "approved but publication not started: " + err.Error()}
	}
	if !claimed {
		return Outcome{Approved: true, Message: "approved; publication already handed off"}
	}

	pub, err := w.sink.Publish(ctx, record)
	if err != nil {
		metrics.PublishTotal.WithLabelValues("error").Inc()
		w.logger.Error("publication failed", "approval_id", record.ID, "error", err)
		if errors.Is(err, domain.ErrUnauthorized) && w.onUnauthorized != nil {
			w.onUnauthorized(err)
		}
		if perr := w.approvals.SetApprovalPublication(ctx, record.ID, "", err.Error()); perr != nil {
			// the claim stays, so the record is not retried blindly
			w.logger.Error("publish error not stored", "approval_id", record.ID, "error", perr)
			return Outcome{Approved: true, Message: "approved but publication failed and needs manual check: " + err.Error()}
		}
		return Outcome{Approved: true, Message: "approved but publication failed: " + err.Error()}
	}

	metrics.PublishTotal.WithLabelValues("ok").Inc()
	if err := w.approvals.SetApprovalPublication(ctx, record.ID, pub.URL, ""); err != nil {
		w.logger.Error("publication url not stored on approval", "approval_id", record.ID, "error", err)
	}
	if pub.URL != "" {
		if err := w.published.SetPublicationURL(ctx, record.Fingerprint, pub.URL); err != nil {
			w.logger.Warn("publication url not stored on article", "fingerprint", record.Fingerprint, "error", err)
		}
	}
	w.logger.Info("article published", "approval_id", record.ID, "url", pub.URL)
	return Outcome{Approved: true, Published: true, PublicationURL: pub.URL, Message: "approved and published"}
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
