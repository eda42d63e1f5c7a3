package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentRewriter/internal/dedup"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/infrastructure/storage/memory"
)

type fakeSink struct {
	mu       sync.Mutex
	calls    int
	err      error
	url      string
	emptyURL bool
}

func (s *fakeSink) Publish(_ context.Context, record domain.ApprovalRecord) (domain.Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return domain.Publication{}, s.err
	}
	if s.emptyURL {
		return domain.Publication{}, nil
	}
	url := s.url
	if url == "" {
		url = "https://blog.example.com/" + record.Fingerprint
	}
	return domain.Publication{URL: url}, nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newWorkflow(t *testing.T, sink *fakeSink) (*Workflow, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	deps := WorkflowDeps{Approvals: store, Published: store}
	if sink != nil {
		deps.Sink = sink
	}
	w, err := NewWorkflow(deps)
	require.NoError(t, err)
	return w, store
}

func submission(url string) Submission {
	return Submission{
		Item: domain.CandidateItem{URL: url, Title: "Original", Source: "Feed", Fingerprint: dedup.Fingerprint(url)},
		Result: domain.RewriteResult{
			Title:           "Rewritten",
			MetaDescription: "Meta",
			Body:            "<p>Rewritten body</p>",
			Keywords:        []string{"go"},
			QualityScore:    85,
		},
		HeuristicScore: 40,
		VariantID:      "seo",
	}
}

func TestSubmitCreatesPendingAndRegistersArticle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w, store := newWorkflow(t, &fakeSink{})
	sub := submission("https://example.com/a")

	record, err := w.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, record.Status)
	assert.NotZero(t, record.ID)

	pending, err := w.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "seo", pending[0].VariantID)
	assert.Equal(t, 40, pending[0].HeuristicScore)

	article, ok := store.Published(sub.Item.Fingerprint)
	require.True(t, ok, "article should be registered for deduplication")
	assert.Equal(t, dedup.ContentHash(sub.Result.Body), article.ContentHash)
	assert.Equal(t, sub.Result.Body, article.BodySnippet)
}

func TestApprovePublishesOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &fakeSink{url: "https://blog.example.com/post-1"}
	w, store := newWorkflow(t, sink)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	outcome, err := w.Approve(ctx, record.ID, "looks good")
	require.NoError(t, err)
	assert.True(t, outcome.Approved)
	assert.True(t, outcome.Published)
	assert.Equal(t, "https://blog.example.com/post-1", outcome.PublicationURL)

	_, err = w.Approve(ctx, record.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, sink.count(), "sink must be called exactly once")

	stored, err := w.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, stored.Status)
	assert.Equal(t, "looks good", stored.ReviewerNotes)
	assert.NotNil(t, stored.ReviewedAt)
	assert.Equal(t, "https://blog.example.com/post-1", stored.PublicationURL)

	article, _ := store.Published(record.Fingerprint)
	assert.Equal(t, "https://blog.example.com/post-1", article.PublicationURL)
}

func TestRejectIsTerminal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &fakeSink{}
	w, _ := newWorkflow(t, sink)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	require.NoError(t, w.Reject(ctx, record.ID, "off topic"))

	_, err = w.Approve(ctx, record.ID, "")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, w.Reject(ctx, record.ID, ""), ErrInvalidState)
	assert.Zero(t, sink.count())

	stored, _ := w.Get(ctx, record.ID)
	assert.Equal(t, domain.ApprovalRejected, stored.Status)
	assert.Equal(t, "off topic", stored.ReviewerNotes)
}

func TestUnknownRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w, _ := newWorkflow(t, &fakeSink{})

	_, err := w.Approve(ctx, 42, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, w.Reject(ctx, 42, ""), ErrNotFound)
	_, err = w.RetryPublication(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublishFailureIsPersistedAndRetryable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &fakeSink{err: errors.New("502 bad gateway")}
	w, _ := newWorkflow(t, sink)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	outcome, err := w.Approve(ctx, record.ID, "")
	require.NoError(t, err, "a handoff failure must not fail the approval")
	assert.True(t, outcome.Approved)
	assert.False(t, outcome.Published)
	assert.Contains(t, outcome.Message, "502")

	stored, _ := w.Get(ctx, record.ID)
	assert.Equal(t, domain.ApprovalApproved, stored.Status)
	assert.Contains(t, stored.PublishError, "502")

	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()

	outcome, err = w.RetryPublication(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Published)

	stored, _ = w.Get(ctx, record.ID)
	assert.Empty(t, stored.PublishError)
	assert.True(t, stored.Published())

	_, err = w.RetryPublication(ctx, record.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 2, sink.count())
}

func TestRetryPublicationRequiresApproval(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &fakeSink{}
	w, _ := newWorkflow(t, sink)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	_, err = w.RetryPublication(ctx, record.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Zero(t, sink.count())
}

func TestUnauthorizedTriggersCallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	var got error
	w, err := NewWorkflow(WorkflowDeps{
		Approvals:      store,
		Published:      store,
		Sink:           &fakeSink{err: domain.ErrUnauthorized},
		OnUnauthorized: func(err error) { got = err },
	})
	require.NoError(t, err)

	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)
	_, err = w.Approve(ctx, record.ID, "")
	require.NoError(t, err)
	assert.ErrorIs(t, got, domain.ErrUnauthorized)
}

func TestApproveWithoutSink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w, _ := newWorkflow(t, nil)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	outcome, err := w.Approve(ctx, record.ID, "")
	require.NoError(t, err)
	assert.True(t, outcome.Approved)
	assert.False(t, outcome.Published)
}

func TestConcurrentApprovalsHandOffOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &fakeSink{}
	w, _ := newWorkflow(t, sink)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Approve(ctx, record.ID, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, sink.count())
}

func TestStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w, _ := newWorkflow(t, &fakeSink{})
	a, _ := w.Submit(ctx, submission("https://example.com/a"))
	b, _ := w.Submit(ctx, submission("https://example.com/b"))
	_, _ = w.Submit(ctx, submission("https://example.com/c"))

	_, err := w.Approve(ctx, a.ID, "")
	require.NoError(t, err)
	require.NoError(t, w.Reject(ctx, b.ID, ""))

	stats, err := w.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStats{Pending: 1, Approved: 1, Rejected: 1}, stats)
	assert.Equal(t, 3, stats.Total())
}

func TestPublicationWithoutURLIsNotRepublished(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &fakeSink{emptyURL: true}
	w, _ := newWorkflow(t, sink)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	outcome, err := w.Approve(ctx, record.ID, "")
	require.NoError(t, err)
	assert.True(t, outcome.Published)
	assert.Empty(t, outcome.PublicationURL)

	stored, err := w.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, stored.Published())
	assert.NotNil(t, stored.PublishedAt)

	_, err = w.RetryPublication(ctx, record.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, sink.count(), "sink must see the record once")
}

// flakyApprovals fails selected publication writes.
type flakyApprovals struct {
	*memory.Store
	claimErr error
	setErr   error
}

func (f *flakyApprovals) ClaimPublication(ctx context.Context, id int64, at time.Time) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	return f.Store.ClaimPublication(ctx, id, at)
}

func (f *flakyApprovals) SetApprovalPublication(ctx context.Context, id int64, url, publishErr string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Store.SetApprovalPublication(ctx, id, url, publishErr)
}

func newFlakyWorkflow(t *testing.T, sink *fakeSink, repo *flakyApprovals) *Workflow {
	t.Helper()
	w, err := NewWorkflow(WorkflowDeps{Approvals: repo, Published: repo.Store, Sink: sink})
	require.NoError(t, err)
	return w
}

func TestUnstoredPublicationResultIsNotRetried(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &fakeSink{}
	repo := &flakyApprovals{Store: memory.NewStore()}
	w := newFlakyWorkflow(t, sink, repo)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	repo.setErr = errors.New("connection reset")
	outcome, err := w.Approve(ctx, record.ID, "")
	require.NoError(t, err)
	assert.True(t, outcome.Published)

	repo.setErr = nil
	_, err = w.RetryPublication(ctx, record.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, sink.count())
}

func TestUnstoredPublishFailureKeepsClaim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &fakeSink{err: errors.New("timeout")}
	repo := &flakyApprovals{Store: memory.NewStore()}
	w := newFlakyWorkflow(t, sink, repo)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	repo.setErr = errors.New("connection reset")
	outcome, err := w.Approve(ctx, record.ID, "")
	require.NoError(t, err)
	assert.False(t, outcome.Published)
	assert.Contains(t, outcome.Message, "manual check")

	repo.setErr = nil
	_, err = w.RetryPublication(ctx, record.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "the sink may have published, so no blind retry")
	assert.Equal(t, 1, sink.count())
}

func TestClaimFailureSkipsSinkAndStaysRetryable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sink := &fakeSink{}
	repo := &flakyApprovals{Store: memory.NewStore(), claimErr: errors.New("connection reset")}
	w := newFlakyWorkflow(t, sink, repo)
	record, err := w.Submit(ctx, submission("https://example.com/a"))
	require.NoError(t, err)

	outcome, err := w.Approve(ctx, record.ID, "")
	require.NoError(t, err)
	assert.False(t, outcome.Published)
	assert.Zero(t, sink.count())

	repo.claimErr = nil
	outcome, err = w.RetryPublication(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Published)
	assert.Equal(t, 1, sink.count())
}
