package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ContentRewriter/internal/approval"
	"ContentRewriter/internal/dedup"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/infrastructure/storage/memory"
	"ContentRewriter/internal/prompt"
	"ContentRewriter/internal/quality"
	"ContentRewriter/internal/ratelimit"
	"ContentRewriter/internal/recovery"
	"ContentRewriter/internal/retry"
	"ContentRewriter/internal/usage"
)

const goodResponse = `{"title":"Rewritten","metaDescription":"Meta","body":"<h2>Intro</h2><p>fresh words here</p>","keywords":["go","pipelines"],"category":"tech","qualityScore":85,"originalityScore":70,"seoScore":60}`

var fastPolicy = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MinDelay: time.Millisecond, MaxDelay: time.Millisecond}

type fakeGenerator struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	calls    int
	prompts  []string
	onCall   func(n int)
	fallback string
}

func (g *fakeGenerator) Generate(_ context.Context, p string) (domain.Completion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, p)
	if g.onCall != nil {
		g.onCall(g.calls)
	}
	if i < len(g.errs) && g.errs[i] != nil {
		return domain.Completion{}, g.errs[i]
	}
	text := g.fallback
	if i < len(g.replies) {
		text = g.replies[i]
	}
	return domain.Completion{Text: text, Tokens: 100}, nil
}

func (g *fakeGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeSource struct {
	items []domain.CandidateItem
	err   error
}

func (s *fakeSource) FetchCandidates(context.Context) ([]domain.CandidateItem, error) {
	return append([]domain.CandidateItem(nil), s.items...), s.err
}

type fakeExtractor struct {
	content string
	reject  map[string]*domain.Rejection
	panicOn string
}

func (e *fakeExtractor) Extract(_ context.Context, item domain.CandidateItem) (domain.CandidateItem, error) {
	if item.URL == e.panicOn {
		panic("extractor exploded")
	}
	if r, ok := e.reject[item.URL]; ok {
		return domain.CandidateItem{}, r
	}
	return item.WithContent(e.content), nil
}

type fakeSink struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeSink) Publish(_ context.Context, record domain.ApprovalRecord) (domain.Publication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return domain.Publication{URL: "https://blog.example.com/" + record.Fingerprint[:8]}, nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, level, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, level+": "+message)
	return nil
}

func longContent() string {
	return strings.Repeat("article words for the rewrite ", 10)
}

func candidate(url string) domain.CandidateItem {
	return domain.CandidateItem{URL: url, Title: "Title " + url, Source: "Feed", DiscoveredAt: time.Now()}
}

type harness struct {
	store       *memory.Store
	generator   *fakeGenerator
	sink        *fakeSink
	notifier    *fakeNotifier
	workflow    *approval.Workflow
	rewriter    *Rewriter
	selector    *prompt.Selector
	diagnostics string
}

func newHarness(t *testing.T, gen *fakeGenerator) *harness {
	t.Helper()

	h := &harness{
		store:       memory.NewStore(),
		generator:   gen,
		sink:        &fakeSink{},
		notifier:    &fakeNotifier{},
		diagnostics: t.TempDir(),
	}

	gate, err := quality.NewGate(10)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	h.selector, err = prompt.NewSelector(prompt.DefaultVariants(), h.store, nil)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	h.rewriter, err = NewRewriter(RewriterDeps{
		Generator: gen,
		Limiter:   ratelimit.New(h.store, nil),
		Selector:  h.selector,
		Parser:    recovery.NewParser(recovery.NewFileDiagnostics(h.diagnostics), nil),
		Gate:      gate,
		Usage:     usage.New(h.store, nil),
		Policy:    fastPolicy,
	})
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}
	h.workflow, err = approval.NewWorkflow(approval.WorkflowDeps{
		Approvals: h.store,
		Published: h.store,
		Sink:      h.sink,
	})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	return h
}

func (h *harness) pipeline(t *testing.T, source *fakeSource, extractor *fakeExtractor, mutate func(*PipelineDeps)) *Pipeline {
	t.Helper()
	deps := PipelineDeps{
		Source:           source,
		Dedup:            dedup.New(h.store, nil),
		Rewriter:         h.rewriter,
		Approvals:        h.workflow,
		Notifier:         h.notifier,
		FeedPolicy:       fastPolicy,
		ExtractionPolicy: fastPolicy,
	}
	if extractor != nil {
		deps.Extractor = extractor
	}
	if mutate != nil {
		mutate(&deps)
	}
	p, err := NewPipeline(deps)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}
