package scanner

import (
	"context"
	"strings"
	"testing"

	"ContentRewriter/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) ([]domain.CandidateItem, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(stubScanner{name: "rss"})
	r.Register(stubScanner{name: "atom"})

	if _, err := r.Resolve("rss"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := r.Resolve("arxiv"); err == nil || !strings.Contains(err.Error(), "arxiv") {
		t.Fatalf("expected unregistered error, got %v", err)
	}
	if got := strings.Join(r.Names(), ","); got != "atom,rss" {
		t.Fatalf("Names = %s", got)
	}
}

func TestRequestLimit(t *testing.T) {
	t.Parallel()

	if got := (Request{}).Limit(); got != DefaultMaxItems {
		t.Fatalf("default limit = %d", got)
	}
	if got := (Request{MaxItems: 7}).Limit(); got != 7 {
		t.Fatalf("limit = %d", got)
	}
}
