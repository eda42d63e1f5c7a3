package parser

import (
	"context"
	"errors"
	"testing"

	"ContentRewriter/internal/config"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/scanner"
)

type stubScanner struct {
	items []domain.CandidateItem
	err   error
	got   []scanner.Request
}

func (s *stubScanner) Name() string { return "stub" }

func (s *stubScanner) Scan(_ context.Context, req scanner.Request) ([]domain.CandidateItem, error) {
	s.got = append(s.got, req)
	return append([]domain.CandidateItem(nil), s.items...), s.err
}

func TestStrategySourceAggregates(t *testing.T) {
	t.Parallel()

	stub := &stubScanner{items: []domain.CandidateItem{{URL: "https://a"}, {URL: "https://b", Source: "Feed"}}}
	reg := scanner.NewRegistry()
	reg.Register(stub)

	src := NewStrategySource(reg, []config.SourceConfig{
		{Name: "one", Scanner: "stub", MaxItems: 2, Feeds: []config.FeedConfig{{Name: "f", URL: "https://f"}}},
		{Name: "two", Scanner: "stub"},
	}, nil)

	items, err := src.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	if items[0].Source != "one" || items[1].Source != "Feed" || items[2].Source != "two" {
		t.Fatalf("source defaults broken: %+v", items)
	}
	if stub.got[0].MaxItems != 2 || len(stub.got[0].Feeds) != 1 || stub.got[0].Feeds[0].URL != "https://f" {
		t.Fatalf("request mapping broken: %+v", stub.got[0])
	}
}

func TestStrategySourceErrors(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(&stubScanner{err: errors.New("boom")})

	if _, err := NewStrategySource(reg, []config.SourceConfig{{Name: "x", Scanner: "missing"}}, nil).FetchCandidates(context.Background()); err == nil {
		t.Fatal("unknown scanner must fail")
	}
	if _, err := NewStrategySource(reg, []config.SourceConfig{{Name: "x", Scanner: "stub"}}, nil).FetchCandidates(context.Background()); err == nil {
		t.Fatal("scanner error must propagate")
	}
	if _, err := NewStrategySource(nil, nil, nil).FetchCandidates(context.Background()); err == nil {
		t.Fatal("nil registry must fail")
	}
}

type namedStub struct {
	stubScanner
	name string
}

func (s *namedStub) Name() string { return s.name }

func TestStrategySourceSkipsFailingSource(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(&namedStub{name: "broken", stubScanner: stubScanner{err: errors.New("down")}})
	reg.Register(&namedStub{name: "ok", stubScanner: stubScanner{items: []domain.CandidateItem{{URL: "https://a"}}}})

	items, err := NewStrategySource(reg, []config.SourceConfig{
		{Name: "first", Scanner: "broken"},
		{Name: "second", Scanner: "ok"},
	}, nil).FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("a healthy source should be enough: %v", err)
	}
	if len(items) != 1 || items[0].Source != "second" {
		t.Fatalf("unexpected items: %+v", items)
	}
}
