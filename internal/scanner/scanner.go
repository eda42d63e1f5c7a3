package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ContentRewriter/internal/domain"
)

// DefaultMaxItems caps how many entries are taken from each feed.
const DefaultMaxItems = 3

// Feed describes a concrete feed endpoint provided by config.
type Feed struct {
	Name string
	URL  string
}

// Request carries all parameters required to execute a scan.
type Request struct {
	SiteName    string
	Feeds       []Feed
	MaxItems    int
	MinInterval time.Duration
	Options     map[string]string
}

// Limit returns the per-feed item cap.
func (r Request) Limit() int {
	if r.MaxItems <= 0 {
		return DefaultMaxItems
	}
	return r.MaxItems
}

// Scanner captures a single strategy implementation (RSS, Atom, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.CandidateItem, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered strategies in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
