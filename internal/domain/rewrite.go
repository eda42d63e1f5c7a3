package domain

import (
	"errors"
	"strings"
)

// ErrUnauthorized marks credential rejections from the publication target.
var ErrUnauthorized = errors.New("publication target rejected credentials")

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// RewriteResult is the structured output of the generative service.
// QualityScore, OriginalityScore and SEOScore are reported by the model itself.
type RewriteResult struct {
	Title            string   `json:"title"`
	MetaDescription  string   `json:"metaDescription"`
	Body             string   `json:"body"`
	Keywords         []string `json:"keywords"`
	Category         string   `json:"category"`
	QualityScore     float64  `json:"qualityScore"`
	OriginalityScore float64  `json:"originalityScore"`
	SEOScore         float64  `json:"seoScore"`
}

// MissingFields lists required fields that are absent or blank.
func (r RewriteResult) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.MetaDescription) == "" {
		missing = append(missing, "metaDescription")
	}
	if strings.TrimSpace(r.Body) == "" {
		missing = append(missing, "body")
	}
	if len(r.Keywords) == 0 {
		missing = append(missing, "keywords")
	}
	return missing
}

// HeuristicScore is the locally computed quality estimate.
// It never replaces the model-provided QualityScore.
type HeuristicScore struct {
	Score       int
	WordCount   int
	UniqueWords int
}

// Completion is a raw reply from the generative service.
type Completion struct {
	Text   string
	Tokens int
}

// Publication describes a post created by the publication sink.
type Publication struct {
	URL string
}
