package recovery

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"ContentRewriter/internal/domain"
)

// Field aliases: English keys first, then the keys emitted by the
// Portuguese prompt set.
var (
	titleKeys       = []string{"title", "titulo"}
	metaKeys        = []string{"metaDescription", "meta_description"}
	bodyKeys        = []string{"body", "content", "conteudo_completo"}
	keywordKeys     = []string{"keywords", "palavras_chave"}
	categoryKeys    = []string{"category", "categoria"}
	qualityKeys     = []string{"qualityScore", "quality_score", "qualidade_score"}
	originalityKeys = []string{"originalityScore", "originality_score", "originalidade_score"}
	seoKeys         = []string{"seoScore", "seo_score"}
)

// Result maps the record onto a RewriteResult. Absent fields stay empty so
// the quality gate can report them.
func (r Record) Result() domain.RewriteResult {
	return domain.RewriteResult{
		Title:            r.str(titleKeys),
		MetaDescription:  r.str(metaKeys),
		Body:             r.str(bodyKeys),
		Keywords:         r.list(keywordKeys),
		Category:         r.str(categoryKeys),
		QualityScore:     r.score(qualityKeys),
		OriginalityScore: r.score(originalityKeys),
		SEOScore:         r.score(seoKeys),
	}
}

// HasQualityScore reports whether the model supplied a quality score.
func (r Record) HasQualityScore() bool {
	_, ok := r.lookup(qualityKeys)
	return ok
}

func (r Record) lookup(keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r Record) str(keys []string) string {
	v, ok := r.lookup(keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func (r Record) list(keys []string) []string {
	v, ok := r.lookup(keys)
	if !ok {
		return nil
	}
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(t, ",")
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r Record) score(keys []string) float64 {
	v, ok := r.lookup(keys)
	if !ok {
		return 0
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		f, _ = t.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(t, "/100")), 64)
	}
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(100, f))
}
