package recovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestParser(t *testing.T) (*Parser, string) {
	t.Helper()
	dir := t.TempDir()
	diag := NewFileDiagnostics(dir)
	diag.now = func() time.Time { return time.Date(2025, 11, 24, 9, 30, 0, 0, time.UTC) }
	return NewParser(diag, nil), dir
}

func TestRecoverLadderSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantStep string
	}{
		{
			name:     "plain json",
			raw:      `  {"title":"x","body":"y"}  `,
			wantStep: "direct",
		},
		{
			name:     "code fence",
			raw:      "```json\n{\"title\":\"x\",\"body\":\"y\"}\n```",
			wantStep: "strip_fences",
		},
		{
			name:     "upper case fence",
			raw:      "```JSON\n{\"title\":\"x\"}\n```",
			wantStep: "strip_fences",
		},
		{
			name:     "surrounding commentary",
			raw:      `noise {"title":"x"} more noise`,
			wantStep: "extract_object",
		},
		{
			name:     "one level of nesting",
			raw:      `Here you go: {"title":"x","meta":{"a":1}} hope it helps`,
			wantStep: "extract_object",
		},
		{
			name:     "literal newline inside value",
			raw:      "{\"title\":\"line one\nline two\",\"body\":\"b\"}",
			wantStep: "collapse_whitespace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestParser(t)
			got, ok := p.Recover(tt.raw, "prompt")
			if !ok {
				t.Fatalf("Recover failed for %q", tt.raw)
			}
			if got.Step != tt.wantStep {
				t.Fatalf("step = %s, want %s", got.Step, tt.wantStep)
			}
			if got.Record["title"] == nil {
				t.Fatalf("title missing in %v", got.Record)
			}
		})
	}
}

func TestRecoverFirstSuccessWins(t *testing.T) {
	t.Parallel()

	p, _ := newTestParser(t)
	got, ok := p.Recover(`{"title":"outer","body":"text {with braces}"}`, "")
	if !ok || got.Step != "direct" {
		t.Fatalf("expected direct success, got %+v ok=%v", got, ok)
	}
	if got.Record["title"] != "outer" {
		t.Fatalf("unexpected title %v", got.Record["title"])
	}
}

func TestRecoverGarbageWritesArtifact(t *testing.T) {
	t.Parallel()

	p, dir := newTestParser(t)
	_, ok := p.Recover("I am sorry, I cannot help with that.", "the prompt")
	if ok {
		t.Fatal("garbage must not be recovered")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "2025-11-24", "rewrite-*.txt"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one artifact, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(data), "the prompt") || !strings.Contains(string(data), "cannot help") {
		t.Fatalf("artifact missing content: %s", data)
	}
}

func TestRecoverArrayIsNotARecord(t *testing.T) {
	t.Parallel()

	p := NewParser(nil, nil)
	if _, ok := p.Recover(`["title"]`, ""); ok {
		t.Fatal("a json array is not a record")
	}
}

func TestRecordResultAliases(t *testing.T) {
	t.Parallel()

	p := NewParser(nil, nil)
	got, ok := p.Recover(`{
		"titulo": "Título",
		"meta_description": "Resumo",
		"conteudo_completo": "<h2>A</h2><p>B</p>",
		"palavras_chave": ["a", " b ", ""],
		"categoria": "Tecnologia",
		"qualidade_score": 85,
		"originalidade_score": "90",
		"seo_score": 140
	}`, "")
	if !ok {
		t.Fatal("recover failed")
	}

	res := got.Record.Result()
	if res.Title != "Título" || res.MetaDescription != "Resumo" || res.Body != "<h2>A</h2><p>B</p>" {
		t.Fatalf("unexpected text fields: %+v", res)
	}
	if len(res.Keywords) != 2 || res.Keywords[1] != "b" {
		t.Fatalf("unexpected keywords: %v", res.Keywords)
	}
	if res.QualityScore != 85 || res.OriginalityScore != 90 || res.SEOScore != 100 {
		t.Fatalf("unexpected scores: %+v", res)
	}
	if !got.Record.HasQualityScore() {
		t.Fatal("quality score should be present")
	}
}

func TestRecordResultKeywordString(t *testing.T) {
	t.Parallel()

	res := Record{"keywords": "go, pipelines ,llm"}.Result()
	if len(res.Keywords) != 3 || res.Keywords[2] != "llm" {
		t.Fatalf("unexpected keywords: %v", res.Keywords)
	}
	if missing := res.MissingFields(); len(missing) != 3 {
		t.Fatalf("expected title, metaDescription, body missing, got %v", missing)
	}
}
