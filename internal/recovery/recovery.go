package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Record is a JSON object recovered from model output.
type Record map[string]any

// ErrNoObject is returned by a step that found nothing to parse.
var ErrNoObject = errors.New("no json object in text")

// Step is one rung of the recovery ladder.
type Step struct {
	Name  string
	Parse func(text string) (Record, error)
}

var (
	fenceExpr      = regexp.MustCompile("(?i)```json|```")
	nestedObjExpr  = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// Ladder returns the default ordered strategies. The first success wins.
func Ladder() []Step {
	return []Step{
		{Name: "direct", Parse: parseDirect},
		{Name: "strip_fences", Parse: parseWithoutFences},
		{Name: "extract_object", Parse: parseFirstObject},
		{Name: "collapse_whitespace", Parse: parseCollapsed},
	}
}

func parseDirect(text string) (Record, error) {
	return decodeObject(strings.TrimSpace(text))
}

func parseWithoutFences(text string) (Record, error) {
	return decodeObject(strings.TrimSpace(fenceExpr.ReplaceAllString(text, "")))
}

func parseFirstObject(text string) (Record, error) {
	match := nestedObjExpr.FindString(text)
	if match == "" {
		return nil, ErrNoObject
	}
	return decodeObject(match)
}

func parseCollapsed(text string) (Record, error) {
	return decodeObject(strings.TrimSpace(whitespaceExpr.ReplaceAllString(text, " ")))
}

func decodeObject(text string) (Record, error) {
	if text == "" {
		return nil, ErrNoObject
	}
	var rec Record
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoObject
	}
	return rec, nil
}

// DiagnosticWriter persists unrecoverable responses for postmortems.
type DiagnosticWriter interface {
	WriteArtifact(prompt, raw string) (string, error)
}

// Recovered carries a record and the step that produced it.
type Recovered struct {
	Record Record
	Step   string
}

// Parser runs the ladder and stores diagnostics on total failure.
type Parser struct {
	steps       []Step
	diagnostics DiagnosticWriter
	logger      *slog.Logger
}

// NewParser wires the default ladder. diagnostics may be nil.
func NewParser(diagnostics DiagnosticWriter, logger *slog.Logger) *Parser {
	return &Parser{steps: Ladder(), diagnostics: diagnostics, logger: logger}
}

// Recover tries each step in order. When all steps fail the raw text is
// written to a diagnostic artifact and ok is false; that is a business
// outcome, not an error.
func (p *Parser) Recover(raw, prompt string) (Recovered, bool) {
	var errs []error
	for _, step := range p.steps {
		rec, err := step.Parse(raw)
		if err == nil {
			p.debug("response recovered", "step", step.Name)
			return Recovered{Record: rec, Step: step.Name}, true
		}
		errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
	}

	attrs := []any{"error", errors.Join(errs...), "preview", preview(raw, 200)}
	if p.diagnostics != nil {
		path, err := p.diagnostics.WriteArtifact(prompt, raw)
		if err != nil {
			attrs = append(attrs, "artifact_error", err)
		} else {
			attrs = append(attrs, "artifact", path)
		}
	}
	if p.logger != nil {
		p.logger.Error("response not recoverable", attrs...)
	}
	return Recovered{}, false
}

func (p *Parser) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
