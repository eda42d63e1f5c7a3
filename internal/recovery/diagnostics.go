package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileDiagnostics writes unrecoverable responses under dir/<YYYY-MM-DD>/.
type FileDiagnostics struct {
	dir string
	now func() time.Time
}

var _ DiagnosticWriter = (*FileDiagnostics)(nil)

// NewFileDiagnostics uses dir as the artifact root; empty means "diagnostics".
func NewFileDiagnostics(dir string) *FileDiagnostics {
	if dir == "" {
		dir = "diagnostics"
	}
	return &FileDiagnostics{dir: dir, now: time.Now}
}

// WriteArtifact stores prompt and raw response and returns the file path.
func (f *FileDiagnostics) WriteArtifact(prompt, raw string) (string, error) {
	now := f.now()
	dayDir := filepath.Join(f.dir, now.Format(time.DateOnly))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir: %w", err)
	}

	name := fmt.Sprintf("rewrite-%d-%s.txt", now.Unix(), uuid.NewString()[:8])
	path := filepath.Join(dayDir, name)
	content := fmt.Sprintf("PROMPT:\n%s\n\nRESPONSE:\n%s\n", prompt, raw)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write diagnostic artifact: %w", err)
	}
	return path, nil
}
