package logger

import (
	"fmt"
	"log"
	"log/slog"
	"os"
)

// New returns a stdlib-backed logger with component prefix. When base is
// set, lines are routed through it at info level.
func New(component string, base *slog.Logger) *log.Logger {
	if base != nil {
		return slog.NewLogLogger(base.With("component", component).Handler(), slog.LevelInfo)
	}
	prefix := fmt.Sprintf("[%s] ", component)
	return log.New(os.Stdout, prefix, log.LstdFlags|log.Lshortfile)
}
