package repomanager

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pockethour/image-sentinel/internal/logging"
	"github.com/pressly/goose/v3"
)

// gooseLogger adapts logging.Logger to goose.Logger.
type gooseLogger struct {
	logger logging.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

// SetLogger sends migration output to logger instead of the standard
// library log package. goose keeps a single global logger.
func SetLogger(logger logging.Logger) {
	goose.SetLogger(gooseLogger{logger: logger.With("module", "migrations")})
}
