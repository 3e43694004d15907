package obs

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	loggerOnce sync.Once
	logger     zerolog.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *zerolog.Logger {
	loggerOnce.Do(func() {
		logger = NewLogger(os.Stdout, os.Getenv("LOG_LEVEL"))
	})
	return &logger
}

// NewLogger builds a JSON logger writing to w at the named level.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "hostelhub").Logger()
}

// SetLogger replaces the shared logger (tests, CLI verbosity flags).
func SetLogger(l zerolog.Logger) {
	loggerOnce.Do(func() {})
	logger = l
}

// LogRequest emits one structured line describing a finished HTTP request.
func LogRequest(fields map[string]any) {
	Logger().Info().Fields(fields).Msg("request_complete")
}
