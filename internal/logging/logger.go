// Package logging builds the hclog loggers used by the partition tools.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// EnvLogLevel selects the level when no flag overrides it.
	EnvLogLevel = "PARTITION_LOG_LEVEL"
	// EnvJSONLog switches output to JSON when set to "1".
	EnvJSONLog = "PARTITION_JSON_LOG"

	defaultLevel = "warn"
)

// NewLogger creates an hclog logger writing UTC ISO timestamps to output
// (stderr when nil). An empty level falls back to Level().
func NewLogger(name, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}
	if level == "" {
		level = Level()
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: os.Getenv(EnvJSONLog) == "1",
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Level returns the level configured in the environment, "warn" by default.
func Level() string {
	level := strings.TrimSpace(os.Getenv(EnvLogLevel))
	if level == "" {
		return defaultLevel
	}
	return level
}
