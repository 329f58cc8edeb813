package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
)

var availableLoggingLevels = []string{"panic", "fatal", "error", "warn", "info", "debug", "trace"}

func parseLevel(level string) (logrus.Level, error) {
	level = strings.ToLower(level)
	for _, l := range availableLoggingLevels {
		if l == level {
			return logrus.ParseLevel(level)
		}
	}
	return 0, fmt.Errorf("unknown log level %q, want one of: %s",
		level, strings.Join(availableLoggingLevels, ", "))
}

// NewLogger creates a stderr logger at the given level.
func NewLogger(level string) (*logrus.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return &logrus.Logger{
		Out: os.Stderr,
		Formatter: &CallerFormatter{
			TextFormatter: logrus.TextFormatter{FullTimestamp: true},
		},
		Hooks:        make(logrus.LevelHooks),
		Level:        lvl,
		ReportCaller: lvl >= logrus.DebugLevel,
	}, nil
}

// CallerFormatter prefixes each message with the file and line that logged it.
type CallerFormatter struct {
	logrus.TextFormatter
}

// Format renders a single log entry.
func (f *CallerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if entry.HasCaller() {
		entry.Message = fmt.Sprintf("[%-15s:%03d] %s", path.Base(entry.Caller.File), entry.Caller.Line, entry.Message)
	}
	return f.TextFormatter.Format(entry)
}
