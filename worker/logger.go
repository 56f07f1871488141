package worker

import (
	"fmt"
	"sort"
	"strings"

	"branchhooks/internal"

	"github.com/ThreeDotsLabs/watermill"
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
}

func defaultLogger() Logger {
	return internal.NewLogger("worker")
}

// watermillLogger sends the log lines of Watermill subscribers to a Logger.
// Debug and trace lines are dropped.
type watermillLogger struct {
	logger Logger
	fields watermill.LogFields
}

func newWatermillLogger(l Logger) watermill.LoggerAdapter {
	if l == nil {
		l = defaultLogger()
	}
	return watermillLogger{logger: l}
}

func (l watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Printf("watermill error: %s: %v%s", msg, err, formatFields(l.fields.Add(fields)))
}

func (l watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.logger.Printf("watermill: %s%s", msg, formatFields(l.fields.Add(fields)))
}

func (l watermillLogger) Debug(msg string, fields watermill.LogFields) {}

func (l watermillLogger) Trace(msg string, fields watermill.LogFields) {}

func (l watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{logger: l.logger, fields: l.fields.Add(fields)}
}

func formatFields(fields watermill.LogFields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, fields[key])
	}
	return b.String()
}
