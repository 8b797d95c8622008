package core

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

var loggerInstance Logger = *NewDevelopmentLogger() // default to development logger

// SetLogger sets the global logger instance
func SetLogger(logger Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return &loggerInstance
}

// Level orders log severities. Lower values are more verbose.
type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelPanic
)

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
	LevelPanic: "PANIC",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// ParseLevel maps a case-insensitive level name ("debug", "warn", ...) to a Level.
func ParseLevel(name string) (Level, error) {
	for lvl, n := range levelNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return lvl, nil
		}
	}
	if strings.EqualFold(name, "warning") {
		return LevelWarn, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// minLevel is shared by every Logger derived from the same root through With.
var minLevel atomic.Int32

func init() {
	minLevel.Store(int32(LevelInfo))
}

// SetLevel sets the process-wide minimum level. Entries below it are dropped.
func SetLevel(l Level) {
	minLevel.Store(int32(l))
}

// HandlerFunc receives every log entry that passes the level filter.
type HandlerFunc func(level string, msg string, attrs map[string]interface{})

type Logger struct {
	handlerFunc HandlerFunc
	attrs       map[string]interface{}
}

func NewLogger(handler HandlerFunc) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// NewDevelopmentLogger creates a new development logger with pretty console output
func NewDevelopmentLogger() *Logger {
	handler := func(level string, msg string, attrs map[string]interface{}) {
		timestamp := time.Now().Format(time.RFC3339)
		logLine := fmt.Sprintf("%s [%s] %s%s\n", timestamp, level, msg, formatAttrs(attrs))
		switch level {
		case "FATAL":
			fmt.Fprint(os.Stderr, logLine)
			os.Exit(1)
		case "PANIC":
			fmt.Fprint(os.Stderr, logLine)
			panic(msg)
		case "ERROR", "WARN":
			fmt.Fprint(os.Stderr, logLine)
		default:
			fmt.Print(logLine)
		}
	}
	return NewLogger(handler)
}

// NewNopLogger discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return NewLogger(func(string, string, map[string]interface{}) {})
}

// formatAttrs renders attributes sorted by key so console lines are stable.
func formatAttrs(attrs map[string]interface{}) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(" |")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, attrs[k])
	}
	return b.String()
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if l.handlerFunc == nil || int32(level) < minLevel.Load() {
		return
	}
	if len(args) > 0 {
		// slog-style key-value pairs are merged into the attributes,
		// anything else is treated as printf arguments.
		if isKeyValuePairs(args) {
			attrs := make(map[string]interface{}, len(l.attrs)+len(args)/2)
			for k, v := range l.attrs {
				attrs[k] = v
			}
			for i := 0; i < len(args)-1; i += 2 {
				key, _ := args[i].(string)
				attrs[key] = args[i+1]
			}
			l.handlerFunc(level.String(), msg, attrs)
			return
		}
		msg = fmt.Sprintf(msg, args...)
	}
	l.handlerFunc(level.String(), msg, l.attrs)
}

// isKeyValuePairs returns true if args look like slog-style key-value pairs:
// even count and every key (even index) is a string.
func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Trace(msg string, args ...interface{}) { l.log(LevelTrace, msg, args...) }
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log(LevelFatal, msg, args...) }
func (l *Logger) Panic(msg string, args ...interface{}) { l.log(LevelPanic, msg, args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args...) }

// With returns a child logger carrying attrs in addition to the parent's.
func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combinedAttrs := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	for k, v := range attrs {
		combinedAttrs[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		attrs:       combinedAttrs,
	}
}

// WithError is shorthand for With(map[string]interface{}{"error": err}).
func (l *Logger) WithError(err error) *Logger {
	return l.With(map[string]interface{}{"error": err})
}

// Sync is a no-op for fmt-based logger
func (l *Logger) Sync() error {
	return nil
}
