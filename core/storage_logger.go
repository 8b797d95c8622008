package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// SessionMetadata heads every conversation log file.
type SessionMetadata struct {
	SessionID string `json:"session_id"`
	UserEmail string `json:"user_email,omitempty"`
	StartedAt string `json:"started_at"`
}

// LogEntry is one line of a conversation log after the metadata line.
type LogEntry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// LogWriter receives a session's log lines in addition to the console.
type LogWriter interface {
	Write(level, msg string, attrs map[string]interface{})
	Close()
}

// SessionLogWriter appends JSON lines to <dir>/<session>.jsonl. An empty
// <session>.active file marks the log as still being written.
type SessionLogWriter struct {
	mu     sync.Mutex
	file   *os.File
	marker string
}

// NewSessionLogWriter opens the session's log, creating dir if needed, and
// writes the metadata line.
func NewSessionLogWriter(dir, sessionID, userEmail string) (*SessionLogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session log: %w", err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("session log: %w", err)
	}

	w := &SessionLogWriter{file: f, marker: filepath.Join(dir, sessionID+".active")}
	err = w.writeLine(SessionMetadata{
		SessionID: sessionID,
		UserEmail: userEmail,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("session log %s: metadata: %w", path, err)
	}
	if err := os.WriteFile(w.marker, nil, 0o644); err != nil {
		w.marker = ""
	}
	return w, nil
}

func (w *SessionLogWriter) writeLine(v interface{}) error {
	line, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return os.ErrClosed
	}
	_, err = w.file.Write(append(line, '\n'))
	return err
}

func (w *SessionLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	w.writeLine(LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     PlainAttrs(attrs),
	})
}

// Close closes the file and drops the .active marker. Later calls do nothing.
func (w *SessionLogWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return
	}
	w.file.Close()
	w.file = nil
	if w.marker != "" {
		os.Remove(w.marker)
	}
}

// PlainAttrs swaps error values for their text, since most error types
// encode as an empty object. Empty input yields nil.
func PlainAttrs(attrs map[string]interface{}) map[string]interface{} {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if err, ok := v.(error); ok && err != nil {
			out[k] = err.Error()
			continue
		}
		out[k] = v
	}
	return out
}

// NewSessionLogger returns a logger that writes to base and to every writer.
// Loggers derived with With keep the fan-out.
func NewSessionLogger(base *Logger, writers ...LogWriter) *Logger {
	return &Logger{
		attrs: base.attrs,
		handlerFunc: func(level, msg string, attrs map[string]interface{}) {
			if base.handlerFunc != nil {
				base.handlerFunc(level, msg, attrs)
			}
			for _, w := range writers {
				w.Write(level, msg, attrs)
			}
		},
	}
}
