package controlplane

import (
	"time"

	"voiceassist/core"
	"voiceassist/protocol"
)

// LogStream is the part of the client a WSLogWriter needs.
type LogStream interface {
	SendLog(sessionID string, entry protocol.LogEntry)
	SendLogEnd(sessionID string)
}

var _ LogStream = (*Client)(nil)

// WSLogWriter is a core.LogWriter that streams a session's log lines to the
// UI instead of a file.
type WSLogWriter struct {
	stream    LogStream
	sessionID string
}

func NewWSLogWriter(stream LogStream, sessionID string) *WSLogWriter {
	return &WSLogWriter{stream: stream, sessionID: sessionID}
}

func (w *WSLogWriter) Write(level, msg string, attrs map[string]interface{}) {
	w.stream.SendLog(w.sessionID, protocol.LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Attrs:     core.PlainAttrs(attrs),
	})
}

// Close ends the session's log stream on the UI side.
func (w *WSLogWriter) Close() {
	w.stream.SendLogEnd(w.sessionID)
}
