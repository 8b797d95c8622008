package factories

import (
	"context"
	"fmt"
	"time"

	"voiceassist/conversation"
	"voiceassist/core"
	sessionevents "voiceassist/events/session"
	"voiceassist/playback"
	"voiceassist/runner"
	"voiceassist/store"
)

const sessionConfigTimeout = 15 * time.Second

// SessionBuilder assembles a fully wired conversation session per UI
// request. Its Build method is a runner.SessionFactory.
type SessionBuilder struct {
	Settings SettingsConfig
	Keys     APIKeys
	Store    *store.Store

	// OpenOutput opens the audio device for a session's playback queue.
	// Nil discards audio.
	OpenOutput playback.OutputFactory

	// LogDir, when set, receives one JSONL conversation log per session.
	LogDir string
	// LogWriters adds per-session log destinations such as the control plane.
	LogWriters func(sessionID string) []core.LogWriter

	Logger *core.Logger
}

var _ runner.SessionFactory = (*SessionBuilder)(nil).Build

// Build wires STT, LLM and TTS handlers, a playback queue and a session for
// user. release closes the session's log writers.
func (b *SessionBuilder) Build(id string, user conversation.User, sink core.EventSink) (runner.Session, func(), error) {
	base := b.Logger
	if base == nil {
		base = core.GetLogger()
	}

	ctx, cancel := context.WithTimeout(context.Background(), sessionConfigTimeout)
	cfg, err := b.Settings.SessionConfig(ctx)
	cancel()
	if err != nil {
		return nil, nil, err
	}
	cfg.InjectAPIKeys(b.Keys)

	var writers []core.LogWriter
	if b.LogDir != "" {
		w, err := core.NewSessionLogWriter(b.LogDir, id, user.Email)
		if err != nil {
			base.Warn("failed to open conversation log", "session_id", id, "error", err)
		} else {
			writers = append(writers, w)
		}
	}
	if b.LogWriters != nil {
		writers = append(writers, b.LogWriters(id)...)
	}
	release := func() {
		for _, w := range writers {
			w.Close()
		}
	}

	logger := base
	if len(writers) > 0 {
		logger = core.NewSessionLogger(base, writers...)
	}
	logger = logger.With(map[string]interface{}{"session_id": id})

	notifier := sessionevents.Notifier(sink, id)
	handlers, err := cfg.BuildHandlers(logger, notifier)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("session %s: %w", id, err)
	}

	queue := playback.NewQueue(handlers.TTS, b.OpenOutput, cfg.Playback, logger).WithNotifier(notifier)
	session := conversation.NewSessionWithID(id, user, conversation.Dependencies{
		Store:       b.Store,
		Transcriber: handlers.STT,
		Replier:     handlers.LLM,
		Speaker:     queue,
		Sink:        sink,
	}, cfg.Conversation, logger)
	queue.OnStateChange(session.SpeakingChanged)

	return session, release, nil
}

// OutputFactory returns the playback output selected by the audio settings.
func (a AudioConfig) OutputFactory(logger *core.Logger) playback.OutputFactory {
	if a.Player == "none" {
		return func() (playback.Output, error) {
			return playback.DiscardOutput{Realtime: true}, nil
		}
	}
	return func() (playback.Output, error) {
		out, err := playback.NewCommandOutput(a.Player, logger)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}
