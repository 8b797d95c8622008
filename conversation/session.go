package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voiceassist/core"
	sessionevents "voiceassist/events/session"
	ctxhandler "voiceassist/handlers/context"
	"voiceassist/metrics"

	"github.com/google/uuid"
)

// Transcriber turns a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ReplyGenerator answers the conversation so far.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, messages []core.Message) (string, error)
}

// Speaker is the playback queue as the session sees it.
type Speaker interface {
	Enqueue(text string)
	Warm() error
	Speaking() bool
	CancelAll()
}

// Store is the persistence the session writes through.
type Store interface {
	ReadHistory() []core.ConversationRecord
	SaveGreeting(name, email string, record core.ConversationRecord)
	SaveTranscript(name, email string, record core.ConversationRecord)
	RecordAnalytics(question, answer string)
	RecordFAQ(question, answer string)
}

// User identifies who the session talks to. Email is the identity key.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Dependencies are the collaborators of a Session.
type Dependencies struct {
	Store       Store
	Transcriber Transcriber
	Replier     ReplyGenerator
	Speaker     Speaker
	Sink        core.EventSink // Receives transcript, state and notice events. Optional.
}

// Session runs one user's conversation: the greeting, the turns and what
// gets persisted. Turns are single-flight.
type Session struct {
	id        string
	user      User
	startedAt time.Time
	config    Config
	deps      Dependencies
	greetings *ctxhandler.GreetingBuilder
	notifier  core.Notifier
	logger    *core.Logger

	processing atomic.Bool

	mu            sync.Mutex
	messages      []core.Message
	greetingTimer *time.Timer
	closed        bool
}

func NewSession(user User, deps Dependencies, config Config, logger *core.Logger) *Session {
	return NewSessionWithID(uuid.New().String(), user, deps, config, logger)
}

// NewSessionWithID is NewSession with a caller-chosen id, used when the UI
// link already named the session.
func NewSessionWithID(id string, user User, deps Dependencies, config Config, logger *core.Logger) *Session {
	if logger == nil {
		logger = core.GetLogger()
	}
	if deps.Sink == nil {
		deps.Sink = core.NopEventSink
	}
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.TrimSpace(user.Email)

	s := &Session{
		id:        id,
		user:      user,
		startedAt: time.Now().UTC(),
		config:    config,
		deps:      deps,
		greetings: ctxhandler.NewGreetingBuilder(config.Greeting),
		notifier:  sessionevents.Notifier(deps.Sink, id),
		logger:    logger.With(map[string]interface{}{"component": "session", "session_id": id}),
	}
	metrics.ActiveSessions.Inc()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) User() User { return s.user }

// Messages returns a copy of the transcript.
func (s *Session) Messages() []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CloneMessages(s.messages)
}

// Processing reports whether a turn is running.
func (s *Session) Processing() bool { return s.processing.Load() }

// Speaking reports whether the playback queue is busy.
func (s *Session) Speaking() bool {
	if s.deps.Speaker == nil {
		return false
	}
	return s.deps.Speaker.Speaking()
}

// SpeakingChanged publishes the new busy state. Wire it to the playback
// queue's state callback.
func (s *Session) SpeakingChanged(bool) { s.emitState() }

// Notify forwards n to the UI.
func (s *Session) Notify(n core.Notice) { s.notifier.Notify(n) }

// LoadConversation greets the user, recalling their previous conversation
// when there is one, and stores the greeting as this session's transcript.
// It reports false when the session cannot start, e.g. without an email.
func (s *Session) LoadConversation(ctx context.Context) bool {
	if s.user.Email == "" {
		s.logger.Warn("cannot load conversation without an email")
		s.notify(core.NoticeError, s.config.NotReadyNotice)
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	history := s.deps.Store.ReadHistory()
	previous, found := ctxhandler.FindPreviousConversation(history, s.user.Email, s.user.Name, s.id)
	greeting := s.greetings.Build(s.user.Name, previous.Messages)
	if found {
		s.logger.Info("recalled previous conversation", "previous_id", previous.ID, "recalled", greeting.Recalled)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.messages = []core.Message{greeting}
	snapshot := core.CloneMessages(s.messages)
	s.mu.Unlock()

	s.deps.Store.SaveGreeting(s.user.Name, s.user.Email, s.record(snapshot))
	s.emit(&sessionevents.TranscriptEvent{Messages: snapshot})
	metrics.SessionsStarted.Inc()

	s.scheduleGreeting(greeting.Content)
	return true
}

func (s *Session) scheduleGreeting(text string) {
	if s.deps.Speaker == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.greetingTimer != nil {
		s.greetingTimer.Stop()
	}
	s.greetingTimer = time.AfterFunc(s.config.GreetingDelay, func() { s.speak(text) })
}

// speak enqueues text unless the session is closed. The lock is held across
// Enqueue so Cleanup's CancelAll always follows any accepted utterance; the
// speaker's state callback must not take s.mu.
func (s *Session) speak(text string) {
	if s.deps.Speaker == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.deps.Speaker.Enqueue(text)
	}
}

// HandleAudioSubmission runs one turn: transcribe, reply, persist, speak.
// A submission while another turn runs fails with core.ErrTurnInProgress.
// Provider failures have already been surfaced as notices when the error is
// returned; nothing that was appended before the failure is rolled back.
func (s *Session) HandleAudioSubmission(ctx context.Context, audio []byte) (err error) {
	if s.isClosed() {
		return core.ErrSessionClosed
	}
	if !s.processing.CompareAndSwap(false, true) {
		metrics.Turns.WithLabelValues(metrics.TurnRejected).Inc()
		return core.ErrTurnInProgress
	}
	start := time.Now()
	s.emitState()
	defer func() {
		s.processing.Store(false)
		s.emitState()
		if err != nil {
			metrics.Turns.WithLabelValues(metrics.TurnFailed).Inc()
			s.logger.Warn("turn failed", "error", err)
			if !isReported(err) && ctx.Err() == nil {
				s.notify(core.NoticeError, s.config.TurnFailedNotice)
			}
		}
	}()

	question, err := s.deps.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		return err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		metrics.Turns.WithLabelValues(metrics.TurnEmpty).Inc()
		s.notify(core.NoticeInfo, s.config.EmptyTranscriptNotice)
		return nil
	}
	s.logger.Debug("transcribed", "text", question)

	s.appendMessage(core.NewUserMessage(question))

	if s.deps.Speaker != nil {
		if err := s.deps.Speaker.Warm(); err != nil {
			s.logger.Warn("audio output unavailable", "error", err)
		}
	}

	payload := core.FilterMessages(s.Messages(), func(m core.Message) bool { return !s.isGreeting(m) })
	reply, err := s.deps.Replier.GenerateReply(ctx, payload)
	if err != nil {
		return err
	}

	transcript := s.appendMessage(core.NewAssistantMessage(reply))

	stored := core.FilterMessages(transcript, func(m core.Message) bool {
		return !m.IsRecalledGreeting(s.user.Name)
	})
	s.deps.Store.SaveTranscript(s.user.Name, s.user.Email, s.record(stored))
	s.deps.Store.RecordAnalytics(question, reply)
	s.deps.Store.RecordFAQ(question, reply)

	s.speak(reply)

	metrics.Turns.WithLabelValues(metrics.TurnCompleted).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	return nil
}

// Cleanup stops speech, drops queued utterances and releases the audio
// output. Safe to call more than once.
func (s *Session) Cleanup() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.greetingTimer != nil {
		s.greetingTimer.Stop()
	}
	s.mu.Unlock()

	if s.deps.Speaker != nil {
		s.deps.Speaker.CancelAll()
	}
	metrics.ActiveSessions.Dec()
	s.emit(&sessionevents.EndedEvent{})
	s.logger.Info("session cleaned up")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// isGreeting reports whether m is a synthetic greeting rather than
// conversation content.
func (s *Session) isGreeting(m core.Message) bool {
	return m.Greeting || m.IsGreetingFor(s.user.Name)
}

func (s *Session) appendMessage(m core.Message) []core.Message {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	snapshot := core.CloneMessages(s.messages)
	s.mu.Unlock()

	s.emit(&sessionevents.TranscriptEvent{Messages: snapshot})
	return snapshot
}

func (s *Session) record(msgs []core.Message) core.ConversationRecord {
	return core.ConversationRecord{
		ID:       s.id,
		Date:     s.startedAt,
		Email:    s.user.Email,
		Messages: msgs,
	}
}

func (s *Session) notify(level core.NoticeLevel, msg string) {
	if msg == "" {
		return
	}
	s.notifier.Notify(core.Notice{Level: level, Message: msg})
}

func (s *Session) emit(event core.IEvent) {
	s.deps.Sink.Emit(core.NewEventPacket(event, s.id))
}

func (s *Session) emitState() {
	s.emit(&sessionevents.StateEvent{Processing: s.Processing(), Speaking: s.Speaking()})
}

// isReported reports whether a gateway handler already raised a notice for err.
func isReported(err error) bool {
	var (
		te *core.TranscriptionError
		re *core.ReplyError
	)
	return errors.As(err, &te) || errors.As(err, &re)
}
