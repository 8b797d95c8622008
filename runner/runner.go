package runner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"voiceassist/conversation"
	"voiceassist/core"
	"voiceassist/protocol"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

var (
	errUnknownSession = errors.New("unknown session")
	errSessionExists  = errors.New("session already exists")
	errSessionEnded   = errors.New("session ended while starting")
)

// Session is what the runner drives; *conversation.Session implements it.
type Session interface {
	ID() string
	LoadConversation(ctx context.Context) bool
	HandleAudioSubmission(ctx context.Context, audio []byte) error
	Cleanup()
}

// SessionFactory builds a session wired to sink. release is called after
// the session was cleaned up and frees whatever the factory opened for it.
type SessionFactory func(id string, user conversation.User, sink core.EventSink) (s Session, release func(), err error)

// Link is the UI side of the runner; *controlplane.Client implements it.
type Link interface {
	SendEvent(sessionID, eventID, uid string, data json.RawMessage)
	SendSessionStarted(p protocol.SessionStartedPayload)
	SendAck(acked protocol.MessageType, sessionID string, err error)
	SendStatus(status string, sessions []protocol.SessionInfo)
}

type entry struct {
	session   Session
	release   func()
	email     string
	startedAt time.Time
}

// Runner owns the sessions opened by the UI and routes UI commands to them.
type Runner struct {
	factory SessionFactory
	link    Link
	logger  *core.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*entry
	// starting holds sessions still being built; true marks one the UI
	// ended before it was ready.
	starting map[string]bool
}

func NewRunner(ctx context.Context, factory SessionFactory, link Link, logger *core.Logger) *Runner {
	if logger == nil {
		logger = core.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		factory:  factory,
		link:     link,
		logger:   logger.With(map[string]interface{}{"component": "runner"}),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*entry),
		starting: make(map[string]bool),
	}
}

// Count returns the number of open sessions.
func (r *Runner) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartSession opens a session and loads its greeting in the background,
// since building it may fetch settings over HTTP. The UI gets a
// session_started answer either way.
func (r *Runner) StartSession(p protocol.StartSessionPayload) {
	id := p.SessionID
	if id == "" {
		id = uuid.New().String()
	}

	r.mu.Lock()
	_, open := r.sessions[id]
	_, pending := r.starting[id]
	if !open && !pending {
		r.starting[id] = false
	}
	r.mu.Unlock()
	if open || pending {
		r.link.SendSessionStarted(protocol.SessionStartedPayload{SessionID: id, Error: errSessionExists.Error()})
		return
	}

	user := conversation.User{Name: p.Name, Email: p.Email}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.start(id, user)
	}()
}

func (r *Runner) start(id string, user conversation.User) {
	s, release, err := r.factory(id, user, r.sink())
	if err != nil {
		r.forgetStarting(id)
		r.logger.Error("failed to build session", "session_id", id, "error", err)
		r.link.SendSessionStarted(protocol.SessionStartedPayload{SessionID: id, Error: err.Error()})
		return
	}
	e := &entry{session: s, release: release, email: user.Email, startedAt: time.Now().UTC()}

	if !s.LoadConversation(r.ctx) {
		r.forgetStarting(id)
		r.closeEntry(e)
		r.link.SendSessionStarted(protocol.SessionStartedPayload{SessionID: id, Error: core.ErrNotReady.Error()})
		return
	}

	r.mu.Lock()
	abandoned := r.starting[id] || r.ctx.Err() != nil
	delete(r.starting, id)
	if !abandoned {
		r.sessions[id] = e
	}
	r.mu.Unlock()
	if abandoned {
		r.closeEntry(e)
		r.link.SendSessionStarted(protocol.SessionStartedPayload{SessionID: id, Error: errSessionEnded.Error()})
		return
	}

	r.logger.Info("session started", "session_id", id)
	r.link.SendSessionStarted(protocol.SessionStartedPayload{SessionID: id, Ready: true})
	r.publishStatus()
}

func (r *Runner) forgetStarting(id string) {
	r.mu.Lock()
	delete(r.starting, id)
	r.mu.Unlock()
}

// SubmitAudio runs a turn in the background and acks when it finished.
func (r *Runner) SubmitAudio(p protocol.AudioSubmissionPayload) {
	e := r.lookup(p.SessionID)
	if e == nil {
		r.link.SendAck(protocol.MsgAudioSubmission, p.SessionID, errUnknownSession)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := e.session.HandleAudioSubmission(r.ctx, p.Audio)
		if err != nil {
			r.logger.Warn("turn failed", "session_id", p.SessionID, "error", err)
		}
		r.link.SendAck(protocol.MsgAudioSubmission, p.SessionID, err)
	}()
}

// EndSession cleans up and forgets a session. A session still starting is
// discarded once its build finishes.
func (r *Runner) EndSession(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	_, pending := r.starting[id]
	if pending {
		r.starting[id] = true
	}
	r.mu.Unlock()
	if pending {
		r.logger.Info("session ended while starting", "session_id", id)
		r.link.SendAck(protocol.MsgEndSession, id, nil)
		return
	}
	if !ok {
		r.link.SendAck(protocol.MsgEndSession, id, errUnknownSession)
		return
	}

	r.closeEntry(e)
	r.logger.Info("session ended", "session_id", id)
	r.link.SendAck(protocol.MsgEndSession, id, nil)
	r.publishStatus()
}

// Stop ends every session and waits for running turns and starts.
func (r *Runner) Stop() {
	r.cancel()

	r.mu.Lock()
	entries := make([]*entry, 0, len(r.sessions))
	for id, e := range r.sessions {
		entries = append(entries, e)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		r.closeEntry(e)
	}
	r.wg.Wait()
}

func (r *Runner) closeEntry(e *entry) {
	e.session.Cleanup()
	if e.release != nil {
		e.release()
	}
}

func (r *Runner) lookup(id string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *Runner) publishStatus() {
	r.mu.Lock()
	infos := make([]protocol.SessionInfo, 0, len(r.sessions))
	for id, e := range r.sessions {
		infos = append(infos, protocol.SessionInfo{
			SessionID: id,
			Email:     e.email,
			StartedAt: e.startedAt.Format(time.RFC3339),
			Status:    "active",
		})
	}
	r.mu.Unlock()

	status := "idle"
	if len(infos) > 0 {
		status = "running"
	}
	r.link.SendStatus(status, infos)
}

// sink forwards session events to the UI as JSON.
func (r *Runner) sink() core.EventSink {
	return core.EventSinkFunc(func(packet *core.EventPacket) {
		data, err := sonic.Marshal(packet.Event)
		if err != nil {
			r.logger.Warn("failed to encode event", "event", packet.Event.GetId(), "error", err)
			return
		}
		r.link.SendEvent(packet.SessionID, packet.Event.GetId(), packet.Uid, data)
	})
}
