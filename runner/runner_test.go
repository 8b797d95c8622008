package runner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"voiceassist/conversation"
	"voiceassist/core"
	sessionevents "voiceassist/events/session"
	"voiceassist/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id      string
	ready   bool
	turnErr error
	sink    core.EventSink
	// gate, when set, holds the factory until it is closed.
	gate chan struct{}

	mu       sync.Mutex
	turns    int
	cleanups int
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) LoadConversation(context.Context) bool {
	f.sink.Emit(core.NewEventPacket(&sessionevents.TranscriptEvent{Messages: []core.Message{core.NewAssistantMessage("Hello")}}, f.id))
	return f.ready
}

func (f *fakeSession) HandleAudioSubmission(context.Context, []byte) error {
	f.mu.Lock()
	f.turns++
	f.mu.Unlock()
	return f.turnErr
}

func (f *fakeSession) Cleanup() {
	f.mu.Lock()
	f.cleanups++
	f.mu.Unlock()
}

type fakeLink struct {
	mu      sync.Mutex
	events  []string
	started []protocol.SessionStartedPayload
	acks    []protocol.AckPayload
	status  []string
}

func (l *fakeLink) SendEvent(_, eventID, _ string, data json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, eventID)
}

func (l *fakeLink) SendSessionStarted(p protocol.SessionStartedPayload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, p)
}

func (l *fakeLink) SendAck(acked protocol.MessageType, sessionID string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := protocol.AckPayload{AckedType: acked, SessionID: sessionID, OK: err == nil}
	if err != nil {
		p.Error = err.Error()
	}
	l.acks = append(l.acks, p)
}

func (l *fakeLink) SendStatus(status string, _ []protocol.SessionInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = append(l.status, status)
}

func (l *fakeLink) startedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.started)
}

func (l *fakeLink) ackCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.acks)
}

func newTestRunner(sessions map[string]*fakeSession, link *fakeLink) (*Runner, *int) {
	released := 0
	factory := func(id string, user conversation.User, sink core.EventSink) (Session, func(), error) {
		s, ok := sessions[id]
		if !ok {
			return nil, nil, errors.New("no such fake")
		}
		if s.gate != nil {
			<-s.gate
		}
		s.sink = sink
		return s, func() { released++ }, nil
	}
	return NewRunner(context.Background(), factory, link, core.NewNopLogger()), &released
}

func TestRunnerSessionLifecycle(t *testing.T) {
	s1 := &fakeSession{id: "s1", ready: true}
	link := &fakeLink{}
	r, released := newTestRunner(map[string]*fakeSession{"s1": s1}, link)

	r.StartSession(protocol.StartSessionPayload{SessionID: "s1", Name: "Ann", Email: "ann@x.com"})
	r.wg.Wait()
	require.Len(t, link.started, 1)
	assert.True(t, link.started[0].Ready)
	assert.Equal(t, []string{"session.transcript"}, link.events)
	assert.Equal(t, 1, r.Count())

	r.SubmitAudio(protocol.AudioSubmissionPayload{SessionID: "s1", Audio: []byte{1}})
	require.Eventually(t, func() bool { return link.ackCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, link.acks[0].OK)

	r.EndSession("s1")
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 1, s1.cleanups)
	assert.Equal(t, 1, *released)
	assert.Equal(t, []string{"running", "idle"}, link.status)
}

func TestRunnerNotReady(t *testing.T) {
	s1 := &fakeSession{id: "s1", ready: false}
	link := &fakeLink{}
	r, released := newTestRunner(map[string]*fakeSession{"s1": s1}, link)

	r.StartSession(protocol.StartSessionPayload{SessionID: "s1", Name: "Ann"})
	r.wg.Wait()
	require.Len(t, link.started, 1)
	assert.False(t, link.started[0].Ready)
	assert.Equal(t, core.ErrNotReady.Error(), link.started[0].Error)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 1, s1.cleanups)
	assert.Equal(t, 1, *released)
}

func TestRunnerUnknownSession(t *testing.T) {
	link := &fakeLink{}
	r, _ := newTestRunner(nil, link)

	r.SubmitAudio(protocol.AudioSubmissionPayload{SessionID: "nope"})
	r.EndSession("nope")
	require.Len(t, link.acks, 2)
	assert.False(t, link.acks[0].OK)
	assert.False(t, link.acks[1].OK)
}

func TestRunnerTurnErrorIsAcked(t *testing.T) {
	s1 := &fakeSession{id: "s1", ready: true, turnErr: core.ErrTurnInProgress}
	link := &fakeLink{}
	r, _ := newTestRunner(map[string]*fakeSession{"s1": s1}, link)
	r.StartSession(protocol.StartSessionPayload{SessionID: "s1", Name: "Ann", Email: "ann@x.com"})
	r.wg.Wait()

	r.SubmitAudio(protocol.AudioSubmissionPayload{SessionID: "s1"})
	require.Eventually(t, func() bool { return link.ackCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, core.ErrTurnInProgress.Error(), link.acks[0].Error)

	r.Stop()
	assert.Equal(t, 1, s1.cleanups)
}

func TestRunnerStartDoesNotBlockCommands(t *testing.T) {
	slow := &fakeSession{id: "slow", ready: true, gate: make(chan struct{})}
	link := &fakeLink{}
	r, _ := newTestRunner(map[string]*fakeSession{"slow": slow}, link)
	defer r.Stop()

	returned := make(chan struct{})
	go func() {
		r.StartSession(protocol.StartSessionPayload{SessionID: "slow", Name: "Ann", Email: "ann@x.com"})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("StartSession blocked on the session build")
	}

	r.SubmitAudio(protocol.AudioSubmissionPayload{SessionID: "other"})
	assert.Equal(t, 1, link.ackCount())
	assert.Equal(t, 0, link.startedCount())

	r.StartSession(protocol.StartSessionPayload{SessionID: "slow", Name: "Ann", Email: "ann@x.com"})
	require.Equal(t, 1, link.startedCount())
	assert.Equal(t, errSessionExists.Error(), link.started[0].Error)

	close(slow.gate)
	require.Eventually(t, func() bool { return r.Count() == 1 }, time.Second, time.Millisecond)
}

func TestRunnerEndWhileStarting(t *testing.T) {
	s1 := &fakeSession{id: "s1", ready: true, gate: make(chan struct{})}
	link := &fakeLink{}
	r, released := newTestRunner(map[string]*fakeSession{"s1": s1}, link)

	r.StartSession(protocol.StartSessionPayload{SessionID: "s1", Name: "Ann", Email: "ann@x.com"})
	r.EndSession("s1")
	require.Len(t, link.acks, 1)
	assert.True(t, link.acks[0].OK)

	close(s1.gate)
	r.wg.Wait()

	require.Len(t, link.started, 1)
	assert.False(t, link.started[0].Ready)
	assert.Equal(t, errSessionEnded.Error(), link.started[0].Error)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 1, s1.cleanups)
	assert.Equal(t, 1, *released)
}
