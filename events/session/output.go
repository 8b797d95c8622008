package session

import "voiceassist/core"

// NoticeEvent carries a user-visible notice.
type NoticeEvent struct {
	Notice core.Notice `json:"notice"`
}

func (e *NoticeEvent) GetId() string {
	return "session.notice"
}

// TranscriptEvent carries the session transcript after it changed.
type TranscriptEvent struct {
	Messages []core.Message `json:"messages"`
}

func (e *TranscriptEvent) GetId() string {
	return "session.transcript"
}

// StateEvent reports the busy indicators the UI shows.
type StateEvent struct {
	Processing bool `json:"processing"`
	Speaking   bool `json:"speaking"`
}

func (e *StateEvent) GetId() string {
	return "session.state"
}

// EndedEvent is emitted once after cleanup.
type EndedEvent struct{}

func (e *EndedEvent) GetId() string {
	return "session.ended"
}

// Notifier returns a core.Notifier that emits notices into sink for sessionID.
func Notifier(sink core.EventSink, sessionID string) core.Notifier {
	if sink == nil {
		return core.NopNotifier
	}
	return core.NotifierFunc(func(n core.Notice) {
		sink.Emit(core.NewEventPacket(&NoticeEvent{Notice: n}, sessionID))
	})
}
