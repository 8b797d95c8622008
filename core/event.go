package core

import "github.com/google/uuid"

type IEvent interface {
	GetId() string // Returns the unique identifier of the event type.
}

// EventPacket wraps an event with a per-emission identifier so consumers
// (the UI link, session log) can correlate and de-duplicate deliveries.
type EventPacket struct {
	Event     IEvent
	Uid       string // Unique identifier for tracking the event packet.
	SessionID string // Session that emitted the event.
}

func NewEventPacket(event IEvent, sessionID string) *EventPacket {
	return &EventPacket{
		Event:     event,
		Uid:       uuid.New().String(),
		SessionID: sessionID,
	}
}

// EventSink receives packets emitted by a session. Implementations must not
// block for long; sessions call Emit from their own goroutines.
type EventSink interface {
	Emit(packet *EventPacket)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(packet *EventPacket)

func (f EventSinkFunc) Emit(packet *EventPacket) { f(packet) }

// NopEventSink drops everything.
var NopEventSink EventSink = EventSinkFunc(func(*EventPacket) {})
