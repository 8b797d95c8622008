package core

import "strings"

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one entry of a conversation transcript. Messages are values and
// are never mutated after creation; transcripts are rebuilt by appending.
type Message struct {
	Role     MessageRole `json:"role"`                  // Role of the message sender.
	Content  string      `json:"content"`               // Text of the message.
	Greeting bool        `json:"is_greeting,omitempty"` // Set on synthetic greetings built from history.
	Recalled bool        `json:"recalled,omitempty"`    // Set when the greeting refers to a previous conversation.
}

func NewUserMessage(text string) Message {
	return Message{Role: MessageRoleUser, Content: text}
}

func NewAssistantMessage(text string) Message {
	return Message{Role: MessageRoleAssistant, Content: text}
}

// NewGreetingMessage creates an assistant greeting. recalled marks the
// "I remember our previous conversation" variant.
func NewGreetingMessage(text string, recalled bool) Message {
	return Message{Role: MessageRoleAssistant, Content: text, Greeting: true, Recalled: recalled}
}

// GreetingPrefix is the canonical opening of every greeting addressed to name.
func GreetingPrefix(name string) string {
	return "Hello " + name + "!"
}

// DefaultGreeting is the welcome used when nothing is recalled.
func DefaultGreeting(name string) string {
	return GreetingPrefix(name) + " I'm your AI Voice Assistant. How can I help you today?"
}

func recalledGreetingPrefix(name string) string {
	return GreetingPrefix(name) + " I remember"
}

// IsGreetingFor reports whether m is an assistant greeting addressed to name.
// Untagged messages written by older versions count only when they are the
// exact default welcome or open with the recalled-greeting phrase, so a reply
// that happens to say "Hello Ann!" is still conversation content.
func (m Message) IsGreetingFor(name string) bool {
	if m.Role != MessageRoleAssistant {
		return false
	}
	if m.Greeting {
		return strings.HasPrefix(m.Content, GreetingPrefix(name))
	}
	return m.Content == DefaultGreeting(name) || strings.HasPrefix(m.Content, recalledGreetingPrefix(name))
}

// IsRecalledGreeting reports whether m is the "I remember..." greeting variant.
func (m Message) IsRecalledGreeting(name string) bool {
	if m.Role != MessageRoleAssistant {
		return false
	}
	if m.Greeting {
		return m.Recalled
	}
	return strings.HasPrefix(m.Content, recalledGreetingPrefix(name))
}

// CloneMessages returns a copy of msgs that shares no backing array.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// FilterMessages returns the messages for which keep returns true.
func FilterMessages(msgs []Message, keep func(Message) bool) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// LastUserMessages returns up to n most recent user messages, oldest first.
func LastUserMessages(msgs []Message, n int) []Message {
	users := FilterMessages(msgs, func(m Message) bool { return m.Role == MessageRoleUser })
	if len(users) > n {
		users = users[len(users)-n:]
	}
	return users
}
