package context

import (
	"fmt"
	"strings"

	"voiceassist/core"
)

// GreetingConfig tunes the greeting builder.
type GreetingConfig struct {
	KeepSentinel bool `json:"keep_sentinel"` // Keep "various topics" next to specific topics in recalled greetings.
}

func DefaultGreetingConfig() GreetingConfig {
	return GreetingConfig{}
}

// GreetingBuilder composes the opening line of a session from the user's
// previous conversation, if any.
type GreetingBuilder struct {
	config GreetingConfig
}

func NewGreetingBuilder(config GreetingConfig) *GreetingBuilder {
	return &GreetingBuilder{config: config}
}

// FindPreviousConversation scans history newest to oldest for the latest
// conversation of this user in which the user actually spoke. A record
// belongs to the user when it carries their email or holds a greeting
// addressed to name. skipID excludes the current session's own record.
func FindPreviousConversation(history []core.ConversationRecord, email, name, skipID string) (core.ConversationRecord, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		if rec.ID == skipID || !rec.HasUserMessage() {
			continue
		}
		if rec.OwnedBy(email) || (rec.Email == "" && hasGreetingFor(rec.Messages, name)) {
			return rec, true
		}
	}
	return core.ConversationRecord{}, false
}

func hasGreetingFor(msgs []core.Message, name string) bool {
	for _, m := range msgs {
		if m.IsGreetingFor(name) {
			return true
		}
	}
	return false
}

// Build returns the greeting message for name. previous is the user's earlier
// conversation; nil (or a conversation with no user messages) gives the
// default welcome.
func (b *GreetingBuilder) Build(name string, previous []core.Message) core.Message {
	if len(core.LastUserMessages(previous, recentUserMessages)) == 0 {
		return core.NewGreetingMessage(core.DefaultGreeting(name), false)
	}

	topics := greetingTopics(previous)
	if !b.config.KeepSentinel {
		topics = DropSentinel(topics)
	}
	text := fmt.Sprintf(recalledGreetingFormat, core.GreetingPrefix(name), strings.Join(topics, " and "))
	return core.NewGreetingMessage(text, true)
}
