package core

import (
	"strings"
	"time"
)

// ConversationRecord is the stored transcript of one session.
type ConversationRecord struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Email    string    `json:"email,omitempty"` // Owner; empty on records written by older versions.
	Messages []Message `json:"messages"`
}

// HasUserMessage reports whether the user said anything in this conversation.
func (r ConversationRecord) HasUserMessage() bool {
	for _, m := range r.Messages {
		if m.Role == MessageRoleUser {
			return true
		}
	}
	return false
}

// HasNonSystemMessage reports whether the record holds anything besides
// system messages.
func (r ConversationRecord) HasNonSystemMessage() bool {
	for _, m := range r.Messages {
		if m.Role != MessageRoleSystem {
			return true
		}
	}
	return false
}

// OwnedBy reports whether the record was written for email.
func (r ConversationRecord) OwnedBy(email string) bool {
	return r.Email != "" && SameEmail(r.Email, email)
}

// UserRecord is a user's profile with a denormalized copy of their
// conversations. The last conversation is the current one.
type UserRecord struct {
	Name          string               `json:"name"`
	Email         string               `json:"email"`
	Conversations []ConversationRecord `json:"conversations"`
}

// SameEmail compares emails the way user identity is keyed: case-insensitive,
// ignoring surrounding whitespace.
func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeEmail returns the canonical form of an email used as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
