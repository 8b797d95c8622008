package store

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"voiceassist/core"

	"github.com/bytedance/sonic"
)

const (
	KeyUsers               = "users"
	KeyConversationHistory = "conversation_history"
	KeyAnalytics           = "analytics"
	KeyFAQs                = "faqs"
	KeyTotalConversations  = "total_conversations"
)

// Store is the read-modify-write layer over the persisted tables. Every
// operation is total: unreadable or malformed values are logged and treated
// as empty, and write failures are logged, never returned. The store is
// process-local; writers in other processes are not coordinated.
type Store struct {
	mu     sync.Mutex
	kv     KV
	logger *core.Logger
	now    func() time.Time
}

func New(kv KV, logger *core.Logger) *Store {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Store{
		kv:     kv,
		logger: logger.With(map[string]interface{}{"component": "store"}),
		now:    time.Now,
	}
}

// read decodes key into v. v is left untouched when the key is missing or
// its value cannot be decoded.
func (s *Store) read(key string, v interface{}) {
	data, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Error("store read failed", "key", key, "error", err)
		return
	}
	if !ok || len(strings.TrimSpace(string(data))) == 0 {
		return
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		s.logger.Warn("store value malformed, using default", "key", key, "error", err)
	}
}

func (s *Store) write(key string, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("store encode failed", "key", key, "error", err)
		return
	}
	if err := s.kv.Set(key, data); err != nil {
		s.logger.Error("store write failed", "key", key, "error", err)
	}
}

func (s *Store) readUsers() []core.UserRecord {
	var users []core.UserRecord
	s.read(KeyUsers, &users)
	return users
}

func (s *Store) readHistory() []core.ConversationRecord {
	var history []core.ConversationRecord
	s.read(KeyConversationHistory, &history)
	return history
}

func findUser(users []core.UserRecord, email string) int {
	for i, u := range users {
		if core.SameEmail(u.Email, email) {
			return i
		}
	}
	return -1
}

// GetUser looks a user up by case-insensitive email.
func (s *Store) GetUser(email string) (core.UserRecord, bool) {
	if strings.TrimSpace(email) == "" {
		return core.UserRecord{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.readUsers()
	if i := findUser(users, email); i >= 0 {
		return users[i], true
	}
	return core.UserRecord{}, false
}

// PutUser upserts user and mirrors its conversations into the history table
// by id. Conversations without an id are stored on the user only.
func (s *Store) PutUser(user core.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.readUsers()
	if i := findUser(users, user.Email); i >= 0 {
		users[i] = user
	} else {
		users = append(users, user)
	}
	s.write(KeyUsers, users)

	history := s.readHistory()
	for _, c := range user.Conversations {
		if c.ID == "" {
			continue
		}
		if c.Email == "" {
			c.Email = user.Email
		}
		history = upsertHistory(history, c)
	}
	s.write(KeyConversationHistory, history)
}

// AppendHistory adds record to the history table, replacing any record with
// the same id.
func (s *Store) AppendHistory(record core.ConversationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.write(KeyConversationHistory, upsertHistory(s.readHistory(), record))
}

// UpdateHistory replaces the messages of record id. A missing id is created.
func (s *Store) UpdateHistory(id string, messages []core.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.readHistory()
	for i := range history {
		if history[i].ID == id {
			history[i].Messages = core.CloneMessages(messages)
			s.write(KeyConversationHistory, history)
			return
		}
	}
	history = append(history, core.ConversationRecord{ID: id, Date: s.now().UTC(), Messages: core.CloneMessages(messages)})
	s.write(KeyConversationHistory, history)
}

func upsertHistory(history []core.ConversationRecord, record core.ConversationRecord) []core.ConversationRecord {
	record.Messages = core.CloneMessages(record.Messages)
	for i := range history {
		if history[i].ID == record.ID {
			if record.Date.IsZero() {
				record.Date = history[i].Date
			}
			history[i] = record
			return history
		}
	}
	return append(history, record)
}

// setCurrentConversation applies the continuation rule: the record replaces
// the user's conversation with the same id, or else the last conversation
// when that one holds only system messages; otherwise it is appended.
func setCurrentConversation(user *core.UserRecord, record core.ConversationRecord) {
	for i := range user.Conversations {
		if user.Conversations[i].ID != "" && user.Conversations[i].ID == record.ID {
			user.Conversations[i] = record
			return
		}
	}
	n := len(user.Conversations)
	if n > 0 && !user.Conversations[n-1].HasNonSystemMessage() {
		user.Conversations[n-1] = record
		return
	}
	user.Conversations = append(user.Conversations, record)
}

func (s *Store) saveConversation(name, email string, record core.ConversationRecord) {
	if record.Date.IsZero() {
		record.Date = s.now().UTC()
	}
	if record.Email == "" {
		record.Email = email
	}
	record.Messages = core.CloneMessages(record.Messages)

	users := s.readUsers()
	i := findUser(users, email)
	if i < 0 {
		users = append(users, core.UserRecord{Name: name, Email: email})
		i = len(users) - 1
	} else if name != "" {
		users[i].Name = name
	}
	setCurrentConversation(&users[i], record)
	s.write(KeyUsers, users)

	s.write(KeyConversationHistory, upsertHistory(s.readHistory(), record))
}

// SaveGreeting stores the opening transcript of a session for the user and
// in the history table. A user without a record is created.
func (s *Store) SaveGreeting(name, email string, record core.ConversationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveConversation(name, email, record)
}

// SaveTranscript writes the session transcript to the user record and the
// history table under one lock and bumps the conversation counter.
func (s *Store) SaveTranscript(name, email string, record core.ConversationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveConversation(name, email, record)
	s.write(KeyTotalConversations, s.totalConversations()+1)
}

func (s *Store) totalConversations() int {
	data, ok, err := s.kv.Get(KeyTotalConversations)
	if err != nil {
		s.logger.Error("store read failed", "key", KeyTotalConversations, "error", err)
		return 0
	}
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(string(data)), `"`))
	if err != nil {
		s.logger.Warn("store value malformed, using default", "key", KeyTotalConversations, "error", err)
		return 0
	}
	return n
}

// TotalConversations returns the number of transcript saves so far.
func (s *Store) TotalConversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalConversations()
}

// ReadAllUsers returns every user record.
func (s *Store) ReadAllUsers() []core.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readUsers()
}

// ReadHistory returns the history table in insertion order.
func (s *Store) ReadHistory() []core.ConversationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readHistory()
}
