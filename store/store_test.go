package store

import (
	"strings"
	"sync"
	"testing"

	"voiceassist/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, KV) {
	t.Helper()
	kv := NewMemoryKV()
	return New(kv, core.NewNopLogger()), kv
}

func greetingRecord(id string) core.ConversationRecord {
	return core.ConversationRecord{
		ID:       id,
		Messages: []core.Message{core.NewGreetingMessage("Hello Ann! I'm your AI Voice Assistant. How can I help you today?", false)},
	}
}

func TestFileKV(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	_, ok, err := kv.Get("users")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set("users", []byte(`[1]`)))
	require.NoError(t, kv.Set("users", []byte(`[1,2]`)))
	v, ok, err := kv.Get("users")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1,2]`, string(v))

	assert.Error(t, kv.Set("../escape", []byte("x")))
	_, _, err = kv.Get("a/b")
	assert.Error(t, err)
}

func TestStoreOverFileKV(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	s := New(kv, core.NewNopLogger())
	s.SaveGreeting("Ann", "ann@x.io", greetingRecord("s1"))

	kv2, err := NewFileKV(dir)
	require.NoError(t, err)
	reopened := New(kv2, core.NewNopLogger())
	u, ok := reopened.GetUser("ANN@X.IO")
	require.True(t, ok)
	assert.Equal(t, "Ann", u.Name)
	require.Len(t, reopened.ReadHistory(), 1)
}

func TestMalformedValuesReadAsEmpty(t *testing.T) {
	s, kv := newTestStore(t)
	require.NoError(t, kv.Set(KeyUsers, []byte("{not json")))
	require.NoError(t, kv.Set(KeyAnalytics, []byte("[]")))
	require.NoError(t, kv.Set(KeyTotalConversations, []byte("many")))

	assert.Empty(t, s.ReadAllUsers())
	a := s.ReadAnalytics()
	assert.Equal(t, 0, a.TotalInteractions)
	assert.NotNil(t, a.Questions)
	assert.Equal(t, 0, s.TotalConversations())

	// still writable afterwards
	s.RecordAnalytics("login", "ok")
	assert.Equal(t, 1, s.ReadAnalytics().TotalInteractions)
}

func TestSaveGreetingCreatesUserAndHistory(t *testing.T) {
	s, _ := newTestStore(t)
	s.SaveGreeting("Ann", "ann@x.io", greetingRecord("s1"))

	u, ok := s.GetUser("ann@x.io")
	require.True(t, ok)
	require.Len(t, u.Conversations, 1)
	assert.Equal(t, "s1", u.Conversations[0].ID)
	assert.False(t, u.Conversations[0].Date.IsZero())

	h := s.ReadHistory()
	require.Len(t, h, 1)
	assert.Equal(t, "ann@x.io", h[0].Email)
	assert.Equal(t, 0, s.TotalConversations())
}

func TestContinuationRule(t *testing.T) {
	s, _ := newTestStore(t)

	// system-only last conversation is overwritten
	s.PutUser(core.UserRecord{Name: "Ann", Email: "ann@x.io", Conversations: []core.ConversationRecord{
		{Messages: []core.Message{{Role: core.MessageRoleSystem, Content: "x"}}},
	}})
	s.SaveGreeting("Ann", "ann@x.io", greetingRecord("s1"))
	u, _ := s.GetUser("ann@x.io")
	require.Len(t, u.Conversations, 1)
	assert.Equal(t, "s1", u.Conversations[0].ID)

	// same session again is updated in place
	rec := greetingRecord("s1")
	rec.Messages = append(rec.Messages, core.NewUserMessage("hi"))
	s.SaveTranscript("Ann", "ann@x.io", rec)
	u, _ = s.GetUser("ann@x.io")
	require.Len(t, u.Conversations, 1)
	assert.Len(t, u.Conversations[0].Messages, 2)

	// a new session after a non-system conversation is appended
	s.SaveGreeting("Ann", "ann@x.io", greetingRecord("s2"))
	u, _ = s.GetUser("ann@x.io")
	require.Len(t, u.Conversations, 2)
	assert.Equal(t, "s2", u.Conversations[1].ID)

	h := s.ReadHistory()
	require.Len(t, h, 2)
	assert.Equal(t, []string{"s1", "s2"}, []string{h[0].ID, h[1].ID})
	assert.Equal(t, 1, s.TotalConversations())
}

func TestPutUserMirrorsHistory(t *testing.T) {
	s, _ := newTestStore(t)
	s.AppendHistory(core.ConversationRecord{ID: "a", Messages: []core.Message{core.NewUserMessage("old")}})
	s.PutUser(core.UserRecord{Name: "Bo", Email: "bo@x.io", Conversations: []core.ConversationRecord{
		{ID: "a", Messages: []core.Message{core.NewUserMessage("new")}},
		{ID: "b"},
	}})

	h := s.ReadHistory()
	require.Len(t, h, 2)
	assert.Equal(t, "new", h[0].Messages[0].Content)
	assert.Equal(t, "bo@x.io", h[1].Email)

	s.PutUser(core.UserRecord{Name: "Bobby", Email: "BO@x.io"})
	require.Len(t, s.ReadAllUsers(), 1)
	u, _ := s.GetUser("bo@x.io")
	assert.Equal(t, "Bobby", u.Name)
}

func TestUpdateHistory(t *testing.T) {
	s, _ := newTestStore(t)
	s.UpdateHistory("x", []core.Message{core.NewUserMessage("one")})
	s.UpdateHistory("x", []core.Message{core.NewUserMessage("one"), core.NewAssistantMessage("two")})
	h := s.ReadHistory()
	require.Len(t, h, 1)
	assert.Len(t, h[0].Messages, 2)
}

func TestGetUserEmptyEmail(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok := s.GetUser("  ")
	assert.False(t, ok)
}

func TestRecordAnalytics(t *testing.T) {
	s, _ := newTestStore(t)
	s.RecordAnalytics("I need to reset my password", "a")
	s.RecordAnalytics("I need to reset my password", "b")
	s.RecordAnalytics(strings.Repeat("é", 150), "c")

	a := s.ReadAnalytics()
	assert.Equal(t, 3, a.TotalInteractions)
	assert.Equal(t, 2, a.TopicFrequency["password"])
	assert.Equal(t, 2, a.TopicFrequency["reset"])
	assert.Equal(t, 2, a.Questions["I need to reset my password"])
	assert.Equal(t, 1, a.Questions[strings.Repeat("é", 100)])
}

func TestRecordFAQKeepsFirstAnswer(t *testing.T) {
	s, _ := newTestStore(t)
	s.RecordFAQ("q", "first")
	s.RecordFAQ("q", "second")
	s.RecordFAQ("Q", "other")

	faqs := s.ReadFAQs()
	require.Len(t, faqs, 2)
	assert.Equal(t, FAQEntry{Question: "q", Answer: "first", Count: 2}, faqs[0])
	assert.Equal(t, 1, faqs[1].Count)
}

func TestDashboard(t *testing.T) {
	s, _ := newTestStore(t)
	s.SaveTranscript("Ann", "ann@x.io", greetingRecord("s1"))
	s.RecordAnalytics("billing problem", "x")
	s.RecordAnalytics("billing", "x")
	s.RecordFAQ("billing", "x")
	s.RecordFAQ("billing problem", "x")
	s.RecordFAQ("billing problem", "x")

	d := s.Dashboard(1)
	assert.Equal(t, 1, d.TotalConversations)
	assert.Equal(t, 2, d.TotalInteractions)
	assert.Equal(t, 1, d.Users)
	assert.Equal(t, []Count{{Key: "billing", Count: 2}}, d.TopTopics)
	require.Len(t, d.FAQs, 1)
	assert.Equal(t, "billing problem", d.FAQs[0].Question)
	assert.Len(t, d.TopQuestions, 1)
}

func TestConcurrentWritesAreNotLost(t *testing.T) {
	s, _ := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordAnalytics("account", "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.ReadAnalytics().TotalInteractions)
}
