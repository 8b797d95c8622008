package store

import (
	"sort"
	"strings"
)

// AnalyticsKeywords are counted in topicFrequency whenever a question
// contains them.
var AnalyticsKeywords = []string{"password", "reset", "account", "login", "billing", "payment", "subscription", "cancel", "update", "problem"}

// maxQuestionRunes bounds the key used for a question in Analytics.Questions.
const maxQuestionRunes = 100

// Analytics is the usage summary. All counters only ever grow.
type Analytics struct {
	TotalInteractions int            `json:"totalInteractions"`
	Questions         map[string]int `json:"questions"`
	TopicFrequency    map[string]int `json:"topicFrequency"`
}

func newAnalytics() Analytics {
	return Analytics{
		Questions:      map[string]int{},
		TopicFrequency: map[string]int{},
	}
}

// FAQEntry is a question seen at least once, with the first answer given.
type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Count    int    `json:"count"`
}

func truncateQuestion(q string) string {
	r := []rune(q)
	if len(r) > maxQuestionRunes {
		return string(r[:maxQuestionRunes])
	}
	return q
}

func (s *Store) readAnalytics() Analytics {
	a := newAnalytics()
	s.read(KeyAnalytics, &a)
	if a.Questions == nil {
		a.Questions = map[string]int{}
	}
	if a.TopicFrequency == nil {
		a.TopicFrequency = map[string]int{}
	}
	return a
}

// RecordAnalytics counts one interaction. The answer is not stored.
func (s *Store) RecordAnalytics(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.readAnalytics()
	a.TotalInteractions++
	lower := strings.ToLower(question)
	for _, kw := range AnalyticsKeywords {
		if strings.Contains(lower, kw) {
			a.TopicFrequency[kw]++
		}
	}
	a.Questions[truncateQuestion(question)]++
	s.write(KeyAnalytics, a)
}

// ReadAnalytics returns the current analytics, empty when none were recorded.
func (s *Store) ReadAnalytics() Analytics {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readAnalytics()
}

func (s *Store) readFAQs() []FAQEntry {
	var faqs []FAQEntry
	s.read(KeyFAQs, &faqs)
	return faqs
}

// RecordFAQ upserts question by exact text. Repeats only bump the count.
func (s *Store) RecordFAQ(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	faqs := s.readFAQs()
	for i := range faqs {
		if faqs[i].Question == question {
			faqs[i].Count++
			s.write(KeyFAQs, faqs)
			return
		}
	}
	faqs = append(faqs, FAQEntry{Question: question, Answer: answer, Count: 1})
	s.write(KeyFAQs, faqs)
}

// ReadFAQs returns the FAQ table in insertion order.
func (s *Store) ReadFAQs() []FAQEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readFAQs()
}

// Count is one row of a frequency ranking.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Dashboard aggregates everything an operator looks at.
type Dashboard struct {
	TotalConversations int        `json:"totalConversations"`
	TotalInteractions  int        `json:"totalInteractions"`
	Users              int        `json:"users"`
	TopTopics          []Count    `json:"topTopics"`
	TopQuestions       []Count    `json:"topQuestions"`
	FAQs               []FAQEntry `json:"faqs"`
}

// Dashboard builds the summary with rankings cut to limit rows (0 = all).
func (s *Store) Dashboard(limit int) Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.readAnalytics()
	faqs := s.readFAQs()
	sort.SliceStable(faqs, func(i, j int) bool { return faqs[i].Count > faqs[j].Count })

	return Dashboard{
		TotalConversations: s.totalConversations(),
		TotalInteractions:  a.TotalInteractions,
		Users:              len(s.readUsers()),
		TopTopics:          ranking(a.TopicFrequency, limit),
		TopQuestions:       ranking(a.Questions, limit),
		FAQs:               cut(faqs, limit),
	}
}

// ranking orders counts descending, ties by key.
func ranking(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return cut(out, limit)
}

func cut[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
