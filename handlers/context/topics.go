package context

import (
	"strings"

	"voiceassist/core"
)

// matchTopic returns the phrase of the first rule matching content, or "".
func matchTopic(table []topicRule, content string) string {
	lower := strings.ToLower(content)
	for _, rule := range table {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.phrase
			}
		}
	}
	return ""
}

// ExtractTopics maps each of the last three user messages to a topic phrase
// and returns the phrases de-duplicated in first-seen order. A message that
// matches nothing contributes SentinelTopic. No user messages means no topics.
func ExtractTopics(messages []core.Message) []string {
	var topics []string
	for _, m := range core.LastUserMessages(messages, recentUserMessages) {
		topic := matchTopic(topicTable, m.Content)
		if topic == "" {
			topic = SentinelTopic
		}
		topics = appendUnique(topics, topic)
	}
	return topics
}

// greetingTopics is ExtractTopics with the greeting table consulted first.
func greetingTopics(messages []core.Message) []string {
	var topics []string
	for _, m := range core.LastUserMessages(messages, recentUserMessages) {
		topic := matchTopic(greetingTopicTable, m.Content)
		if topic == "" {
			topic = matchTopic(topicTable, m.Content)
		}
		if topic == "" {
			topic = SentinelTopic
		}
		topics = appendUnique(topics, topic)
	}
	return topics
}

// DropSentinel removes SentinelTopic when at least one specific topic is
// present. A list holding only the sentinel is returned unchanged.
func DropSentinel(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t != SentinelTopic {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return topics
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
