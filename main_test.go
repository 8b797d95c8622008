package main

import (
	"bytes"
	"testing"

	"voiceassist/config"
	"voiceassist/core"
	"voiceassist/store"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, dir string) {
	kv, err := store.NewFileKV(dir)
	require.NoError(t, err)
	st := store.New(kv, core.NewNopLogger())
	st.RecordAnalytics("reset my password", "Use the login page.")
	st.RecordFAQ("reset my password", "Use the login page.")
	st.SaveTranscript("Ann", "ann@x.com", core.ConversationRecord{
		ID:       "c1",
		Email:    "ann@x.com",
		Messages: []core.Message{core.NewUserMessage("reset my password")},
	})
}

func TestDashboardCommandJSON(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir)
	cfg = &config.Config{DataDir: dir}

	var out bytes.Buffer
	cmd := NewDashboardCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())

	var d store.Dashboard
	require.NoError(t, sonic.Unmarshal(out.Bytes(), &d))
	assert.Equal(t, 1, d.TotalConversations)
	assert.Equal(t, 1, d.TotalInteractions)
	assert.Equal(t, 1, d.Users)
	require.Len(t, d.FAQs, 1)
	assert.Equal(t, "reset my password", d.FAQs[0].Question)
}

func TestPrintDashboard(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printDashboard(&out, store.Dashboard{
		TotalConversations: 2,
		TopTopics:          []store.Count{{Key: "password", Count: 3}},
	}))
	assert.Contains(t, out.String(), "Conversations  2")
	assert.Contains(t, out.String(), "password")
}
