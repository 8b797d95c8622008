package stt

import (
	"context"
	"errors"
	"testing"

	"voiceassist/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSTT struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeSTT) Name() string { return f.name }

func (f *fakeSTT) Transcribe(context.Context, []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type noticeRecorder struct{ notices []core.Notice }

func (r *noticeRecorder) Notify(n core.Notice) { r.notices = append(r.notices, n) }

func TestTranscribeTrims(t *testing.T) {
	h := NewSTTHandler(&fakeSTT{name: "a", text: "  hello  "}, DefaultConfig(), core.NewNopLogger())
	text, err := h.Transcribe(context.Background(), []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestTranscribeSkipsEmptyAudio(t *testing.T) {
	svc := &fakeSTT{name: "a", text: "x"}
	h := NewSTTHandler(svc, DefaultConfig(), core.NewNopLogger())
	text, err := h.Transcribe(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Zero(t, svc.calls)
}

func TestTranscribeFallsBack(t *testing.T) {
	primary := &fakeSTT{name: "a", err: errors.New("down")}
	backup := &fakeSTT{name: "b", text: "ok"}
	h := NewSTTHandler(primary, DefaultConfig(), core.NewNopLogger()).WithBackupService(backup)

	text, err := h.Transcribe(context.Background(), []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestTranscribeAllFail(t *testing.T) {
	rec := &noticeRecorder{}
	h := NewSTTHandler(&fakeSTT{name: "a", err: errors.New("down")}, DefaultConfig(), core.NewNopLogger()).WithNotifier(rec)

	_, err := h.Transcribe(context.Background(), []byte("audio"))
	var te *core.TranscriptionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "a", te.Provider)
	require.Len(t, rec.notices, 1)
	assert.Equal(t, core.NoticeError, rec.notices[0].Level)
}
