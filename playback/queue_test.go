package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voiceassist/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSynth struct {
	mu      sync.Mutex
	texts   []string
	at      []time.Time
	active  atomic.Int32
	overlap atomic.Bool
	block   chan struct{} // when set, Synthesize waits on it, ignoring ctx
	started chan string
}

func (s *recordingSynth) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	if s.active.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.active.Add(-1)

	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.at = append(s.at, time.Now())
	s.mu.Unlock()
	if s.started != nil {
		s.started <- text
	}
	if s.block != nil {
		<-s.block
	}
	return core.AudioClip{Data: []byte{0, 0, 1, 0}, SampleRate: 8000, Channels: 1, Format: core.PCM}, nil
}

func (s *recordingSynth) times() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.at...)
}

func (s *recordingSynth) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type recordingOutput struct {
	mu      sync.Mutex
	plays   int
	closed  bool
	active  atomic.Int32
	overlap atomic.Bool
}

func (o *recordingOutput) Play(ctx context.Context, clip core.AudioClip) error {
	if o.active.Add(1) > 1 {
		o.overlap.Store(true)
	}
	defer o.active.Add(-1)
	time.Sleep(2 * time.Millisecond)
	o.mu.Lock()
	o.plays++
	o.mu.Unlock()
	return nil
}

func (o *recordingOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

func (o *recordingOutput) state() (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.plays, o.closed
}

func newTestQueue(synth Synthesizer, out *recordingOutput) *Queue {
	return NewQueue(synth, func() (Output, error) { return out, nil }, Config{Debounce: time.Millisecond}, core.NewNopLogger())
}

func TestQueuePlaysInOrderWithoutOverlap(t *testing.T) {
	synth := &recordingSynth{block: make(chan struct{})}
	out := &recordingOutput{}
	q := newTestQueue(synth, out)

	var states []bool
	var statesMu sync.Mutex
	q.OnStateChange(func(speaking bool) {
		statesMu.Lock()
		states = append(states, speaking)
		statesMu.Unlock()
	})

	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")
	assert.True(t, q.Speaking())
	close(synth.block)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	assert.Equal(t, []string{"a", "b", "c"}, synth.calls())
	plays, _ := out.state()
	assert.Equal(t, 3, plays)
	assert.False(t, synth.overlap.Load())
	assert.False(t, out.overlap.Load())
	assert.False(t, q.Speaking())

	statesMu.Lock()
	defer statesMu.Unlock()
	assert.Equal(t, []bool{true, false}, states)
}

func TestQueueSanitizesBeforeSynthesis(t *testing.T) {
	synth := &recordingSynth{}
	q := newTestQueue(synth, &recordingOutput{})

	q.Enqueue(`*Sure!* See [the docs](http://x)`)
	q.Enqueue("***")
	require.NoError(t, q.Wait(context.Background()))
	assert.Equal(t, []string{"Sure! See the docs"}, synth.calls())
}

func TestQueueCancelAllDiscardsInFlight(t *testing.T) {
	synth := &recordingSynth{block: make(chan struct{}), started: make(chan string, 1)}
	out := &recordingOutput{}
	q := newTestQueue(synth, out)
	require.NoError(t, q.Warm())

	q.Enqueue("first")
	q.Enqueue("second")
	assert.Equal(t, "first", <-synth.started)

	q.CancelAll()
	assert.False(t, q.Speaking())
	assert.Zero(t, q.Pending())
	_, closed := out.state()
	assert.True(t, closed)

	close(synth.block)
	assert.Never(t, func() bool {
		plays, _ := out.state()
		return plays > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, []string{"first"}, synth.calls())

	q.CancelAll()
}

func TestQueueUsableAfterCancel(t *testing.T) {
	synth := &recordingSynth{}
	out := &recordingOutput{}
	q := newTestQueue(synth, out)

	q.CancelAll()
	q.Enqueue("again")
	require.NoError(t, q.Wait(context.Background()))
	plays, _ := out.state()
	assert.Equal(t, 1, plays)
}

func TestQueueDebouncesBetweenUtterances(t *testing.T) {
	const debounce = 50 * time.Millisecond
	synth := &recordingSynth{}
	out := &recordingOutput{}
	q := NewQueue(synth, func() (Output, error) { return out, nil }, Config{Debounce: debounce}, core.NewNopLogger())

	q.Enqueue("one")
	q.Enqueue("two")
	q.Enqueue("three")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	at := synth.times()
	require.Len(t, at, 3)
	for i := 1; i < len(at); i++ {
		assert.GreaterOrEqual(t, at[i].Sub(at[i-1]), debounce, "gap before utterance %d", i)
	}
}

func TestQueueConcurrentEnqueue(t *testing.T) {
	const n = 20
	synth := &recordingSynth{}
	out := &recordingOutput{}
	q := newTestQueue(synth, out)

	var wg sync.WaitGroup
	want := make([]string, n)
	for i := 0; i < n; i++ {
		want[i] = fmt.Sprintf("utterance %d", i)
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			q.Enqueue(text)
		}(want[i])
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		plays, _ := out.state()
		return plays == n && !q.Speaking()
	}, 5*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, want, synth.calls())
	assert.False(t, synth.overlap.Load())
	assert.False(t, out.overlap.Load())
}

func TestDiscardOutputRealtime(t *testing.T) {
	clip := core.AudioClip{Data: make([]byte, 1600), SampleRate: 8000, Channels: 1, Format: core.PCM}
	start := time.Now()
	require.NoError(t, DiscardOutput{Realtime: true}.Play(context.Background(), clip))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, DiscardOutput{Realtime: true}.Play(ctx, clip), context.Canceled)
}
