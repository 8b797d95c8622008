package playback

import (
	"context"
	"strings"
	"sync"
	"time"

	"voiceassist/core"
	"voiceassist/metrics"
	"voiceassist/utils/audio"
	"voiceassist/utils/text"
)

// Synthesizer is the part of the speech gateway the queue needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (core.AudioClip, error)
}

type Config struct {
	Debounce     time.Duration `json:"debounce"`      // Pause between consecutive utterances.
	FailedNotice string        `json:"failed_notice"` // Raised when synthesized audio cannot be decoded or played.
}

func DefaultConfig() Config {
	return Config{
		Debounce:     300 * time.Millisecond,
		FailedNotice: "Failed to play speech. Please try again.",
	}
}

// Queue speaks utterances one at a time in the order they were enqueued.
// A single worker goroutine sanitizes, synthesizes, decodes and plays the
// head item; it exits when the queue drains and is restarted by Enqueue.
//
// Speaking stays true from the first item until the queue drains, including
// the debounce pause between items.
type Queue struct {
	synth      Synthesizer
	sanitizer  text.ISanitizer
	openOutput OutputFactory
	config     Config
	notifier   core.Notifier
	logger     *core.Logger

	mu       sync.Mutex
	items    []string
	speaking bool
	running  bool
	gen      uint64 // bumped by CancelAll; workers of an older generation stop
	ctx      context.Context
	cancel   context.CancelFunc
	output   Output
	done     chan struct{} // closed when the current worker exits
	onState  func(speaking bool)
}

func NewQueue(synth Synthesizer, openOutput OutputFactory, config Config, logger *core.Logger) *Queue {
	if logger == nil {
		logger = core.GetLogger()
	}
	if openOutput == nil {
		openOutput = func() (Output, error) { return DiscardOutput{}, nil }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		synth:      synth,
		sanitizer:  text.SpeechSanitizer{},
		openOutput: openOutput,
		config:     config,
		notifier:   core.NopNotifier,
		logger:     logger.With(map[string]interface{}{"component": "playback"}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// WithNotifier sets where playback failure notices go.
func (q *Queue) WithNotifier(n core.Notifier) *Queue {
	if n != nil {
		q.notifier = n
	}
	return q
}

// OnStateChange registers fn to be called whenever the speaking flag flips.
// fn runs on the queue's goroutines and must not block.
func (q *Queue) OnStateChange(fn func(speaking bool)) {
	q.mu.Lock()
	q.onState = fn
	q.mu.Unlock()
}

// Enqueue appends text. When the queue is idle the item starts right away.
func (q *Queue) Enqueue(text string) {
	q.mu.Lock()
	q.items = append(q.items, text)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.done = make(chan struct{})
	gen, ctx, done := q.gen, q.ctx, q.done
	changed := q.setSpeakingLocked(true)
	fn := q.onState
	q.mu.Unlock()

	if changed && fn != nil {
		fn(true)
	}
	go q.run(ctx, gen, done)
}

// Warm opens the audio output ahead of the first utterance.
func (q *Queue) Warm() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, err := q.outputLocked()
	return err
}

func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Pending returns the number of items not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait blocks until the queue is idle or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	done := q.done
	running := q.running
	q.mu.Unlock()
	if !running || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll stops the current utterance, discards pending ones and releases
// the audio output. In-flight synthesis is cancelled and its result dropped.
// Safe to call any number of times.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	dropped := len(q.items)
	q.items = nil
	q.cancel()
	q.gen++
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.running = false
	output := q.output
	q.output = nil
	changed := q.setSpeakingLocked(false)
	fn := q.onState
	q.mu.Unlock()

	if dropped > 0 {
		metrics.PlaybackItems.WithLabelValues(metrics.PlaybackDiscarded).Add(float64(dropped))
		q.logger.Debug("dropped pending utterances", "count", dropped)
	}
	if output != nil {
		if err := output.Close(); err != nil {
			q.logger.Warn("failed to release audio output", "error", err)
		}
	}
	if changed && fn != nil {
		fn(false)
	}
}

func (q *Queue) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	for {
		q.mu.Lock()
		if q.gen != gen {
			q.mu.Unlock()
			return
		}
		if len(q.items) == 0 {
			q.running = false
			changed := q.setSpeakingLocked(false)
			fn := q.onState
			q.mu.Unlock()
			if changed && fn != nil {
				fn(false)
			}
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		q.process(ctx, gen, item)

		if q.Pending() > 0 && q.config.Debounce > 0 {
			t := time.NewTimer(q.config.Debounce)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
}

// process speaks one item. Failures are logged and the queue moves on.
func (q *Queue) process(ctx context.Context, gen uint64, item string) {
	speech := strings.TrimSpace(q.sanitizer.Sanitize(item))
	if speech == "" {
		return
	}

	clip, err := q.synth.Synthesize(ctx, speech)
	if q.stale(ctx, gen) {
		metrics.PlaybackItems.WithLabelValues(metrics.PlaybackDiscarded).Inc()
		return
	}
	if err != nil {
		metrics.PlaybackItems.WithLabelValues(metrics.PlaybackFailed).Inc()
		q.logger.Warn("synthesis failed, skipping utterance", "error", err)
		return
	}
	if len(clip.Data) == 0 {
		return
	}

	pcm, err := audio.Decode(clip)
	if err != nil {
		metrics.ObserveProviderError(err)
		metrics.PlaybackItems.WithLabelValues(metrics.PlaybackFailed).Inc()
		q.logger.Warn("could not decode synthesized audio", "error", err, "format", clip.Format.String())
		q.notifyFailure()
		return
	}

	q.mu.Lock()
	if q.gen != gen {
		q.mu.Unlock()
		metrics.PlaybackItems.WithLabelValues(metrics.PlaybackDiscarded).Inc()
		return
	}
	output, err := q.outputLocked()
	q.mu.Unlock()
	if err != nil {
		metrics.PlaybackItems.WithLabelValues(metrics.PlaybackFailed).Inc()
		q.logger.Warn("audio output unavailable", "error", err)
		q.notifyFailure()
		return
	}

	if err := output.Play(ctx, pcm); err != nil {
		if q.stale(ctx, gen) {
			metrics.PlaybackItems.WithLabelValues(metrics.PlaybackDiscarded).Inc()
			return
		}
		metrics.PlaybackItems.WithLabelValues(metrics.PlaybackFailed).Inc()
		q.logger.Warn("playback failed", "error", err)
		q.notifyFailure()
		return
	}
	metrics.PlaybackItems.WithLabelValues(metrics.PlaybackPlayed).Inc()
}

func (q *Queue) notifyFailure() {
	if q.config.FailedNotice != "" {
		q.notifier.Notify(core.Notice{Level: core.NoticeError, Message: q.config.FailedNotice})
	}
}

func (q *Queue) stale(ctx context.Context, gen uint64) bool {
	if ctx.Err() != nil {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gen != gen
}

func (q *Queue) outputLocked() (Output, error) {
	if q.output != nil {
		return q.output, nil
	}
	out, err := q.openOutput()
	if err != nil {
		return nil, err
	}
	q.output = out
	return out, nil
}

func (q *Queue) setSpeakingLocked(v bool) bool {
	if q.speaking == v {
		return false
	}
	q.speaking = v
	return true
}
