package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voiceassist/core"
)

const namespace = "voiceassist"

// Turn outcomes.
const (
	TurnCompleted = "completed"
	TurnEmpty     = "empty"
	TurnFailed    = "failed"
	TurnRejected  = "rejected"
)

// Playback outcomes.
const (
	PlaybackPlayed    = "played"
	PlaybackFailed    = "failed"
	PlaybackDiscarded = "discarded"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_started_total",
		Help:      "Sessions whose greeting was loaded.",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Sessions currently open.",
	})
	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Audio submissions by outcome.",
	}, []string{"outcome"})
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "Time from audio submission to the reply being queued.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	})
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_failures_total",
		Help:      "Failed provider calls by operation and provider.",
	}, []string{"op", "provider"})
	SynthesisFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "synthesis_fallbacks_total",
		Help:      "Utterances spoken by the system synthesizer after the primary failed.",
	})
	PlaybackItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_items_total",
		Help:      "Queued utterances by outcome.",
	}, []string{"outcome"})
	ControlFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "control_frames_total",
		Help:      "Control plane frames by direction and message type.",
	}, []string{"direction", "type"})
	ControlFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "control_frames_dropped_total",
		Help:      "Outbound control plane frames dropped because the send buffer was full.",
	})
)

// ObserveProviderError counts err against its operation and provider when it
// is one of the provider error types. Other errors are ignored.
func ObserveProviderError(err error) {
	var (
		te *core.TranscriptionError
		re *core.ReplyError
		se *core.SynthesisError
		de *core.DecodeError
		pe *core.ProviderError
	)
	switch {
	case err == nil:
		return
	case errors.As(err, &te):
		pe = &te.ProviderError
	case errors.As(err, &re):
		pe = &re.ProviderError
	case errors.As(err, &se):
		pe = &se.ProviderError
	case errors.As(err, &de):
		pe = &de.ProviderError
	default:
		return
	}
	ProviderFailures.WithLabelValues(pe.Op, pe.Provider).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *core.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
