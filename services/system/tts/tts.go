package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"voiceassist/core"
)

const providerName = "system"

// Config selects the local speech engine.
type Config struct {
	Engine string `json:"engine"` // "espeak-ng", "espeak", "say" or "" to detect.
	Voice  string `json:"voice"`  // Preferred voice, engine specific. Empty uses the engine default.
	Rate   int    `json:"rate"`   // Words per minute, 0 for the engine default.
}

func DefaultConfig() Config {
	return Config{}
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// SystemTTS renders speech with an engine installed on the host. It is the
// fallback when the hosted synthesizer is unavailable.
type SystemTTS struct {
	engine string
	config Config
	run    runFunc
	logger *core.Logger
}

// NewSystemTTS picks the engine and fails when none is installed.
func NewSystemTTS(config Config, logger *core.Logger) (*SystemTTS, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	engine := config.Engine
	if engine == "" {
		engine = detectEngine()
	}
	if engine == "" {
		return nil, errors.New("no system speech engine found (tried espeak-ng, espeak, say)")
	}
	if _, err := exec.LookPath(engine); err != nil {
		return nil, fmt.Errorf("speech engine %q not found: %w", engine, err)
	}
	return &SystemTTS{
		engine: engine,
		config: config,
		run:    runCommand,
		logger: logger,
	}, nil
}

func detectEngine() string {
	candidates := []string{"espeak-ng", "espeak"}
	if runtime.GOOS == "darwin" {
		candidates = append([]string{"say"}, candidates...)
	}
	for _, c := range candidates {
		if _, err := exec.LookPath(c); err == nil {
			return c
		}
	}
	return ""
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

func (s *SystemTTS) Name() string { return providerName }

// Synthesize returns a WAV clip of text.
func (s *SystemTTS) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	var (
		data []byte
		err  error
	)
	if s.engine == "say" {
		data, err = s.synthesizeSay(ctx, text)
	} else {
		data, err = s.run(ctx, s.engine, s.espeakArgs(text)...)
	}
	if err != nil {
		if ctx.Err() != nil {
			return core.AudioClip{}, ctx.Err()
		}
		return core.AudioClip{}, core.NewSynthesisError(providerName, 0, err)
	}
	if len(data) == 0 {
		return core.AudioClip{}, core.NewSynthesisError(providerName, 0, errors.New("engine produced no audio"))
	}
	return core.AudioClip{Data: data, Channels: 1, Format: core.WAV}, nil
}

func (s *SystemTTS) espeakArgs(text string) []string {
	args := []string{"--stdout"}
	if s.config.Voice != "" {
		args = append(args, "-v", s.config.Voice)
	}
	if s.config.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(s.config.Rate))
	}
	// "--" keeps text starting with a dash from being read as a flag.
	return append(args, "--", text)
}

// synthesizeSay writes through a temp file; say cannot emit WAV on stdout.
func (s *SystemTTS) synthesizeSay(ctx context.Context, text string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "voiceassist-say-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "speech.wav")
	args := []string{"-o", out, "--file-format=WAVE", "--data-format=LEI16@22050"}
	if s.config.Voice != "" {
		args = append(args, "-v", s.config.Voice)
	}
	if s.config.Rate > 0 {
		args = append(args, "-r", strconv.Itoa(s.config.Rate))
	}
	args = append(args, "--", text)

	if _, err := s.run(ctx, "say", args...); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}
