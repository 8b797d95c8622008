package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"voiceassist/core"
	"voiceassist/utils/audio"
)

// Output plays decoded clips. Play blocks until the clip finished or ctx is
// done. Close releases the device; Play after Close fails.
type Output interface {
	Play(ctx context.Context, clip core.AudioClip) error
	Close() error
}

// OutputFactory opens an Output. The queue calls it lazily on first use.
type OutputFactory func() (Output, error)

var ErrOutputClosed = errors.New("audio output closed")

type player struct {
	name     string
	args     []string
	needFile bool // reads a path instead of stdin
}

var players = []player{
	{name: "aplay", args: []string{"-q"}},
	{name: "paplay"},
	{name: "afplay", needFile: true},
	{name: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-i", "pipe:0"}},
}

// CommandOutput pipes each clip as WAV into an external player process.
type CommandOutput struct {
	player player
	logger *core.Logger

	mu     sync.Mutex
	closed bool
}

// NewCommandOutput uses the named player, or the first one found on PATH
// when name is empty.
func NewCommandOutput(name string, logger *core.Logger) (*CommandOutput, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	for _, p := range players {
		if name != "" && p.name != name {
			continue
		}
		if _, err := exec.LookPath(p.name); err != nil {
			if name != "" {
				return nil, fmt.Errorf("audio player %q not found: %w", name, err)
			}
			continue
		}
		return &CommandOutput{player: p, logger: logger}, nil
	}
	if name != "" {
		return nil, fmt.Errorf("unsupported audio player %q", name)
	}
	return nil, errors.New("no audio player found (tried aplay, paplay, afplay, ffplay)")
}

func (o *CommandOutput) Play(ctx context.Context, clip core.AudioClip) error {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrOutputClosed
	}

	wav, err := audio.EncodeWAV(clip)
	if err != nil {
		return err
	}

	args := append([]string(nil), o.player.args...)
	var stdin *bytes.Reader
	if o.player.needFile {
		f, err := os.CreateTemp("", "voiceassist-*.wav")
		if err != nil {
			return err
		}
		defer os.Remove(f.Name())
		if _, err := f.Write(wav); err != nil {
			f.Close()
			return err
		}
		f.Close()
		args = append(args, f.Name())
	} else {
		stdin = bytes.NewReader(wav)
	}

	cmd := exec.CommandContext(ctx, o.player.name, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", o.player.name, err)
	}
	return nil
}

func (o *CommandOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

// DiscardOutput drops audio. With Realtime set it waits for the clip's
// duration, so the speaking state lasts as long as the speech would.
type DiscardOutput struct {
	Realtime bool
}

func (o DiscardOutput) Play(ctx context.Context, clip core.AudioClip) error {
	if !o.Realtime {
		return ctx.Err()
	}
	d := time.Duration(clip.DurationSeconds() * float64(time.Second))
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (DiscardOutput) Close() error { return nil }
