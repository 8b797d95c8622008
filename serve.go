package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"voiceassist/controlplane"
	"voiceassist/core"
	"voiceassist/factories"
	"voiceassist/metrics"
	"voiceassist/protocol"
	"voiceassist/runner"
	"voiceassist/store"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ServeFlags override the environment config for the serve command.
type ServeFlags struct {
	ConnectURL   string
	DataDir      string
	SettingsPath string
	MetricsAddr  string
	LogDir       string
	Player       string
}

func (f *ServeFlags) BindFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.ConnectURL, "connect", "", "WebSocket URL of the UI control plane (e.g. ws://ui:8888/ws/agent)")
	flagSet.StringVar(&f.DataDir, "data-dir", "", "Directory holding users, history, analytics and FAQs")
	flagSet.StringVar(&f.SettingsPath, "settings", "", "Path to settings.json")
	flagSet.StringVar(&f.MetricsAddr, "metrics-addr", "", "Address for the Prometheus /metrics endpoint, empty disables it")
	flagSet.StringVar(&f.LogDir, "log-dir", "", "Directory for per-session conversation logs, empty disables them")
	flagSet.StringVar(&f.Player, "player", "", "Audio player: aplay, paplay, afplay, ffplay or none")
}

// apply copies the flags that were set over the environment config.
func (f *ServeFlags) apply() {
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.ConnectURL, f.ConnectURL)
	override(&cfg.DataDir, f.DataDir)
	override(&cfg.SettingsPath, f.SettingsPath)
	override(&cfg.MetricsAddr, f.MetricsAddr)
	override(&cfg.LogDir, f.LogDir)
	override(&cfg.AudioPlayer, f.Player)
}

func NewServeCommand() *cobra.Command {
	f := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the UI and run voice sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply()
			if cfg.ConnectURL == "" {
				return errors.New("a control plane URL is required (--connect or CONNECT_URL)")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, stop)
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, stop context.CancelFunc) error {
	logger := core.GetLogger().With(map[string]interface{}{"component": "agent"})

	settings, err := factories.SettingsConfigFromFile(cfg.SettingsPath)
	if err != nil {
		logger.Warn("failed to load settings, using defaults", "path", cfg.SettingsPath, "error", err)
		settings = factories.DefaultSettingsConfig()
	}
	if cfg.AudioPlayer != "" {
		settings.Audio.Player = cfg.AudioPlayer
	}

	kv, err := store.NewFileKV(cfg.DataDir)
	if err != nil {
		return err
	}
	st := store.New(kv, logger)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	var r *runner.Runner
	client := controlplane.NewClient(controlplane.ClientConfig{
		ConnectURL: cfg.ConnectURL,
		AgentID:    cfg.AgentID,
		Version:    version,
		Metadata: map[string]string{
			"data_dir": cfg.DataDir,
		},
		Logger:         logger,
		ActiveSessions: func() int { return r.Count() },
	})

	builder := &factories.SessionBuilder{
		Settings:   settings,
		Keys:       cfg.APIKeys(),
		Store:      st,
		OpenOutput: settings.Audio.OutputFactory(logger),
		LogDir:     cfg.LogDir,
		LogWriters: func(sessionID string) []core.LogWriter {
			return []core.LogWriter{controlplane.NewWSLogWriter(client, sessionID)}
		},
		Logger: logger,
	}
	r = runner.NewRunner(ctx, builder.Build, client, logger)

	client.OnStartSession = r.StartSession
	client.OnAudioSubmission = r.SubmitAudio
	client.OnEndSession = r.EndSession
	client.OnShutdown = func(reason string) {
		logger.Info("shutdown requested by control plane", "reason", reason)
		stop()
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}
	client.SendStatus("idle", []protocol.SessionInfo{})

	go func() {
		client.Wait()
		logger.Info("control plane connection lost, shutting down")
		stop()
	}()

	<-ctx.Done()
	logger.Info("shutting down", "sessions", r.Count())
	r.Stop()
	client.Close()
	return nil
}
