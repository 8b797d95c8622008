package main

import (
	"os"

	"voiceassist/config"
	"voiceassist/core"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "voiceassist",
	Short: "Voice assistant agent",
	Long: `voiceassist runs spoken conversations: it transcribes what the user said,
asks a language model for a reply, speaks it, and remembers each user's
conversations between sessions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Existing variables win, so .env.local overrides .env.
		for _, file := range []string{".env.local", ".env"} {
			if err := godotenv.Load(file); err == nil {
				core.GetLogger().Debug("loaded environment file", "file", file)
			}
		}

		var err error
		cfg, err = config.New()
		if err != nil {
			return err
		}
		if logLevel == "" {
			logLevel = cfg.LogLevel
		}
		level, err := core.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		core.SetLevel(level)
		return nil
	},
}

func main() {
	rootCmd.AddCommand(
		NewServeCommand(),
		NewDashboardCommand(),
	)

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (trace,debug,info,warn,error) (default $LOG_LEVEL or info)")

	if err := rootCmd.Execute(); err != nil {
		core.GetLogger().Error("command failed", "error", err)
		os.Exit(1)
	}
}
