package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/gymhub/go/internal/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type options struct {
	server        string
	participant   string
	reconnectWait time.Duration
	timeout       time.Duration
}

func newRootCmd() *cobra.Command {
	// a missing .env is the normal case for the CLI
	_ = godotenv.Load()

	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "gymctl",
		Short:         "gymctl: display and remote control for a GymHub session",
		Long:          "gymctl connects to the GymHub session server. Use `display` to follow the shared timer and `remote` to send commands.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("GYMHUB_SERVER", "ws://localhost:8000/ws"), "session websocket url")
	flags.StringVar(&opts.participant, "participant", os.Getenv("GYMHUB_PARTICIPANT"), "participant name to act as")
	flags.DurationVar(&opts.reconnectWait, "reconnect-wait", envDuration("RECONNECT_WAIT", client.DefaultReconnectWait), "delay between reconnect attempts")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "how long remote commands wait for the session")

	rootCmd.AddCommand(
		newDisplayCmd(opts),
		newRemoteCmd(opts),
	)

	return rootCmd
}

func setupLogging(cmd *cobra.Command) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
	level, err := zerolog.ParseLevel(strings.ToLower(envOr("LOG_LEVEL", "warn")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
