package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/mcdev12/gymhub/go/internal/client"
	"github.com/mcdev12/gymhub/go/internal/models"
	"github.com/mcdev12/gymhub/go/internal/timer"
	"github.com/spf13/cobra"
)

func newDisplayCmd(opts *options) *cobra.Command {
	var frames int

	cmd := &cobra.Command{
		Use:   "display",
		Short: "Follow the session timer and print one line per second",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			out := cmd.OutOrStdout()
			printed := 0
			proxy, err := client.NewProxy(client.Config{
				URL:           opts.server,
				Role:          "display",
				ReconnectWait: opts.reconnectWait,
				OnState: func(s client.State) {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s]\n", s)
				},
				OnView: func(v client.View) {
					writeView(out, v)
					printed++
					if frames > 0 && printed >= frames {
						cancel()
					}
				},
				OnNewLog: func(e models.LogEntry) {
					fmt.Fprintf(out, "logged: %s %s %s\n", e.UserID, e.Exercise, e.Result)
				},
			})
			if err != nil {
				return err
			}

			if err := proxy.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&frames, "frames", 0, "exit after this many updates (0 runs until interrupted)")
	return cmd
}

// writeView renders one display line: clock, secondary text, rounds, cues
func writeView(w io.Writer, v client.View) {
	var b strings.Builder
	b.WriteString(v.Display.Primary)
	if v.Display.Secondary != "" {
		b.WriteString("  ")
		b.WriteString(v.Display.Secondary)
	}
	if !v.Snapshot.TimerRunning {
		b.WriteString("  (paused)")
	}
	if w := v.Snapshot.Workout; w != nil {
		if idx := v.Snapshot.ActivePartIndex; idx >= 0 && idx < len(w.Parts) {
			fmt.Fprintf(&b, "  part %d/%d %s", idx+1, len(w.Parts), w.Parts[idx].Type)
		}
	}
	if len(v.Snapshot.Rounds) > 0 {
		names := make([]string, 0, len(v.Snapshot.Rounds))
		for name := range v.Snapshot.Rounds {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("  rounds:")
		for _, name := range names {
			fmt.Fprintf(&b, " %s=%d", name, v.Snapshot.Rounds[name])
		}
	}
	for _, cue := range v.Cues {
		switch cue {
		case timer.CueWarn:
			b.WriteString("  *beep*")
		case timer.CueBoundary:
			b.WriteString("  *BEEEP*")
		}
	}
	fmt.Fprintln(w, b.String())
}
