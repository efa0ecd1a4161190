package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/mcdev12/gymhub/go/internal/client"
	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/mcdev12/gymhub/go/internal/timer"
	"github.com/spf13/cobra"
)

func newRemoteCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Send a command to the session and print the resulting state",
	}

	cmd.AddCommand(
		newSimpleRemoteCmd(opts, "toggle", "Start or stop the timer", session.StartStopTimer{}),
		newSimpleRemoteCmd(opts, "reset", "Stop and zero the timer and clear all rounds", session.ResetTimer{}),
		newSimpleRemoteCmd(opts, "reset-rounds", "Clear all round counters", session.ResetRounds{}),
		newAddRoundCmd(opts),
		newSetPartCmd(opts),
		newConfigureCmd(opts),
		newLoadCmd(opts),
		newStateCmd(opts),
	)
	return cmd
}

func newSimpleRemoteCmd(opts *options, use, short string, c session.Command) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sendAndReport(cmd, opts, c)
		},
	}
}

func newAddRoundCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add-round [participant]",
		Short: "Count one round for a participant (defaults to --participant)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := opts.participant
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return errors.New("participant is required")
			}
			return sendAndReport(cmd, opts, session.AddRound{Participant: name})
		},
	}
}

func newSetPartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-part <index>",
		Short: "Highlight a workout part (0-based)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}
			return sendAndReport(cmd, opts, session.SetActivePart{Index: idx})
		},
	}
}

func newConfigureCmd(opts *options) *cobra.Command {
	var duration, interval, rounds, work, rest int

	cmd := &cobra.Command{
		Use:   "configure <stopwatch|countdown|emom|tabata>",
		Short: "Replace the timer configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := timer.ParseMode(args[0])
			if err != nil {
				return err
			}
			cfg := timer.Config{
				Mode:        mode,
				DurationSec: duration,
				IntervalSec: interval,
				Rounds:      rounds,
				WorkSec:     work,
				RestSec:     rest,
			}.Normalize()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return sendAndReport(cmd, opts, session.ConfigureTimer{Config: cfg})
		},
	}

	cmd.Flags().IntVar(&duration, "duration", 0, "countdown length in seconds")
	cmd.Flags().IntVar(&interval, "interval", 60, "EMOM interval in seconds")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "EMOM or Tabata rounds")
	cmd.Flags().IntVar(&work, "work", 20, "Tabata work seconds")
	cmd.Flags().IntVar(&rest, "rest", 10, "Tabata rest seconds")
	return cmd
}

func newLoadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "load <workout.json>",
		Short: "Load a workout plan from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read workout: %w", err)
			}
			w, err := session.DecodeWorkout(data)
			if err != nil {
				return err
			}
			return sendAndReport(cmd, opts, session.SetWorkout{Workout: w})
		},
	}
}

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current session snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sendAndReport(cmd, opts, nil)
		},
	}
}

// sendAndReport connects, waits for the first snapshot, sends c and prints
// the snapshot that follows it. A nil c only prints the first snapshot.
func sendAndReport(cmd *cobra.Command, opts *options, c session.Command) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	views := make(chan client.View, 64)
	rejected := make(chan string, 1)
	proxy, err := client.NewProxy(client.Config{
		URL:           opts.server,
		Role:          "remote",
		Participant:   opts.participant,
		ReconnectWait: opts.reconnectWait,
		OnView: func(v client.View) {
			select {
			case views <- v:
			default:
			}
		},
		OnServerError: func(msg string) {
			select {
			case rejected <- msg:
			default:
			}
		},
	})
	if err != nil {
		return err
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		proxy.Run(ctx)
	}()
	defer func() {
		cancel()
		<-runDone
	}()

	first, err := nextSnapshot(ctx, views, rejected, 0, false)
	if err != nil {
		return err
	}
	if c == nil {
		return printSnapshot(cmd, first)
	}

	if err := proxy.Send(c); err != nil {
		return err
	}
	after, err := nextSnapshot(ctx, views, rejected, first.Version, true)
	if err != nil {
		return err
	}
	return printSnapshot(cmd, after)
}

func nextSnapshot(ctx context.Context, views <-chan client.View, rejected <-chan string, after uint64, strict bool) (session.Snapshot, error) {
	for {
		select {
		case <-ctx.Done():
			return session.Snapshot{}, fmt.Errorf("waiting for session: %w", ctx.Err())
		case msg := <-rejected:
			return session.Snapshot{}, fmt.Errorf("rejected: %s", msg)
		case v := <-views:
			if !strict || v.Snapshot.Version > after {
				return v.Snapshot, nil
			}
		}
	}
}

func printSnapshot(cmd *cobra.Command, snap session.Snapshot) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
