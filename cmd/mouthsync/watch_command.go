package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mouthsync/internal/logging"
	"mouthsync/internal/rig"
	"mouthsync/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	var debounce time.Duration
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch RIG",
		Short: "Re-key the rig whenever its sound or dialog file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rn, cleanup, err := ctx.newRunner(time.Now())
			if err != nil {
				return err
			}
			defer cleanup()

			r, err := rig.Load(args[0], rig.WithDefaultFPS(rn.cfg.Animation.DefaultFPS))
			if err != nil {
				return err
			}
			inputs := []string{
				inputPath(r, opts.audio, r.SoundFile()),
				inputPath(r, opts.dialog, r.DialogFile()),
			}

			out := cmd.OutOrStdout()
			rerun := func(ctx context.Context, _ []string) error {
				report, err := rn.execute(ctx, args[0], opts)
				fmt.Fprintln(out, describeOutcome(report, err))
				return err
			}
			if !skipInitial {
				// A failed first run is reported and the watch continues.
				_ = rerun(sigCtx, nil)
			}

			watcher, err := watch.New(inputs, debounce, rn.logger)
			if err != nil {
				return err
			}
			rn.logger.Info("watching inputs",
				logging.String(logging.FieldEventType, "watch_started"),
				logging.Any("files", watcher.Files()),
			)
			fmt.Fprintf(out, "Watching %d file(s); Ctrl+C to stop\n", len(watcher.Files()))
			return watcher.Run(sigCtx, rerun)
		},
	}
	addRunFlags(cmd, &opts, true)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before re-running")
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Wait for the first change instead of running immediately")
	return cmd
}
