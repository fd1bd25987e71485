package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mouthsync/internal/logging"
	"mouthsync/internal/notifications"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run RIG",
		Short: "Analyze the rig's sound file and key mouth shapes into its action",
		Long: `Run the Rhubarb analyzer on the rig's sound file and key the resulting
mouth cues. Bone mode applies pose-library poses to the selected bones; layer
mode toggles layer visibility. The rig file is backed up to RIG.bak first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rn, cleanup, err := ctx.newRunner(time.Now())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := rn.execute(sigCtx, args[0], opts)
			fmt.Fprintln(cmd.OutOrStdout(), describeOutcome(report, err))
			if err != nil {
				return err
			}
			if report.Backup != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Backup: %s\n", report.Backup)
			}
			for _, path := range report.Exports {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported: %s\n", path)
			}
			return nil
		},
	}
	addRunFlags(cmd, &opts, false)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *runOptions, clearByDefault bool) {
	flags := cmd.Flags()
	flags.StringVar(&opts.mode, "mode", "", "Keying mode: bone or layer (default from config)")
	flags.StringVar(&opts.audio, "audio", "", "Sound file, overriding the rig's sound_file")
	flags.StringVar(&opts.dialog, "dialog", "", "Dialog transcript, overriding the rig's dialog_file")
	flags.StringSliceVar(&opts.bones, "bones", nil, "Bones to key, replacing the rig's selection")
	flags.BoolVar(&opts.clear, "clear", clearByDefault, "Clear existing keyframes before keying")
	flags.BoolVar(&opts.noBackup, "no-backup", false, "Skip writing RIG.bak before modifying the rig")
	flags.StringVar(&opts.dopeSheet, "dopesheet", "", "Write a JSON dope sheet of the keyed action")
	flags.StringVar(&opts.gltf, "gltf", "", "Export the bone action as a glTF animation (.gltf or .glb)")
	flags.StringVar(&opts.gltfBase, "gltf-base", "", "Existing glTF document whose nodes the animation targets")
}

// newRunner wires a runner with the per-run log file, run journal and
// notifier. cleanup closes the journal.
func (c *commandContext) newRunner(started time.Time) (*runner, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, logPath, err := c.runLogger(started)
	if err != nil {
		return nil, nil, err
	}
	store, err := c.openHistory()
	if err != nil {
		logging.WarnWithContext(logger, "run journal unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "runs will not be recorded"),
		)
		store = nil
	}
	logger.Debug("run log", logging.String("path", logPath))

	rn := &runner{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "cli"),
		store:    store,
		notifier: notifications.NewService(cfg),
		progress: os.Stderr,
		options:  c.lipsyncOptions,
	}
	cleanup := func() {
		if store != nil {
			_ = store.Close()
		}
	}
	return rn, cleanup, nil
}
