package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"mouthsync/internal/lipsync"
	"mouthsync/internal/preflight"
	"mouthsync/internal/rig"
	"mouthsync/internal/services"
	"mouthsync/internal/services/rhubarb"
)

type cuesOptions struct {
	dialog     string
	rigPath    string
	mode       string
	fps        float64
	startFrame int
	json       bool
}

// staticScene supplies timing when cues are planned without a rig.
type staticScene struct {
	fps   float64
	start int
}

func (s staticScene) FPS() float64    { return s.fps }
func (s staticScene) StartFrame() int { return s.start }

type cueStep struct {
	Frame  int     `json:"frame"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Value  string  `json:"value"`
	Shape  string  `json:"shape"`
	Index  int     `json:"index"`
	Mapped bool    `json:"mapped"`
	Hold   bool    `json:"hold,omitempty"`
}

type cuesOutput struct {
	SoundFile string        `json:"soundFile"`
	Duration  float64       `json:"duration"`
	FPS       float64       `json:"fps"`
	Cues      []rhubarb.Cue `json:"mouthCues"`
	Steps     []cueStep     `json:"steps"`
	Unmapped  []string      `json:"unmapped,omitempty"`
}

func newCuesCommand(ctx *commandContext) *cobra.Command {
	var opts cuesOptions

	cmd := &cobra.Command{
		Use:   "cues AUDIO",
		Short: "Print the analyzer's mouth cues and the frames they would key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			audio, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			dialog := ""
			if opts.dialog != "" {
				if dialog, err = filepath.Abs(opts.dialog); err != nil {
					return err
				}
			}
			if failed := preflight.Failed(preflight.CheckInputs(audio, dialog)); len(failed) > 0 {
				return services.Wrap(services.ErrPrecondition, "cli", "cues", preflight.Summary(failed), nil)
			}
			mode, err := resolveMode(opts.mode, cfg)
			if err != nil {
				return err
			}

			logger := ctx.consoleLogger()
			var scene lipsync.Scene = staticScene{fps: opts.fps, start: opts.startFrame}
			shapes := lipsync.NewShapeMap(nil)
			if opts.fps <= 0 {
				scene = staticScene{fps: cfg.Animation.DefaultFPS, start: opts.startFrame}
			}
			if opts.rigPath != "" {
				r, err := rig.Load(opts.rigPath, rig.WithDefaultFPS(cfg.Animation.DefaultFPS), rig.WithLogger(logger))
				if err != nil {
					return services.Wrap(services.ErrValidation, "rig", "load", opts.rigPath, err)
				}
				scene = r
				shapes = lipsync.NewShapeMap(r.Shapes())
			}

			settings := lipsync.Settings{
				Mode:           mode,
				Shapes:         shapes,
				HoldThreshold:  cfg.Animation.HoldFrameThreshold,
				PollInterval:   cfg.PollInterval(),
				PollTimeout:    cfg.PollTimeout(),
				ExtendedShapes: cfg.Rhubarb.ExtendedShapes,
				ExtraArgs:      cfg.Rhubarb.ExtraArgs,
				AnalyzeOnly:    true,
			}
			var run *lipsync.Run
			driver := lipsync.Driver{
				Host:     lipsync.Host{Scene: scene, Reporter: lipsync.LogReporter{Logger: logger}},
				Settings: settings,
				Options:  ctx.lipsyncOptions,
				Logger:   logger,
				OnStart:  func(r *lipsync.Run) { run = r },
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			outcome := driver.Run(sigCtx, lipsync.Request{
				AudioFile:      audio,
				DialogFile:     dialog,
				ExecutablePath: cfg.Rhubarb.ExecutablePath,
				Recognizer:     cfg.Rhubarb.Recognizer,
			})
			if outcome.State != lipsync.StateFinished {
				if outcome.Err != nil {
					return outcome.Err
				}
				return fmt.Errorf("analysis ended %s", outcome.State)
			}
			if run == nil || run.Result() == nil {
				return errors.New("analyzer produced no result")
			}

			result := run.Result()
			out := cuesOutput{
				SoundFile: result.Metadata.SoundFile,
				Duration:  result.Metadata.Duration,
				FPS:       scene.FPS(),
				Cues:      result.MouthCues,
				Unmapped:  outcome.Summary.Unmapped,
			}
			for _, step := range outcome.Summary.Steps {
				out.Steps = append(out.Steps, cueStep{
					Frame:  step.Frame,
					Start:  step.Cue.Start,
					End:    step.Cue.End,
					Value:  step.Cue.Value,
					Shape:  step.Label,
					Index:  step.Index,
					Mapped: step.Mapped,
					Hold:   step.Hold,
				})
			}
			if opts.json {
				return writeJSON(cmd, out)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderCueTable(out))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dialog, "dialog", "", "Dialog transcript to guide recognition")
	flags.StringVar(&opts.rigPath, "rig", "", "Rig whose frame rate and shape mapping apply")
	flags.StringVar(&opts.mode, "mode", "", "Keying mode used for planning: bone or layer")
	flags.Float64Var(&opts.fps, "fps", 0, "Frame rate when no rig is given (default from config)")
	flags.IntVar(&opts.startFrame, "start-frame", 0, "Start frame when no rig is given")
	flags.BoolVar(&opts.json, "json", false, "Output JSON")
	return cmd
}

func renderCueTable(out cuesOutput) string {
	rows := make([][]string, 0, len(out.Steps))
	for _, step := range out.Steps {
		target := "-"
		if step.Mapped {
			target = strconv.Itoa(step.Index)
		}
		value := step.Value
		if step.Hold {
			value = "hold"
		}
		rows = append(rows, []string{
			strconv.Itoa(step.Frame),
			fmt.Sprintf("%.2f", step.Start),
			fmt.Sprintf("%.2f", step.End),
			value,
			step.Shape,
			target,
		})
	}
	table := renderTable(
		[]string{"Frame", "Start", "End", "Cue", "Shape", "Target"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft, alignRight},
	)
	footer := fmt.Sprintf("%d cues, %.2fs at %g fps", len(out.Cues), out.Duration, out.FPS)
	return table + "\n" + footer + "\n"
}
