package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mouthsync/internal/config"
	"mouthsync/internal/export"
	"mouthsync/internal/fileutil"
	"mouthsync/internal/history"
	"mouthsync/internal/lipsync"
	"mouthsync/internal/logging"
	"mouthsync/internal/notifications"
	"mouthsync/internal/preflight"
	"mouthsync/internal/rig"
	"mouthsync/internal/services"
)

// runOptions are the per-invocation overrides shared by run and watch.
type runOptions struct {
	mode      string
	audio     string
	dialog    string
	bones     []string
	clear     bool
	noBackup  bool
	dopeSheet string
	gltf      string
	gltfBase  string
}

// runReport is what a lip-sync run produced.
type runReport struct {
	RunID    string
	RigPath  string
	Audio    string
	Dialog   string
	Mode     lipsync.Mode
	Outcome  lipsync.Outcome
	Backup   string
	Exports  []string
	Duration time.Duration
}

// runner executes one lip-sync run against a rig file end to end: lock, load,
// analyze, key, save, export, journal and notify.
type runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *history.Store
	notifier notifications.Service
	progress io.Writer
	options  []lipsync.RunOption
}

func (rn *runner) execute(ctx context.Context, rigPath string, opts runOptions) (runReport, error) {
	started := time.Now()
	report := runReport{RunID: uuid.NewString()}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, rn.logger)

	absRig, err := filepath.Abs(rigPath)
	if err != nil {
		return report, fmt.Errorf("resolve rig path: %w", err)
	}
	report.RigPath = absRig

	mode, err := resolveMode(opts.mode, rn.cfg)
	if err != nil {
		return report, err
	}
	report.Mode = mode
	ctx = services.WithMode(ctx, string(mode))

	lock, err := rig.AcquireLock(absRig)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release rig lock", logging.Error(err))
		}
	}()

	r, err := rig.Load(absRig, rig.WithDefaultFPS(rn.cfg.Animation.DefaultFPS), rig.WithLogger(logger))
	if err != nil {
		return report, services.Wrap(services.ErrValidation, "rig", "load", absRig, err)
	}
	report.Audio = inputPath(r, opts.audio, r.SoundFile())
	report.Dialog = inputPath(r, opts.dialog, r.DialogFile())

	entry := rn.begin(ctx, report)

	err = rn.prepare(r, &report, opts)
	if err == nil {
		err = rn.analyze(ctx, r, &report, opts, logger)
	}
	report.Duration = time.Since(started)

	rn.finish(ctx, entry, report, err, logger)
	rn.notify(ctx, report, err, logger)
	return report, err
}

// prepare validates inputs and readies the rig for keying.
func (rn *runner) prepare(r *rig.Rig, report *runReport, opts runOptions) error {
	if len(opts.bones) > 0 {
		if err := r.Select(opts.bones...); err != nil {
			return services.Wrap(services.ErrValidation, "rig", "select bones", "", err)
		}
	}
	if failed := preflight.Failed(preflight.CheckInputs(report.Audio, report.Dialog)); len(failed) > 0 {
		return services.Wrap(services.ErrPrecondition, "lipsync", "inputs", preflight.Summary(failed), nil)
	}
	if report.Mode == lipsync.ModeBone && r.SelectedCount() == 0 {
		return services.Wrap(services.ErrPrecondition, "lipsync", "start", "no bones selected", nil)
	}
	if !opts.noBackup {
		backup, err := fileutil.Backup(r.Path())
		if err != nil {
			return services.Wrap(services.ErrHost, "rig", "backup", "", err)
		}
		report.Backup = backup
	}
	if opts.clear {
		r.ClearAction()
	}
	return nil
}

func (rn *runner) analyze(ctx context.Context, r *rig.Rig, report *runReport, opts runOptions, logger *slog.Logger) error {
	var progress lipsync.Progress = lipsync.NopProgress{}
	if rn.progress != nil {
		progress = progressFor(rn.progress, logger)
	}
	driver := lipsync.Driver{
		Host: lipsync.Host{
			Scene:    r,
			Poses:    r,
			Layers:   r,
			Progress: progress,
			Reporter: lipsync.LogReporter{Logger: logger},
		},
		Settings: runSettings(rn.cfg, r, report.Mode),
		Options:  rn.options,
		Logger:   logger,
	}
	outcome := driver.Run(ctx, lipsync.Request{
		AudioFile:      report.Audio,
		DialogFile:     report.Dialog,
		ExecutablePath: rn.cfg.Rhubarb.ExecutablePath,
		Recognizer:     rn.cfg.Rhubarb.Recognizer,
	})
	report.Outcome = outcome
	if outcome.State != lipsync.StateFinished {
		if outcome.Err != nil {
			return outcome.Err
		}
		return fmt.Errorf("run ended %s", outcome.State)
	}

	if err := r.Save(); err != nil {
		return services.Wrap(services.ErrHost, "rig", "save", r.Path(), err)
	}
	return rn.export(r, report, opts, logger)
}

func (rn *runner) export(r *rig.Rig, report *runReport, opts runOptions, logger *slog.Logger) error {
	if opts.dopeSheet != "" {
		sheet := export.BuildDopeSheet(r, &report.Outcome.Summary)
		if err := export.SaveDopeSheet(opts.dopeSheet, sheet); err != nil {
			return services.Wrap(services.ErrHost, "export", "dope sheet", opts.dopeSheet, err)
		}
		report.Exports = append(report.Exports, opts.dopeSheet)
	}
	if opts.gltf != "" {
		doc, stats, err := export.BuildGLTF(r, export.GLTFOptions{Base: opts.gltfBase})
		if err != nil {
			return services.Wrap(services.ErrValidation, "export", "gltf", "", err)
		}
		if err := export.SaveGLTF(opts.gltf, doc); err != nil {
			return services.Wrap(services.ErrHost, "export", "gltf", opts.gltf, err)
		}
		logger.Info("gltf animation exported",
			logging.String(logging.FieldEventType, "gltf_exported"),
			logging.String("path", opts.gltf),
			logging.Int("channels", stats.Channels),
			logging.Int("new_nodes", stats.NewNodes),
			logging.Float64("duration_seconds", stats.Duration),
		)
		report.Exports = append(report.Exports, opts.gltf)
	}
	return nil
}

func (rn *runner) begin(ctx context.Context, report runReport) *history.Run {
	if rn.store == nil {
		return nil
	}
	entry, err := rn.store.Begin(ctx, history.Run{
		RunID:      report.RunID,
		Mode:       string(report.Mode),
		AudioFile:  report.Audio,
		DialogFile: report.Dialog,
		RigPath:    report.RigPath,
		Recognizer: rn.cfg.Rhubarb.Recognizer,
	})
	if err != nil {
		logging.WarnWithContext(rn.logger, "run journal unavailable", "history_begin_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not appear in history"),
		)
		return nil
	}
	return entry
}

func (rn *runner) finish(ctx context.Context, entry *history.Run, report runReport, runErr error, logger *slog.Logger) {
	if rn.store == nil || entry == nil {
		return
	}
	summary := report.Outcome.Summary
	outcome := history.Outcome{
		Status:     history.StatusFinished,
		CueCount:   summary.Cues,
		KeyCount:   summary.Keys,
		HoldCount:  summary.Holds,
		FirstFrame: summary.FirstFrame,
		LastFrame:  summary.LastFrame,
		Unmapped:   summary.Unmapped,
	}
	if runErr != nil {
		outcome.Status = services.FailureStatus(runErr)
		outcome.Err = runErr
	}
	// Cancellation by signal still has to reach the journal.
	if err := rn.store.Finish(context.WithoutCancel(ctx), entry.RunID, outcome); err != nil {
		logger.Warn("record run outcome", logging.Error(err))
	}
}

func (rn *runner) notify(ctx context.Context, report runReport, runErr error, logger *slog.Logger) {
	if rn.notifier == nil {
		return
	}
	payload := notifications.Payload{
		"audio": filepath.Base(report.Audio),
		"mode":  string(report.Mode),
	}
	event := notifications.EventRunFinished
	if runErr != nil {
		payload["error"] = runErr
		event = notifications.EventRunCancelled
		if services.FailureStatus(runErr) == history.StatusRejected {
			event = notifications.EventRunRejected
		}
	} else {
		summary := report.Outcome.Summary
		payload["cues"] = summary.Cues
		payload["keys"] = summary.Keys
		payload["holds"] = summary.Holds
		payload["unmapped"] = summary.Unmapped
		payload["duration"] = report.Duration
	}
	if err := rn.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logger.Warn("notification failed", logging.Error(err))
	}
}

func runSettings(cfg *config.Config, r *rig.Rig, mode lipsync.Mode) lipsync.Settings {
	return lipsync.Settings{
		Mode:           mode,
		Shapes:         lipsync.NewShapeMap(r.Shapes()),
		HoldThreshold:  cfg.Animation.HoldFrameThreshold,
		PollInterval:   cfg.PollInterval(),
		PollTimeout:    cfg.PollTimeout(),
		ExtendedShapes: cfg.Rhubarb.ExtendedShapes,
		ExtraArgs:      cfg.Rhubarb.ExtraArgs,
	}
}

func resolveMode(flag string, cfg *config.Config) (lipsync.Mode, error) {
	value := strings.ToLower(strings.TrimSpace(flag))
	if value == "" {
		value = cfg.Animation.Mode
	}
	switch lipsync.Mode(value) {
	case lipsync.ModeBone, lipsync.ModeLayer:
		return lipsync.Mode(value), nil
	case "":
		return lipsync.ModeBone, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "cli", "mode", fmt.Sprintf("unsupported mode %q (want bone or layer)", value), nil)
	}
}

// inputPath prefers an explicit flag, resolved against the working
// directory, over the rig's own setting, resolved against the rig.
func inputPath(r *rig.Rig, flag, fromRig string) string {
	if flag = strings.TrimSpace(flag); flag != "" {
		if abs, err := filepath.Abs(flag); err == nil {
			return abs
		}
		return flag
	}
	return r.ResolvePath(fromRig)
}

// describeOutcome renders the one-line result of a run.
func describeOutcome(report runReport, err error) string {
	name := filepath.Base(report.RigPath)
	if err != nil {
		status := services.FailureStatus(err)
		if errors.Is(err, context.Canceled) {
			status = history.StatusCancelled
		}
		return fmt.Sprintf("%s %s: %v", name, status, err)
	}
	summary := report.Outcome.Summary
	line := fmt.Sprintf("%s keyed %d cues (%d keys, %d holds) frames %d-%d in %s",
		name, summary.Cues, summary.Keys, summary.Holds, summary.FirstFrame, summary.LastFrame,
		report.Duration.Round(time.Millisecond))
	if len(summary.Unmapped) > 0 {
		line += "; unmapped " + strings.Join(summary.Unmapped, ", ")
	}
	return line
}
