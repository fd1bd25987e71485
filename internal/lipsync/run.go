package lipsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mouthsync/internal/deps"
	"mouthsync/internal/logging"
	"mouthsync/internal/services"
	"mouthsync/internal/services/rhubarb"
)

// State is the lifecycle position of a Run.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePassThrough
	StateFinished
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePassThrough:
		return "pass-through"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the run can make no further progress.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateCancelled
}

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = time.Second
	// pollFloor is where progress sits until the analyzer reports a fraction.
	pollFloor = 50.0
)

// Host bundles the host surfaces a run touches.
type Host struct {
	Scene    Scene
	Poses    PoseTarget
	Layers   LayerTarget
	Progress Progress
	Reporter Reporter
	Timers   Timers
}

// Settings carries the run configuration.
type Settings struct {
	Mode           Mode
	Shapes         ShapeMap
	HoldThreshold  int
	PollInterval   time.Duration
	PollTimeout    time.Duration
	ExtendedShapes string
	ExtraArgs      []string
	// AnalyzeOnly plans cues without keying the host.
	AnalyzeOnly bool
}

// Request names the inputs of one run.
type Request struct {
	AudioFile      string
	DialogFile     string
	ExecutablePath string
	Recognizer     string
}

// Run is a single analyzer invocation and its application to the host.
type Run struct {
	id       string
	host     Host
	settings Settings
	launcher rhubarb.Launcher
	logger   *slog.Logger
	sampler  *logging.ProgressSampler

	mu        sync.Mutex
	state     State
	request   Request
	args      []string
	proc      rhubarb.Process
	timer     Timer
	progress  float64
	message   string
	result    *rhubarb.Result
	summary   Summary
	err       error
	started   time.Time
	finished  time.Time
	released  bool
	timerDone bool
}

// RunOption customizes a Run.
type RunOption func(*Run)

// WithLauncher replaces the process launcher (primarily for tests).
func WithLauncher(launcher rhubarb.Launcher) RunOption {
	return func(r *Run) {
		if launcher != nil {
			r.launcher = launcher
		}
	}
}

// WithLogger sets the run logger.
func WithLogger(logger *slog.Logger) RunOption {
	return func(r *Run) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) RunOption {
	return func(r *Run) {
		if id = strings.TrimSpace(id); id != "" {
			r.id = id
		}
	}
}

// NewRun prepares an idle run.
func NewRun(host Host, settings Settings, opts ...RunOption) *Run {
	if host.Progress == nil {
		host.Progress = NopProgress{}
	}
	if host.Timers == nil {
		host.Timers = TickerTimers{}
	}
	if settings.Mode == "" {
		settings.Mode = ModeBone
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = defaultPollInterval
	}
	if settings.PollTimeout <= 0 {
		settings.PollTimeout = defaultPollTimeout
	}
	r := &Run{
		id:       uuid.NewString(),
		host:     host,
		settings: settings,
		launcher: rhubarb.ExecLauncher{},
		logger:   logging.NewNop(),
		sampler:  logging.NewProgressSampler(10),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.String(logging.FieldRunID, r.id), logging.String(logging.FieldMode, string(settings.Mode)))
	if host.Reporter == nil {
		r.host.Reporter = LogReporter{Logger: r.logger}
	}
	return r
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Start validates preconditions, launches the analyzer, registers the poll
// timer and begins progress. On a precondition failure the run stays idle.
func (r *Run) Start(ctx context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("start: run is %s", r.state)
	}
	if err := r.checkPreconditions(req); err != nil {
		return err
	}
	if err := deps.EnsureExecutable(req.ExecutablePath); err != nil {
		return services.Wrap(services.ErrPrecondition, "lipsync", "start", "analyzer is not executable", err)
	}

	client, err := rhubarb.New(req.ExecutablePath, rhubarb.WithLauncher(r.launcher))
	if err != nil {
		return err
	}
	proc, args, err := client.Start(ctx, rhubarb.Options{
		AudioFile:      req.AudioFile,
		DialogFile:     req.DialogFile,
		Recognizer:     req.Recognizer,
		ExtendedShapes: r.settings.ExtendedShapes,
		ExtraArgs:      r.settings.ExtraArgs,
	})
	if err != nil {
		return err
	}

	r.request = req
	r.args = args
	r.proc = proc
	r.started = time.Now()
	r.state = StateRunning
	r.timer = r.host.Timers.Add(r.settings.PollInterval)
	r.host.Progress.Begin(0, 100)
	r.sampler.Reset()

	r.logger.Info("analyzer started",
		logging.String(logging.FieldEventType, "analyzer_started"),
		logging.String("audio", req.AudioFile),
		logging.String("dialog", req.DialogFile),
		logging.String("recognizer", req.Recognizer),
		logging.Int("pid", proc.Pid()),
		logging.String("command", strings.Join(append([]string{req.ExecutablePath}, args...), " ")),
	)
	return nil
}

func (r *Run) checkPreconditions(req Request) error {
	exe := strings.TrimSpace(req.ExecutablePath)
	if exe == "" {
		return services.Wrap(services.ErrPrecondition, "lipsync", "start", "analyzer executable path is not configured", nil)
	}
	if _, err := os.Stat(exe); err != nil {
		return services.Wrap(services.ErrPrecondition, "lipsync", "start", "analyzer executable not found", err)
	}
	if strings.TrimSpace(req.AudioFile) == "" {
		return services.Wrap(services.ErrPrecondition, "lipsync", "start", "no sound file set", nil)
	}
	if r.settings.AnalyzeOnly {
		return nil
	}
	switch r.settings.Mode {
	case ModeBone:
		if r.host.Poses == nil || r.host.Poses.SelectedCount() == 0 {
			return services.Wrap(services.ErrPrecondition, "lipsync", "start", "no bones selected", nil)
		}
	case ModeLayer:
		if r.host.Layers == nil {
			return services.Wrap(services.ErrPrecondition, "lipsync", "start", "no layer target", nil)
		}
	default:
		return services.Wrap(services.ErrConfiguration, "lipsync", "start", fmt.Sprintf("unsupported mode %q", r.settings.Mode), nil)
	}
	return nil
}

// Tick returns the poll timer channel, or nil before Start and after release.
func (r *Run) Tick() <-chan time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer == nil || r.timerDone {
		return nil
	}
	return r.timer.C()
}

// Poll advances the run by one timer tick. It returns the resulting state
// and, for cancelled runs, the cause.
func (r *Run) Poll() (state State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRunning && r.state != StatePassThrough {
		return r.state, r.err
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = services.Wrap(services.ErrHost, "lipsync", "poll", fmt.Sprintf("panic: %v", rec), nil)
			logging.ErrorWithContext(r.logger, "poll panicked; run cancelled", "poll_panic",
				logging.String("error_type", fmt.Sprintf("%T", rec)),
				logging.Error(err),
			)
			r.cancelLocked(err)
			state = StateCancelled
		}
	}()

	r.host.Progress.Update(r.progressValue(), r.message)

	snap := r.proc.Poll(r.settings.PollTimeout)
	if failed := r.consumeDiagnostics(snap.Diagnostics); failed != nil {
		r.cancelLocked(failed)
		return r.state, failed
	}

	if !snap.Exited {
		r.state = StatePassThrough
		return r.state, nil
	}
	return r.completeLocked(snap)
}

func (r *Run) progressValue() float64 {
	if r.progress > 0 {
		return r.progress
	}
	return pollFloor
}

// consumeDiagnostics handles stderr lines and returns an error when the
// analyzer reported a failure.
func (r *Run) consumeDiagnostics(lines []string) error {
	updated := false
	for _, line := range lines {
		event, ok := rhubarb.ParseDiagnostic(line)
		if !ok {
			continue
		}
		switch event.Type {
		case rhubarb.EventProgress:
			if msg := event.Message(); msg != "" {
				r.message = msg
			}
			if fraction, ok := event.Fraction(); ok {
				r.progress = fraction * 100
				updated = true
				if r.sampler.ShouldLog(fraction) {
					r.logger.Info("analyzer progress",
						logging.String(logging.FieldEventType, "analyzer_progress"),
						logging.Float64("percent", r.progress),
					)
				}
			}
		case rhubarb.EventFailure:
			reason := event.Message()
			if reason == "" {
				reason = "analyzer reported failure"
			}
			r.host.Reporter.Report(LevelError, reason)
			return services.Wrap(services.ErrExternalTool, "rhubarb", "analyze", reason, nil)
		default:
			r.logger.Debug("analyzer diagnostic",
				logging.String("type", string(event.Type)),
				logging.String("message", event.Message()),
			)
		}
	}
	if updated {
		r.host.Progress.Update(r.progressValue(), r.message)
	}
	return nil
}

func (r *Run) completeLocked(snap rhubarb.Snapshot) (State, error) {
	r.stopTimerLocked()

	result, err := rhubarb.ParseResult(snap.Stdout)
	if err != nil {
		raw := strings.TrimSpace(string(snap.Stdout))
		attrs := []logging.Attr{
			logging.String("stdout", truncate(raw, 2048)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run the analyzer manually with the logged command to inspect its output"),
		}
		if snap.ExitErr != nil {
			attrs = append(attrs, logging.String("exit", snap.ExitErr.Error()))
		}
		logging.ErrorWithContext(r.logger, "analyzer output could not be parsed; run cancelled", "analyzer_output_invalid", attrs...)
		r.host.Reporter.Report(LevelError, "analyzer output could not be parsed")
		wrapped := services.Wrap(services.ErrExternalTool, "rhubarb", "parse result", "", err)
		r.cancelLocked(wrapped)
		return r.state, wrapped
	}
	if snap.ExitErr != nil {
		logging.WarnWithContext(r.logger, "analyzer exited with an error but produced output; applying cues", "analyzer_exit_nonzero",
			logging.Error(snap.ExitErr),
			logging.String(logging.FieldImpact, "keys may reflect partial analysis"),
		)
	}
	r.result = &result

	fps := 0.0
	startFrame := 0
	if r.host.Scene != nil {
		fps = r.host.Scene.FPS()
		startFrame = r.host.Scene.StartFrame()
	}
	if fps <= 0 {
		err := services.Wrap(services.ErrHost, "lipsync", "apply", fmt.Sprintf("invalid scene fps %v", fps), nil)
		r.cancelLocked(err)
		return r.state, err
	}

	applier := Applier{
		Mode:          r.settings.Mode,
		Shapes:        r.settings.Shapes,
		HoldThreshold: r.settings.HoldThreshold,
		Poses:         r.host.Poses,
		Layers:        r.host.Layers,
		Logger:        r.logger,
	}
	if r.settings.AnalyzeOnly {
		r.summary = summarizePlan(applier.Plan(result.MouthCues, fps, startFrame), len(result.MouthCues))
	} else {
		summary, err := applier.ApplyCues(result.MouthCues, fps, startFrame)
		r.summary = summary
		if err != nil {
			wrapped := services.Wrap(services.ErrHost, "lipsync", "apply cues", "", err)
			logging.ErrorWithContext(r.logger, "applying cues failed; run cancelled", "apply_failed",
				logging.String("error_type", fmt.Sprintf("%T", rootCause(err))),
				logging.Error(err),
			)
			r.cancelLocked(wrapped)
			return r.state, wrapped
		}
	}

	r.state = StateFinished
	r.finished = time.Now()
	r.releaseLocked()
	r.logger.Info("cues applied",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.Int("cues", r.summary.Cues),
		logging.Int("keys", r.summary.Keys),
		logging.Int("holds", r.summary.Holds),
		logging.Int("first_frame", r.summary.FirstFrame),
		logging.Int("last_frame", r.summary.LastFrame),
		logging.Duration("elapsed", r.finished.Sub(r.started)),
	)
	if len(r.summary.Unmapped) > 0 {
		fallback := "pose 0"
		if r.settings.Mode == ModeLayer {
			fallback = "all layers hidden"
		}
		logging.WarnWithContext(r.logger, "some shapes have no mapping", "shapes_unmapped",
			logging.Any("labels", r.summary.Unmapped),
			logging.String(logging.FieldImpact, "unmapped cues fall back to "+fallback),
			logging.String(logging.FieldErrorHint, "add mouth_* entries to the rig mapping"),
		)
	}
	return r.state, nil
}

func summarizePlan(steps []Step, cues int) Summary {
	summary := Summary{Cues: cues, Steps: steps}
	unmapped := map[string]struct{}{}
	for i, step := range steps {
		if i == 0 {
			summary.FirstFrame = step.Frame
		}
		summary.LastFrame = step.Frame
		if step.Hold {
			summary.Holds++
		} else if !step.Mapped {
			if _, ok := unmapped[step.Label]; !ok {
				unmapped[step.Label] = struct{}{}
				summary.Unmapped = append(summary.Unmapped, step.Label)
			}
		}
	}
	return summary
}

// Cancel stops a running run. It is a no-op for idle or terminal runs.
func (r *Run) Cancel(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning && r.state != StatePassThrough {
		return
	}
	if cause == nil {
		cause = context.Canceled
	}
	r.logger.Info("run cancelled", logging.String(logging.FieldEventType, "run_cancelled"), logging.Error(cause))
	r.cancelLocked(cause)
}

func (r *Run) cancelLocked(cause error) {
	r.state = StateCancelled
	r.err = cause
	r.finished = time.Now()
	r.releaseLocked()
}

func (r *Run) stopTimerLocked() {
	if r.timer != nil && !r.timerDone {
		r.timer.Stop()
		r.timerDone = true
	}
}

// releaseLocked frees the timer, the progress indicator and the process. It
// runs at most once per run.
func (r *Run) releaseLocked() {
	if r.released {
		return
	}
	r.released = true
	r.stopTimerLocked()
	r.host.Progress.End()
	if r.proc != nil {
		if err := r.proc.Kill(); err != nil {
			r.logger.Debug("analyzer kill failed", logging.Error(err))
		}
	}
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the cancellation cause, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Summary returns the cue application summary of a finished run.
func (r *Run) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Result returns the parsed analyzer output, or nil if none was parsed.
func (r *Run) Result() *rhubarb.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Args returns the analyzer arguments the run was started with.
func (r *Run) Args() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.args...)
}

// Elapsed returns the wall time between start and the terminal state.
func (r *Run) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started.IsZero() {
		return 0
	}
	if r.finished.IsZero() {
		return time.Since(r.started)
	}
	return r.finished.Sub(r.started)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
