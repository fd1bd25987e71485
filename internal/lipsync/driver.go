package lipsync

import (
	"context"
	"log/slog"

	"mouthsync/internal/logging"
	"mouthsync/internal/services"
)

// Outcome is the terminal result of Driver.Run.
type Outcome struct {
	RunID   string
	State   State
	Summary Summary
	Err     error
}

// Driver runs the analyzer to completion on a host.
type Driver struct {
	Host     Host
	Settings Settings
	Options  []RunOption
	Logger   *slog.Logger

	// OnStart is called once the analyzer has launched.
	OnStart func(run *Run)
}

// Run starts a run and advances it on every host timer tick until it is
// finished or cancelled. Context cancellation cancels the run through the
// same release path. A precondition failure returns an idle outcome.
func (d *Driver) Run(ctx context.Context, req Request) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := append([]RunOption{}, d.Options...)
	if d.Logger != nil {
		opts = append([]RunOption{WithLogger(d.Logger)}, opts...)
	}
	if id, ok := services.RunIDFromContext(ctx); ok {
		opts = append(opts, WithRunID(id))
	}
	run := NewRun(d.Host, d.Settings, opts...)
	ctx = services.WithRunID(ctx, run.ID())
	ctx = services.WithMode(ctx, string(d.Settings.Mode))
	logger := logging.WithContext(ctx, d.Logger)

	if err := run.Start(ctx, req); err != nil {
		logging.WarnWithContext(logger, "run not started", "run_rejected",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no keyframes were written"),
			logging.String(logging.FieldErrorHint, "check the analyzer path, sound file and bone selection"),
		)
		return Outcome{RunID: run.ID(), State: run.State(), Err: err}
	}
	if d.OnStart != nil {
		d.OnStart(run)
	}

	for {
		tick := run.Tick()
		if tick == nil {
			break
		}
		select {
		case <-ctx.Done():
			run.Cancel(ctx.Err())
		case <-tick:
			run.Poll()
		}
		if run.State().Terminal() {
			break
		}
	}
	return Outcome{RunID: run.ID(), State: run.State(), Summary: run.Summary(), Err: run.Err()}
}
