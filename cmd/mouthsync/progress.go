package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"mouthsync/internal/lipsync"
	"mouthsync/internal/logging"
)

// barProgress draws analyzer progress as a terminal bar.
type barProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
	min float64
	max float64
}

func newBarProgress(w io.Writer) *barProgress {
	return &barProgress{w: w}
}

func (p *barProgress) Begin(min, max float64) {
	p.min, p.max = min, max
	if p.max <= p.min {
		p.max = p.min + 100
	}
	p.bar = progressbar.NewOptions(100,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

func (p *barProgress) Update(value float64, message string) {
	if p.bar == nil {
		return
	}
	if message != "" {
		p.bar.Describe(message)
	}
	percent := int((value - p.min) / (p.max - p.min) * 100)
	percent = max(0, min(percent, 100))
	_ = p.bar.Set(percent)
}

func (p *barProgress) End() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

// logProgress reports progress as sampled log lines for non-interactive
// output.
type logProgress struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	min     float64
	max     float64
}

func newLogProgress(logger *slog.Logger) *logProgress {
	return &logProgress{logger: logger, sampler: logging.NewProgressSampler(25)}
}

func (p *logProgress) Begin(min, max float64) {
	p.min, p.max = min, max
	p.sampler.Reset()
}

func (p *logProgress) Update(value float64, message string) {
	if p.max <= p.min {
		return
	}
	fraction := (value - p.min) / (p.max - p.min)
	if !p.sampler.ShouldLog(fraction) {
		return
	}
	p.logger.Info("analysis progress",
		logging.Float64("percent", fraction*100),
		logging.String("stage", message),
	)
}

func (p *logProgress) End() {}

// progressFor picks a bar when stderr is a terminal and sampled logs
// otherwise.
func progressFor(w io.Writer, logger *slog.Logger) lipsync.Progress {
	if file, ok := w.(*os.File); ok && isTerminal(file) {
		return newBarProgress(w)
	}
	return newLogProgress(logger)
}
