package lipsync

import (
	"log/slog"
	"time"

	"mouthsync/internal/logging"
)

// Scene exposes the timing of the host scene.
type Scene interface {
	FPS() float64
	StartFrame() int
}

// PoseTarget is a rig whose selected bones are posed from a pose library.
type PoseTarget interface {
	SelectedCount() int
	ApplyPose(index int) error
	// KeySelected records location, rotation and scale for every selected
	// bone at frame and returns the number of keyframes written.
	KeySelected(frame int) (int, error)
}

// LayerTarget is a 2D rig whose mouth shapes are separate layers.
type LayerTarget interface {
	LayerCount() int
	SetLayerHidden(index int, hidden bool) error
	KeyLayerVisibility(index, frame int) error
}

// Progress is the host's progress indicator.
type Progress interface {
	Begin(min, max float64)
	Update(value float64, message string)
	End()
}

// Level is the severity of a message reported to the user.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Reporter surfaces messages to the user.
type Reporter interface {
	Report(level Level, message string)
}

// Timer is a recurring host timer.
type Timer interface {
	C() <-chan time.Time
	Stop()
}

// Timers registers recurring timers with the host.
type Timers interface {
	Add(interval time.Duration) Timer
}

// TickerTimers backs Timers with time.Ticker.
type TickerTimers struct{}

func (TickerTimers) Add(interval time.Duration) Timer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return tickerTimer{ticker: time.NewTicker(interval)}
}

type tickerTimer struct {
	ticker *time.Ticker
}

func (t tickerTimer) C() <-chan time.Time { return t.ticker.C }

func (t tickerTimer) Stop() { t.ticker.Stop() }

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) Begin(float64, float64) {}

func (NopProgress) Update(float64, string) {}

func (NopProgress) End() {}

// LogReporter reports messages through a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(level Level, message string) {
	logger := r.Logger
	if logger == nil {
		return
	}
	switch level {
	case LevelError:
		logging.ErrorWithContext(logger, message, "analyzer_report")
	case LevelWarning:
		logging.WarnWithContext(logger, message, "analyzer_report")
	case LevelDebug:
		logger.Debug(message)
	default:
		logger.Info(message)
	}
}
