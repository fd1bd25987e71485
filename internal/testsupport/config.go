package testsupport

import (
	"path/filepath"
	"testing"

	"mouthsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Polling is tightened so driver tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Rhubarb.PollIntervalMS = 10
	cfgVal.Rhubarb.PollTimeoutMS = 50

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithMode sets the animation mode on the test config.
func WithMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Animation.Mode = mode
	}
}

// WithAnalyzer writes a stub analyzer script and points the config at it.
func WithAnalyzer(stub AnalyzerStub) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rhubarb.ExecutablePath = WriteAnalyzer(b.t, filepath.Join(b.baseDir, "bin"), stub)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
