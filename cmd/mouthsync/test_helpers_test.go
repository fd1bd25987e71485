package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"mouthsync/internal/config"
	"mouthsync/internal/testsupport"
)

const testBoneRig = `
[scene]
fps = 24.0

[mouth_shapes]
sound_file = "line.wav"
start_frame = 1

[mouth_shapes.shapes]
mouth_a = 1
mouth_b = 2

[[bones]]
name = "jaw"
selected = true

[[bones]]
name = "lip_upper"
selected = true
rotation_mode = "QUATERNION"

[[poses]]
name = "rest"
[[poses.bones]]
name = "jaw"
rotation_euler = [0.0, 0.0, 0.0]

[[poses]]
name = "open"
[[poses.bones]]
name = "jaw"
rotation_euler = [0.5, 0.0, 0.0]
[[poses.bones]]
name = "lip_upper"
location = [0.0, 0.1, 0.0]

[[poses]]
name = "closed"
[[poses.bones]]
name = "jaw"
rotation_euler = [0.1, 0.0, 0.0]
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	rigPath    string
	audioPath  string
	argsFile   string
}

func setupCLITestEnv(t *testing.T, stub testsupport.AnalyzerStub) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	if stub.ArgsFile == "" {
		stub.ArgsFile = filepath.Join(base, "args.txt")
	}
	cfg.Rhubarb.ExecutablePath = testsupport.WriteAnalyzer(t, filepath.Join(base, "bin"), stub)
	cfg.Rhubarb.Recognizer = config.RecognizerPhonetic
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	rigDir := filepath.Join(base, "scene")
	rigPath := filepath.Join(rigDir, "face.rig.toml")
	audioPath := filepath.Join(rigDir, "line.wav")
	testsupport.WriteFile(t, audioPath, 64)
	if err := os.WriteFile(rigPath, []byte(testBoneRig), 0o644); err != nil {
		t.Fatalf("write rig: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		rigPath:    rigPath,
		audioPath:  audioPath,
		argsFile:   stub.ArgsFile,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, context.Background(), append([]string{"--config", env.configPath}, args...))
}

func runCLI(t *testing.T, ctx context.Context, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}

// syncBuffer is a bytes.Buffer safe for a command writing in another goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
