package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mouthsync/internal/config"
	"mouthsync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckInputs(t *testing.T) {
	dir := t.TempDir()
	sound := filepath.Join(dir, "line.wav")
	if err := os.WriteFile(sound, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	results := CheckInputs(sound, "")
	if len(results) != 1 || !results[0].Passed {
		t.Fatalf("expected sound file to pass, got %+v", results)
	}

	results = CheckInputs(sound, filepath.Join(dir, "missing.txt"))
	if len(results) != 2 || results[1].Passed {
		t.Fatalf("expected missing dialog to fail, got %+v", results)
	}
	if !strings.Contains(Summary(results), "Dialog file") {
		t.Fatalf("summary should name the dialog file: %q", Summary(results))
	}

	results = CheckInputs("", "")
	if results[0].Passed || results[0].Detail != "not set" {
		t.Fatalf("expected unset sound file to fail, got %+v", results[0])
	}

	results = CheckInputs(dir, "")
	if results[0].Passed {
		t.Fatal("expected directory to fail the sound file check")
	}
}

func TestCheckAnalyzer(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAnalyzer(testsupport.AnalyzerStub{}))

	result := CheckAnalyzer(context.Background(), cfg.Rhubarb.ExecutablePath)
	if !result.Passed {
		t.Fatalf("expected analyzer stub to pass, got %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "1.13.0") {
		t.Fatalf("expected version in detail, got %q", result.Detail)
	}
	info, err := os.Stat(cfg.Rhubarb.ExecutablePath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("expected execute bit to be fixed, mode %o", info.Mode().Perm())
	}

	if result := CheckAnalyzer(context.Background(), ""); result.Passed {
		t.Fatal("expected unset analyzer to fail")
	}
	if result := CheckAnalyzer(context.Background(), filepath.Join(t.TempDir(), "rhubarb")); result.Passed {
		t.Fatal("expected missing analyzer to fail")
	}
}

func TestCheckRecognizer(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAnalyzer(testsupport.AnalyzerStub{}))
	binary := cfg.Rhubarb.ExecutablePath

	if result := CheckRecognizer(binary, config.RecognizerPhonetic); !result.Passed {
		t.Fatalf("phonetic needs no resources, got %s", result.Detail)
	}
	if result := CheckRecognizer(binary, config.RecognizerPocketSphinx); result.Passed {
		t.Fatal("expected pocketSphinx without res/sphinx to fail")
	}
	if err := os.MkdirAll(filepath.Join(filepath.Dir(binary), "res", "sphinx"), 0o755); err != nil {
		t.Fatal(err)
	}
	if result := CheckRecognizer(binary, config.RecognizerPocketSphinx); !result.Passed {
		t.Fatalf("expected pocketSphinx with resources to pass, got %s", result.Detail)
	}
	if result := CheckRecognizer(binary, "whisper"); result.Passed {
		t.Fatal("expected unknown recognizer to fail")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAnalyzer(testsupport.AnalyzerStub{}))
	cfg.Rhubarb.Recognizer = config.RecognizerPhonetic
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %s", Summary(results))
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Rhubarb.ExecutablePath = filepath.Join(t.TempDir(), "missing-rhubarb")

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected analyzer and recognizer statuses, got %d", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("expected missing analyzer to be unavailable")
	}
}

func TestNotificationStatus(t *testing.T) {
	cfg := config.Default()
	if got := NotificationStatus(&cfg); got.Detail != "Disabled" {
		t.Fatalf("expected disabled, got %q", got.Detail)
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/x"
	cfg.Notifications.Desktop = true
	cfg.Notifications.OnFinish = true
	if got := NotificationStatus(&cfg); got.Detail != "ntfy + desktop (finish, cancel)" {
		t.Fatalf("unexpected detail %q", got.Detail)
	}
}
