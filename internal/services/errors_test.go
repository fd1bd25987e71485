package services_test

import (
	"errors"
	"strings"
	"testing"

	"mouthsync/internal/history"
	"mouthsync/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "rhubarb", "launch", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"rhubarb", "launch", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToExternalTool(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	precondition := services.Wrap(services.ErrPrecondition, "driver", "start", "no bones selected", nil)
	if status := services.FailureStatus(precondition); status != history.StatusRejected {
		t.Fatalf("expected rejected for precondition error, got %s", status)
	}

	toolErr := services.Wrap(services.ErrExternalTool, "rhubarb", "poll", "failure reported", errors.New("io"))
	if status := services.FailureStatus(toolErr); status != history.StatusCancelled {
		t.Fatalf("expected cancelled for tool error, got %s", status)
	}

	if status := services.FailureStatus(nil); status != history.StatusCancelled {
		t.Fatalf("expected cancelled for nil error, got %s", status)
	}
}
