package ffmpeg

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestLocatorOverrideWins(t *testing.T) {
	t.Setenv("FFMPEG_PATH", "/somewhere/else")

	l := NewLocator("/opt/custom/ffmpeg", nil)
	if got := l.Path(); got != "/opt/custom/ffmpeg" {
		t.Errorf("Path: got %q, want override", got)
	}
}

func TestLocatorEnvVar(t *testing.T) {
	fake := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FFMPEG_PATH", fake)

	l := NewLocator("", nil)
	if got := l.Path(); got != fake {
		t.Errorf("Path: got %q, want %q", got, fake)
	}
}

func TestLocatorPathIsCached(t *testing.T) {
	l := NewLocator("/opt/custom/ffmpeg", nil)
	first := l.Path()
	l.override = "/changed/after/first/call"
	if got := l.Path(); got != first {
		t.Errorf("Path should be cached: got %q, want %q", got, first)
	}
}

func TestAvailable(t *testing.T) {
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no true binary on this system")
	}

	if !NewLocator(truePath, nil).Available() {
		t.Error("Available should be true for an executable that exits 0")
	}
	if NewLocator("/nonexistent/ffmpeg", nil).Available() {
		t.Error("Available should be false for a missing executable")
	}
}
