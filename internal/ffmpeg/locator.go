// Package ffmpeg locates the ffmpeg executable and runs it as a
// supervised child process whose stdout is the relay's byte source.
package ffmpeg

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// fallbackLocations are conventional install paths checked when ffmpeg
// is neither configured explicitly nor present on PATH.
var fallbackLocations = []string{
	"/usr/local/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
	"/usr/bin/ffmpeg",
	`C:\ffmpeg\bin\ffmpeg.exe`,
	`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
}

// Locator resolves the ffmpeg executable path once per process and
// caches the result.
type Locator struct {
	log      *slog.Logger
	override string

	once sync.Once
	path string
}

// NewLocator creates a Locator. A non-empty override short-circuits
// discovery. If log is nil, slog.Default() is used.
func NewLocator(override string, log *slog.Logger) *Locator {
	if log == nil {
		log = slog.Default()
	}
	return &Locator{
		log:      log.With("component", "ffmpeg-locator"),
		override: override,
	}
}

// Path returns the resolved ffmpeg executable path. Resolution order:
// the configured override, the FFMPEG_PATH environment variable, PATH
// lookup, then conventional install locations. When nothing matches,
// "ffmpeg" is returned so that the spawn attempt itself reports the
// failure.
func (l *Locator) Path() string {
	l.once.Do(func() {
		l.path = l.find()
	})
	return l.path
}

func (l *Locator) find() string {
	if l.override != "" {
		l.log.Info("using configured ffmpeg path", "path", l.override)
		return l.override
	}

	if env := os.Getenv("FFMPEG_PATH"); env != "" {
		if _, err := os.Stat(env); err == nil {
			l.log.Info("using ffmpeg from FFMPEG_PATH", "path", env)
			return env
		}
		l.log.Warn("FFMPEG_PATH does not exist, ignoring", "path", env)
	}

	if path, err := exec.LookPath("ffmpeg"); err == nil {
		l.log.Info("using ffmpeg from PATH", "path", path)
		return path
	}

	for _, candidate := range fallbackLocations {
		if _, err := os.Stat(candidate); err == nil {
			l.log.Info("found ffmpeg", "path", candidate)
			return candidate
		}
	}

	l.log.Warn("ffmpeg not found, falling back to bare command name")
	return "ffmpeg"
}

// Available reports whether the resolved executable runs at all, by
// invoking it with -version.
func (l *Locator) Available() bool {
	path := l.Path()
	err := exec.Command(path, "-version").Run()
	if err != nil {
		l.log.Warn("ffmpeg availability check failed", "path", filepath.Clean(path), "error", err)
	}
	return err == nil
}
