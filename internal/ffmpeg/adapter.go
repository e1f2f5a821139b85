package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync/atomic"
)

// progressLogBytes is how much new output accumulates between progress
// log lines.
const progressLogBytes = 1 << 20

// Sink receives chunks read from the decoder's stdout. Each Publish
// call carries exactly one read's worth of bytes.
type Sink interface {
	Publish(chunk []byte)
}

// Adapter supervises one ffmpeg child process and forwards its stdout
// to a Sink in fixed-size read chunks. The process is killed and reaped
// on every exit path, including cancellation.
type Adapter struct {
	log       *slog.Logger
	bin       string
	args      []string
	chunkSize int

	bytesRead atomic.Int64
	readCount atomic.Int64
}

// NewAdapter creates an Adapter that runs bin with args and reads
// stdout in chunkSize slices. If log is nil, slog.Default() is used.
func NewAdapter(bin string, args []string, chunkSize int, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		log:       log.With("component", "decoder"),
		bin:       bin,
		args:      args,
		chunkSize: chunkSize,
	}
}

// BytesRead returns the total bytes forwarded so far.
func (a *Adapter) BytesRead() int64 { return a.bytesRead.Load() }

// Run spawns the decoder and blocks until its output ends, a read
// fails, or ctx is cancelled. Cancellation kills the process; the
// deferred wait reaps it in all cases. A spawn failure is returned to
// the caller, which decides whether the relay keeps serving.
func (a *Adapter) Run(ctx context.Context, sink Sink) error {
	cmd := exec.CommandContext(ctx, a.bin, a.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("decoder stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("decoder stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		a.log.Error("failed to spawn decoder", "bin", a.bin, "error", err)
		return fmt.Errorf("spawn decoder: %w", err)
	}
	a.log.Info("decoder started", "bin", a.bin, "pid", cmd.Process.Pid)

	drained := make(chan struct{})
	defer func() {
		cmd.Process.Kill()
		// Wait closes the stderr pipe; let the drain finish reading
		// first so trailing diagnostics are not lost.
		<-drained
		cmd.Wait()
		a.log.Info("decoder reaped",
			"pid", cmd.Process.Pid,
			"bytes", a.bytesRead.Load(),
			"reads", a.readCount.Load(),
		)
	}()

	go func() {
		defer close(drained)
		a.drainDiagnostics(stderr)
	}()

	buf := make([]byte, a.chunkSize)
	var lastLogged int64
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			a.readCount.Add(1)
			total := a.bytesRead.Add(int64(n))
			if total-lastLogged >= progressLogBytes {
				a.log.Debug("decoder output flowing", "bytes", total)
				lastLogged = total
			}

			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sink.Publish(chunk)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				a.log.Info("decoder output ended", "bytes", a.bytesRead.Load())
				return nil
			}
			a.log.Error("decoder read error", "error", err)
			return fmt.Errorf("read decoder output: %w", err)
		}
	}
}

// drainDiagnostics forwards the decoder's stderr to the log line by
// line. The scanner's internal buffer bounds memory; the goroutine ends
// when the process closes stderr.
func (a *Adapter) drainDiagnostics(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		a.log.Debug("ffmpeg", "line", scanner.Text())
	}
}
