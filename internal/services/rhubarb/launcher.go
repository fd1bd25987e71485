package rhubarb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Snapshot is the state of a process observed by one Poll call.
type Snapshot struct {
	// Exited reports whether the process has terminated.
	Exited bool
	// Diagnostics holds the complete stderr lines received since the previous poll.
	Diagnostics []string
	// Stdout is the full standard output, populated once Exited is true.
	Stdout []byte
	// ExitErr is the wait error, populated once Exited is true.
	ExitErr error
}

// Process is a running analyzer.
type Process interface {
	// Poll waits up to wait for the process to exit and never longer.
	Poll(wait time.Duration) Snapshot
	// Kill terminates the process if it is still alive and releases its pipes.
	// It is safe to call more than once.
	Kill() error
	Pid() int
}

// Launcher starts analyzer processes.
type Launcher interface {
	Launch(ctx context.Context, binary string, args []string) (Process, error)
}

// ExecLauncher starts real child processes via os/exec.
type ExecLauncher struct {
	// WaitDelay bounds how long pipe copying may outlive the process.
	WaitDelay time.Duration
}

// Launch starts binary with stdout buffered and stderr split into lines.
func (l ExecLauncher) Launch(ctx context.Context, binary string, args []string) (Process, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	proc := &execProcess{cmd: cmd, done: make(chan struct{})}
	cmd.Stdout = &proc.stdout
	waitDelay := l.WaitDelay
	if waitDelay <= 0 {
		waitDelay = 2 * time.Second
	}
	cmd.WaitDelay = waitDelay

	cmd.Stderr = &lineWriter{push: proc.pushLine}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}
	go func() {
		proc.waitErr = cmd.Wait()
		if w, ok := cmd.Stderr.(*lineWriter); ok {
			w.flush()
		}
		close(proc.done)
	}()
	return proc, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout lockedBuffer
	done   chan struct{}
	// waitErr is written before done is closed.
	waitErr error

	mu      sync.Mutex
	pending []string
}

func (p *execProcess) pushLine(line string) {
	p.mu.Lock()
	p.pending = append(p.pending, line)
	p.mu.Unlock()
}

func (p *execProcess) drain() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return nil
	}
	lines := p.pending
	p.pending = nil
	return lines
}

func (p *execProcess) Poll(wait time.Duration) Snapshot {
	exited := false
	if wait <= 0 {
		select {
		case <-p.done:
			exited = true
		default:
		}
	} else {
		timer := time.NewTimer(wait)
		select {
		case <-p.done:
			exited = true
		case <-timer.C:
		}
		timer.Stop()
	}

	snap := Snapshot{Exited: exited, Diagnostics: p.drain()}
	if exited {
		snap.Stdout = p.stdout.Bytes()
		snap.ExitErr = p.waitErr
	}
	return snap
}

func (p *execProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	var killErr error
	if p.cmd.Process != nil {
		// Negative pid signals the whole group so helpers spawned by the
		// analyzer do not keep the output pipes open.
		if err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				killErr = err
			}
		}
	}
	<-p.done
	return killErr
}

func (p *execProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// lineWriter splits stderr into complete lines. A trailing partial line is
// only emitted by flush once the process has exited.
type lineWriter struct {
	mu      sync.Mutex
	partial []byte
	push    func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.partial = append(w.partial, p...)
	for {
		idx := bytes.IndexByte(w.partial, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(w.partial[:idx]), "\r")
		w.partial = w.partial[idx+1:]
		w.push(line)
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.push(string(w.partial))
		w.partial = nil
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}
