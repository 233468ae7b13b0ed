package encoder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/streamcap/agent/internal/logging"
)

var log = logging.L("encoder")

// ErrBinaryNotFound is returned when no ffmpeg binary is reachable on PATH.
var ErrBinaryNotFound = errors.New("ffmpeg binary not found")

// FindBinary locates the ffmpeg executable.
func FindBinary() (string, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", ErrBinaryNotFound
	}
	return path, nil
}

// Version probes the binary and returns the first line of its version
// banner. Used by the doctor command.
func Version(binary string) (string, error) {
	out, err := exec.Command(binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("probing %s: %w", binary, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	if !strings.Contains(line, "ffmpeg version") {
		return "", fmt.Errorf("unexpected version banner from %s", binary)
	}
	return strings.TrimSpace(line), nil
}

// Process wraps one running encoder. The stdin write-half is owned here and
// guarded by a mutex; the stream pump is the only writer, the supervisor
// closes it on shutdown. Stderr is drained continuously so the encoder can
// never block on a full pipe.
type Process struct {
	kind string
	cmd  *exec.Cmd

	mu    sync.Mutex
	stdin io.WriteCloser

	closeInOnce sync.Once
	killOnce    sync.Once
	waitOnce    sync.Once
	waitErr     error
}

// StartProcess spawns the encoder described by inv. The returned Process is
// running with its stderr drain attached.
func StartProcess(binary string, inv *Invocation) (*Process, error) {
	cmd := exec.Command(binary, inv.Args()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe for %s encoder: %w", inv.Kind(), err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe for %s encoder: %w", inv.Kind(), err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning %s encoder: %w", inv.Kind(), err)
	}

	p := &Process{
		kind:  inv.Kind(),
		cmd:   cmd,
		stdin: stdin,
	}
	log.Info("encoder started", "kind", p.kind, "pid", cmd.Process.Pid)

	go p.drainStderr(stderr)
	return p, nil
}

// drainStderr forwards encoder diagnostics line-by-line into the log sink.
func (p *Process) drainStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		log.Debug("encoder stderr", "kind", p.kind, "line", sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.Warn("encoder stderr drain ended", "kind", p.kind, "error", err)
	}
}

// WriteInput writes the whole buffer to the encoder's stdin. The pump is the
// only writer; the mutex guards the handle, not the write itself, so a write
// stalled on a wedged encoder never blocks CloseInput.
func (p *Process) WriteInput(b []byte) error {
	p.mu.Lock()
	stdin := p.stdin
	p.mu.Unlock()
	if stdin == nil {
		return errors.New("encoder input already closed")
	}
	_, err := stdin.Write(b)
	return err
}

// CloseInput shuts the write-half of stdin, signaling end-of-stream so the
// encoder flushes and finalizes its last segment. Closing also fails any
// write currently stalled on a full pipe, which is what frees the pump when
// the encoder has stopped reading. Idempotent.
func (p *Process) CloseInput() error {
	var err error
	p.closeInOnce.Do(func() {
		p.mu.Lock()
		stdin := p.stdin
		p.stdin = nil
		p.mu.Unlock()
		if stdin != nil {
			err = stdin.Close()
		}
	})
	return err
}

// Kill forcibly terminates the encoder and reaps it. Callers should
// CloseInput first; killing with stdin open risks a truncated final segment.
func (p *Process) Kill() error {
	var killErr error
	p.killOnce.Do(func() {
		if err := p.cmd.Process.Kill(); err != nil {
			killErr = fmt.Errorf("killing %s encoder: %w", p.kind, err)
		}
		p.reap()
	})
	return killErr
}

// reap waits for the process once and records the exit error.
func (p *Process) reap() {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			log.Info("encoder exited cleanly", "kind", p.kind)
		case errors.As(err, &exitErr):
			// Expected after Kill; segment output up to CloseInput is intact.
			log.Info("encoder exited", "kind", p.kind, "state", exitErr.ProcessState.String())
		default:
			log.Warn("encoder wait failed", "kind", p.kind, "error", err)
			p.waitErr = err
		}
	})
}
