package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"sygus/internal/sexpr"
)

// DefaultCommand starts z3 reading SMT-LIB2 from stdin.
var DefaultCommand = []string{"z3", "-in", "-smt2"}

// Solver is one exclusive SMT-LIB2 session. Exec sends a single command
// and returns the solver's response to it. Implementations are not safe
// for concurrent use.
type Solver interface {
	Exec(ctx context.Context, cmd string) (*sexpr.Node, error)
	Close() error
}

// ErrClosed is returned by Exec after the session ended.
var ErrClosed = errors.New("solver session closed")

// lockedBuffer collects stderr while the process runs.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type response struct {
	node *sexpr.Node
	err  error
}

// ProcessSolver talks to an SMT solver subprocess over stdin/stdout.
type ProcessSolver struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *lockedBuffer
	out    chan response
	done   chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	broken error
	closed bool
}

// StartProcess launches the solver given by argv.
func StartProcess(argv []string, logger *zap.Logger) (*ProcessSolver, error) {
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("solver stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("solver stdout: %w", err)
	}
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start solver %q: %w", argv[0], err)
	}
	logger.Debug("solver started", zap.Strings("argv", argv), zap.Int("pid", cmd.Process.Pid))

	p := &ProcessSolver{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		out:    make(chan response),
		done:   make(chan struct{}),
		logger: logger,
	}
	go p.readLoop(stdout)
	return p, nil
}

func (p *ProcessSolver) readLoop(stdout io.Reader) {
	rd := sexpr.NewReader(stdout)
	for {
		n, err := rd.Next()
		select {
		case p.out <- response{node: n, err: err}:
		case <-p.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Exec writes cmd and waits for one response. If ctx ends first the
// process is killed, since the response stream can no longer be matched
// to commands.
func (p *ProcessSolver) Exec(ctx context.Context, cmd string) (*sexpr.Node, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.broken != nil {
		p.mu.Unlock()
		return nil, p.broken
	}
	p.mu.Unlock()

	if _, err := io.WriteString(p.stdin, cmd+"\n"); err != nil {
		return nil, p.fail(fmt.Errorf("write to solver: %w", err))
	}
	select {
	case r := <-p.out:
		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				return nil, p.fail(fmt.Errorf("solver exited: %s", p.stderrText()))
			}
			return nil, p.fail(fmt.Errorf("read from solver: %w", r.err))
		}
		return r.node, nil
	case <-ctx.Done():
		_ = p.fail(fmt.Errorf("solver abandoned: %w", ctx.Err()))
		_ = p.cmd.Process.Kill()
		return nil, ctx.Err()
	}
}

func (p *ProcessSolver) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broken == nil {
		p.broken = err
	}
	return p.broken
}

func (p *ProcessSolver) stderrText() string {
	if text := p.stderr.String(); text != "" {
		return text
	}
	return "no diagnostics"
}

// Close asks the solver to exit and reaps the process.
func (p *ProcessSolver) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	_, _ = io.WriteString(p.stdin, "(exit)\n")
	_ = p.stdin.Close()
	close(p.done)

	waited := make(chan error, 1)
	go func() { waited <- p.cmd.Wait() }()
	select {
	case err := <-waited:
		p.logger.Debug("solver stopped", zap.Error(err))
		return nil
	case <-time.After(2 * time.Second):
		_ = p.cmd.Process.Kill()
		<-waited
		p.logger.Warn("solver killed after exit timeout")
		return nil
	}
}
