package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jonwraymond/datahub/observe"
	"github.com/jonwraymond/datahub/resilience"
)

// Isolator runs a request somewhere a misbehaving query cannot take the
// server down with it.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: query errors are returned as-is (in-process) or as *QueryError
//     (out of process). Isolation failures wrap ErrWorkerCrashed or
//     ErrWorkerTimeout. Cancellation of ctx returns ctx's error.
type Isolator interface {
	Run(ctx context.Context, req Request) ([]byte, error)
}

// Isolation modes accepted by configuration.
const (
	ModeSubprocess = "subprocess"
	ModeInProcess  = "inprocess"
)

// InProcess runs requests on a goroutine of the serving process. It bounds
// their running time and recovers panics but shares the process with them.
type InProcess struct {
	runner  *Runner
	timeout *resilience.Timeout
}

var _ Isolator = (*InProcess)(nil)

// NewInProcess creates an in-process isolator. A non-positive timeout uses
// resilience.DefaultTimeout.
func NewInProcess(runner *Runner, timeout time.Duration) *InProcess {
	return &InProcess{
		runner:  runner,
		timeout: resilience.NewTimeout(resilience.TimeoutConfig{Timeout: timeout}),
	}
}

// Run executes req under the timeout.
func (p *InProcess) Run(ctx context.Context, req Request) ([]byte, error) {
	var payload []byte
	err := p.timeout.Execute(ctx, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %s: panic: %v", ErrWorkerCrashed, requestName(req), r)
			}
		}()
		payload, err = p.runner.Execute(ctx, req)
		return err
	})
	if errors.Is(err, resilience.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s: %w", ErrWorkerTimeout, requestName(req), err)
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// ExitQueryError is the worker exit status for a failed query. Stdout then
// holds a JSON QueryError instead of a payload.
const ExitQueryError = 3

// maxStderr caps how much worker stderr is kept for diagnostics.
const maxStderr = 8 << 10

// SubprocessConfig configures the subprocess isolator.
type SubprocessConfig struct {
	// Command starts a worker, e.g. {"/usr/local/bin/datahub", "worker"}.
	Command []string

	// Env is the worker environment. Nil inherits the server's.
	Env []string

	// Timeout bounds each worker.
	// Default: resilience.DefaultTimeout
	Timeout time.Duration

	// Logger receives worker diagnostics. Nil discards them.
	Logger observe.Logger
}

// Subprocess runs every request in a fresh worker process: the request as
// JSON on stdin, the encoded result on stdout, diagnostics on stderr.
type Subprocess struct {
	cfg SubprocessConfig
}

var _ Isolator = (*Subprocess)(nil)

// NewSubprocess creates a subprocess isolator.
func NewSubprocess(cfg SubprocessConfig) (*Subprocess, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, ErrNoCommand
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = resilience.DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Subprocess{cfg: cfg}, nil
}

// Run starts a worker for req and waits for it. The worker is killed when
// ctx ends or the timeout passes.
func (s *Subprocess) Run(ctx context.Context, req Request) ([]byte, error) {
	in, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Env = s.cfg.Env
	cmd.Stdin = bytes.NewReader(in)
	var stdout bytes.Buffer
	stderr := &tailBuffer{max: maxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()
	log := s.cfg.Logger.WithQuery(observe.QueryMeta{Module: req.Module, Name: req.Query, RequestID: req.ID})

	if ctx.Err() != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		log.Warn(parent, "worker timed out", observe.F("timeout", s.cfg.Timeout.String()))
		return nil, fmt.Errorf("%w: %s after %s", ErrWorkerTimeout, requestName(req), s.cfg.Timeout)
	}

	if runErr == nil {
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("%w: %s: empty output", ErrWorkerCrashed, requestName(req))
		}
		return stdout.Bytes(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && exitErr.ExitCode() == ExitQueryError {
		var qe QueryError
		if err := json.Unmarshal(stdout.Bytes(), &qe); err == nil {
			return nil, &qe
		}
	}

	log.Error(parent, "worker crashed", observe.F("error", runErr), observe.F("stderr", stderr.String()))
	if tail := strings.TrimSpace(stderr.String()); tail != "" {
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrWorkerCrashed, requestName(req), runErr, tail)
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrWorkerCrashed, requestName(req), runErr)
}

func requestName(req Request) string {
	return observe.QueryMeta{Module: req.Module, Name: req.Query}.QueryID()
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
