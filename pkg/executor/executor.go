// Package executor runs the privileged external commands (ip, iptables,
// ip netns, sysctl) that every other control-plane component issues,
// generalizing the original CNI plugin's runIP helper into a reusable,
// dry-run-aware executor.
//
// Commands are always passed as pre-tokenized argument slices, never as a
// shell string, so there is no quoting ambiguity to get wrong.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/DestinyObs/HNGi13-Stage4-vpcctl/pkg/vpcerr"
)

// Mode selects whether mutating commands actually run.
type Mode int

const (
	// ModeLive executes commands and observes real side effects.
	ModeLive Mode = iota
	// ModeDry traces mutating commands to the trace sink without running them.
	ModeDry
)

// DefaultTimeout bounds a single external command, matching spec §5's
// suggested 30-second default for link/filter operations.
const DefaultTimeout = 30 * time.Second

// Result captures the outcome of one executed (or traced) command.
type Result struct {
	Args   []string
	Stdout string
	Stderr string
}

// Executor runs tokenized external commands in live or dry mode.
type Executor struct {
	Mode    Mode
	Trace   io.Writer
	Timeout time.Duration
}

// New builds an Executor. trace defaults to os.Stdout when nil, matching
// spec §4.2's "trace sink (stdout by default)".
func New(mode Mode, trace io.Writer, timeout time.Duration) *Executor {
	if trace == nil {
		trace = os.Stdout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{Mode: mode, Trace: trace, Timeout: timeout}
}

// Run executes a mutating command. In ModeDry it only traces the tokens
// and returns a Result carrying just those tokens (no output) and no
// error: dry mode must cover every mutating call.
func (e *Executor) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if e.Mode == ModeDry {
		e.trace(name, args)
		return Result{Args: tokens(name, args)}, nil
	}
	return e.exec(ctx, name, args)
}

// Probe executes a read-only command unconditionally, even in ModeDry,
// since planning needs real existence checks regardless of dry-run.
func (e *Executor) Probe(ctx context.Context, name string, args ...string) (Result, error) {
	return e.exec(ctx, name, args)
}

func (e *Executor) exec(ctx context.Context, name string, args []string) (Result, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Args:   tokens(name, args),
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	if cctx.Err() == context.DeadlineExceeded {
		return res, fmt.Errorf("%s: %w", strings.Join(res.Args, " "), vpcerr.ErrTimeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, fmt.Errorf("%s: %s: %w", strings.Join(res.Args, " "), res.Stderr, vpcerr.ErrExec)
		}
		return res, fmt.Errorf("%s: %w", strings.Join(res.Args, " "), err)
	}
	return res, nil
}

// StartDetached launches a long-running command (the deploy-app workload
// listener), redirecting its combined output to logPath (creating the log
// file's directory if needed) and returning its pid without waiting for it
// to exit. In ModeDry it only traces the command and returns pid 0 without
// spawning anything, so callers that record the pid get a deterministic
// value.
func (e *Executor) StartDetached(_ context.Context, logPath, name string, args ...string) (int, error) {
	if e.Mode == ModeDry {
		e.trace(name, args)
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return 0, fmt.Errorf("create app log dir for %s: %w", logPath, err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open app log %s: %w", logPath, err)
	}

	cmd := exec.Command(name, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return 0, fmt.Errorf("%s: %w", strings.Join(tokens(name, args), " "), vpcerr.ErrExec)
	}

	go func() {
		_ = cmd.Wait()
		_ = logFile.Close()
	}()

	return cmd.Process.Pid, nil
}

func (e *Executor) trace(name string, args []string) {
	fmt.Fprintf(e.Trace, "[dry-run] %s\n", strings.Join(tokens(name, args), " "))
}

func tokens(name string, args []string) []string {
	out := make([]string, 0, len(args)+1)
	out = append(out, name)
	out = append(out, args...)
	return out
}
