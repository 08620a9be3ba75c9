// Package runner executes pipeline commands through the shell, streaming
// their output and stopping at the first failure.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// Mask replaces registered secrets in printed commands.
const Mask = "****"

// CommandError is returned when a command exits non-zero or cannot be started.
type CommandError struct {
	Command string
	Err     error

	// reason is Err's message with secrets masked
	reason string
}

func (e *CommandError) Error() string {
	reason := e.reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	return fmt.Sprintf("command failed: %s: %s", e.Command, reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode returns the child's exit status, or -1 if it never ran to
// completion.
func (e *CommandError) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Executor runs a single shell command line.
type Executor interface {
	Exec(ctx context.Context, command string, stdout, stderr io.Writer) error
}

// ShellExecutor runs commands with `<Shell> -c`. Children read from Stdin,
// or from the process's standard input when it is nil.
type ShellExecutor struct {
	Shell string
	Dir   string
	Env   []string
	Stdin io.Reader
}

// Exec implements Executor.
func (s ShellExecutor) Exec(ctx context.Context, command string, stdout, stderr io.Writer) error {
	shell := s.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	cmd.Stdin = s.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Runner prints and runs commands one at a time.
type Runner struct {
	exec    Executor
	stdout  io.Writer
	stderr  io.Writer
	dryRun  bool
	secrets []string
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor replaces the shell executor.
func WithExecutor(e Executor) Option {
	return func(r *Runner) { r.exec = e }
}

// WithOutput sets where command output and diagnostics are written.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithDryRun prints commands without running them.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

// WithSecrets registers values that are masked whenever a command is printed.
func WithSecrets(secrets ...string) Option {
	return func(r *Runner) { r.AddSecrets(secrets...) }
}

// New creates a Runner that executes through /bin/sh by default.
func New(opts ...Option) *Runner {
	r := &Runner{
		exec:   ShellExecutor{},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddSecrets registers more values to mask. Empty values are ignored.
func (r *Runner) AddSecrets(secrets ...string) {
	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
}

// DryRun reports whether commands are only printed.
func (r *Runner) DryRun() bool {
	return r.dryRun
}

// Stdout returns the writer used for progress output.
func (r *Runner) Stdout() io.Writer {
	return r.stdout
}

// Redact masks registered secrets in s.
func (r *Runner) Redact(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, Mask)
	}
	return s
}

// Run executes command and blocks until it exits.
func (r *Runner) Run(ctx context.Context, command string) error {
	shown := r.Redact(command)

	if r.dryRun {
		color.New(color.FgYellow).Fprintf(r.stdout, "[dry-run] %s\n", shown)
		return nil
	}

	color.New(color.FgCyan).Fprintf(r.stdout, "Running command: %s\n", shown)

	if err := r.exec.Exec(ctx, command, r.stdout, r.stderr); err != nil {
		reason := r.Redact(err.Error())
		color.New(color.FgRed, color.Bold).Fprintf(r.stderr, "Error executing command: %s\n%s\n", shown, reason)
		return &CommandError{Command: shown, Err: err, reason: reason}
	}
	return nil
}
