// Package git drives the local git executable that mirrors branches from a
// clone of the source repository to the destination remote.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/alnlarsen/labtohub/internal/debug"
)

// DefaultTimeout bounds each git invocation.
const DefaultTimeout = 10 * time.Second

// Mirror runs git in Dir and pushes to Remote.
type Mirror struct {
	Dir     string
	Remote  string
	Timeout time.Duration
}

// NewMirror returns a Mirror for the clone at dir.
func NewMirror(dir, remote string, timeout time.Duration) *Mirror {
	if remote == "" {
		remote = "origin"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Mirror{Dir: dir, Remote: remote, Timeout: timeout}
}

// CommandError is a failed or timed out git invocation.
type CommandError struct {
	Args     []string
	ExitCode int // -1 when the process did not exit normally
	TimedOut bool
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	cmd := "git " + strings.Join(e.Args, " ")
	if e.TimedOut {
		return cmd + ": timed out"
	}
	if e.Output != "" {
		return fmt.Sprintf("%s: exit status %d: %s", cmd, e.ExitCode, e.Output)
	}
	return fmt.Sprintf("%s: %v", cmd, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Validate checks that Dir exists and is inside a git work tree with Remote
// configured.
func (m *Mirror) Validate(ctx context.Context) error {
	info, err := os.Stat(m.Dir)
	if err != nil {
		return fmt.Errorf("mirror path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mirror path %s is not a directory", m.Dir)
	}
	if _, err := m.run(ctx, "rev-parse", "--git-dir"); err != nil {
		return fmt.Errorf("%s is not a git repository: %w", m.Dir, err)
	}
	if _, err := m.run(ctx, "remote", "get-url", m.Remote); err != nil {
		return fmt.Errorf("remote %q not configured in %s: %w", m.Remote, m.Dir, err)
	}
	return nil
}

// Checkout switches the work tree to branch.
func (m *Mirror) Checkout(ctx context.Context, branch string) error {
	_, err := m.run(ctx, "checkout", branch)
	return err
}

// Push pushes HEAD to branch on the remote.
func (m *Mirror) Push(ctx context.Context, branch string) error {
	_, err := m.run(ctx, "push", m.Remote, "HEAD:refs/heads/"+branch)
	return err
}

func (m *Mirror) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = m.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	debug.Logf("git %s (in %s)\n", strings.Join(args, " "), m.Dir)
	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	if err == nil {
		return output, nil
	}

	cerr := &CommandError{Args: args, ExitCode: -1, Output: output, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cerr.TimedOut = true
	}
	return "", cerr
}
