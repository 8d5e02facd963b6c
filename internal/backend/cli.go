package backend

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/logger"
)

// DefaultCLITimeout bounds an agent subprocess when the caller passes no
// timeout of its own.
const DefaultCLITimeout = 60 * time.Second

// rate limit phrasing varies per vendor; these substrings cover the three
// supported CLIs.
var rateLimitMarkers = []string{
	"rate limit",
	"rate-limited",
	"too many requests",
	"429",
	"quota exceeded",
}

// CLIBackend runs an agent CLI binary as a subprocess, passing the prompt
// on argv and capturing stdout as the reply.
type CLIBackend struct {
	name   string
	binary string
	args   []string
	log    logger.Logger
}

// NewCLIBackend creates a backend for a named agent CLI. Extra args are
// inserted before the prompt.
func NewCLIBackend(name, binary string, args ...string) *CLIBackend {
	return &CLIBackend{
		name:   name,
		binary: binary,
		args:   args,
		log:    logger.New("backend." + name),
	}
}

// NewAuggieBackend creates the Auggie CLI backend.
func NewAuggieBackend() *CLIBackend {
	return NewCLIBackend("auggie", "auggie", "--print", "--quiet")
}

// NewClaudeBackend creates the Claude CLI backend.
func NewClaudeBackend() *CLIBackend {
	return NewCLIBackend("claude", "claude", "--print")
}

// NewCursorBackend creates the Cursor CLI backend.
func NewCursorBackend() *CLIBackend {
	return NewCLIBackend("cursor", "cursor-agent", "--print")
}

// Name returns the backend identifier.
func (b *CLIBackend) Name() string { return b.name }

// RunPrintQuiet runs the agent binary with the prompt and returns stdout.
// Deadline overruns surface as backend timeouts and never as partial output.
func (b *CLIBackend) RunPrintQuiet(ctx context.Context, prompt string, opts RunOptions) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCLITimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, b.args...)
	if opts.DontSaveSession {
		args = append(args, "--no-session")
	}
	args = append(args, prompt)

	cmd := exec.CommandContext(runCtx, b.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	b.log.Debug("agent subprocess finished",
		logger.Duration("elapsed", time.Since(start)),
		logger.Bool("failed", err != nil))

	if err != nil {
		// Caller cancellation outranks every other interpretation.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", ingoterrors.Newf(ingoterrors.KindBackendTimeout, ingoterrors.SeverityMedium,
				"%s timed out after %s", b.name, timeout)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return "", ingoterrors.Newf(ingoterrors.KindBackendNotInstalled, ingoterrors.SeverityHigh,
				"%s binary %q not found on PATH", b.name, b.binary).
				WithHint("install the agent CLI or configure a different backend")
		}
		if isRateLimited(stderr.String()) {
			return "", ingoterrors.Newf(ingoterrors.KindBackendRateLimit, ingoterrors.SeverityMedium,
				"%s reported a rate limit", b.name).WithCause(err)
		}
		return "", ingoterrors.Newf(ingoterrors.KindAgentFetch, ingoterrors.SeverityMedium,
			"%s exited with an error", b.name).
			WithCause(err).
			WithDetail("stderr", truncate(stderr.String(), 2048))
	}
	return stdout.String(), nil
}

func isRateLimited(stderr string) bool {
	lowered := strings.ToLower(stderr)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
