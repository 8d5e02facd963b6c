// Package backend defines the AI backend handle the agent-mediated fetchers
// consume, plus a reference implementation that shells out to an agent CLI.
// The core treats backends as opaque: one blocking call in, free-form text
// out.
package backend

import (
	"context"
	"time"
)

// RunOptions tunes a single backend invocation.
type RunOptions struct {
	// DontSaveSession keeps the invocation out of the backend's session
	// history; ticket fetches are throwaway queries.
	DontSaveSession bool
	// Timeout bounds the backend subprocess. Zero means the backend's own
	// default applies.
	Timeout time.Duration
}

// Backend is the AI backend handle. RunPrintQuiet blocks until the backend
// subprocess returns its full reply. An empty reply is valid at this layer;
// the fetcher treats it as a failure.
type Backend interface {
	// Name returns the backend's identifier (auggie, claude, cursor).
	Name() string
	// RunPrintQuiet sends one prompt and returns the raw text reply.
	RunPrintQuiet(ctx context.Context, prompt string, opts RunOptions) (string, error)
}
