// Package handlers executes the concrete platform API requests. Handlers do
// not normalize data; they return the raw decoded payload or a semantic
// error, and are consumed only by the direct-API fetcher.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

// DefaultTimeout bounds a single platform API request when the caller does
// not override it.
const DefaultTimeout = 30 * time.Second

// Options tunes a single handler invocation. A nil Client makes the handler
// construct a short-lived one; pooled callers inject a shared client and the
// per-request timeout still applies through the context deadline.
type Options struct {
	Timeout time.Duration
	Client  *http.Client
}

// Handler is the per-platform API request contract.
type Handler interface {
	// Platform returns the platform this handler serves.
	Platform() ticket.Platform
	// RequiredCredentials lists the canonical credential keys the handler
	// validates before issuing any request.
	RequiredCredentials() []string
	// Fetch performs the platform request for one ticket id and returns the
	// decoded payload. A missing ticket is KindPlatformNotFound; any other
	// non-success response is KindPlatformAPI.
	Fetch(ctx context.Context, id string, creds map[string]string, opts Options) (map[string]interface{}, error)
}

// validateCredentials checks the required keys up front so a half-configured
// platform fails before any network traffic.
func validateCredentials(platform string, creds map[string]string, required []string) error {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(creds[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return ingoterrors.NewCredentialValidation(platform,
			fmt.Sprintf("missing credential keys: %s", strings.Join(missing, ", ")))
	}
	return nil
}

func clientFor(opts Options) (*http.Client, time.Duration) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if opts.Client != nil {
		return opts.Client, timeout
	}
	return &http.Client{Timeout: timeout}, timeout
}

// doJSON runs the request under the per-call deadline and decodes the body.
// It hands back the status code and the decoded object; callers map status
// semantics. A non-JSON body on a success status is a platform API error.
func doJSON(ctx context.Context, req *http.Request, opts Options) (int, map[string]interface{}, error) {
	client, timeout := clientFor(opts)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.Do(req.WithContext(reqCtx))
	if err != nil {
		// Propagate cancellation unchanged; everything else is a transport
		// failure the caller wraps.
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if len(body) == 0 {
		return resp.StatusCode, map[string]interface{}{}, nil
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		// Error responses are often plain text; let the caller map the
		// status. A garbled success body is a real failure.
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp.StatusCode, nil, nil
		}
		return resp.StatusCode, nil, fmt.Errorf("decoding response body: %w", err)
	}
	return resp.StatusCode, decoded, nil
}

// restError maps a non-success REST status to the harmonized error kinds:
// 404 becomes the same not-found error the GraphQL handlers raise for a
// missing entity.
func restError(platform, id string, status int, body map[string]interface{}) error {
	if status == http.StatusNotFound {
		return ingoterrors.NewPlatformNotFound(platform, id)
	}
	message := fmt.Sprintf("HTTP %d", status)
	if body != nil {
		if m := ticket.StringAt(body, "message", ""); m != "" {
			message = fmt.Sprintf("HTTP %d: %s", status, m)
		}
	}
	return ingoterrors.NewPlatformAPI(platform, id, message).WithDetail("status_code", status)
}
