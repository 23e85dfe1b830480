// Package download moves scene archives from provider storage onto local
// disk.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-getter"

	"terrapipe/internal/services"
)

// Transport fetches a remote scene archive into a destination directory
// and returns the local path of the payload.
type Transport interface {
	Fetch(ctx context.Context, rawURL, destDir string) (string, error)
}

// GetterTransport downloads over the go-getter protocol pool (http, https,
// s3, gcs, file), which also transparently unpacks archive formats.
type GetterTransport struct {
	timeout time.Duration
	retries int
}

var _ Transport = (*GetterTransport)(nil)

// Option configures a GetterTransport.
type Option func(*GetterTransport)

// WithTimeout bounds a single fetch attempt.
func WithTimeout(d time.Duration) Option {
	return func(t *GetterTransport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithRetries sets how many times a failed fetch is retried.
func WithRetries(n int) Option {
	return func(t *GetterTransport) {
		if n >= 0 {
			t.retries = n
		}
	}
}

// NewTransport builds a transport with an hour-long default attempt
// timeout and no retries.
func NewTransport(opts ...Option) *GetterTransport {
	t := &GetterTransport{timeout: time.Hour}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fetch downloads rawURL under destDir, retrying transient failures. The
// destination directory is created first; a partial download from a failed
// attempt is removed before the next try.
func (t *GetterTransport) Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", services.Wrap(services.ErrValidation, "download", "fetch", "empty download url", nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	dst := filepath.Join(destDir, payloadName(rawURL))

	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if attempt > 0 {
			_ = os.RemoveAll(dst)
		}
		if lastErr = t.fetchOnce(ctx, rawURL, dst); lastErr == nil {
			return dst, nil
		}
	}
	return "", services.Wrap(services.ErrTransient, "download", "fetch", rawURL, lastErr)
}

func (t *GetterTransport) fetchOnce(ctx context.Context, rawURL, dst string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	client := &getter.Client{
		Ctx:  attemptCtx,
		Src:  rawURL,
		Dst:  dst,
		Mode: getter.ClientModeAny,
	}
	return client.Get()
}

// payloadName derives a local name from the URL path, falling back to a
// generic name for URLs without one.
func payloadName(rawURL string) string {
	trimmed := rawURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	base := filepath.Base(strings.TrimRight(trimmed, "/"))
	if base == "" || base == "." || base == "/" || strings.Contains(base, "://") {
		return "scene-download"
	}
	return base
}
