// Package pdf turns confirmation HTML into PDF bytes.  Rendering is
// delegated to an external HTML-to-PDF service; this process only ships
// markup and stores the result.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when no renderer endpoint is set.
// Confirmation generation is skipped, not failed, in that case.
var ErrNotConfigured = errors.New("pdf: renderer not configured")

// Renderer converts an HTML document into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

// HTTPRenderer posts HTML to a rendering service and reads back the PDF.
type HTTPRenderer struct {
	httpClient *http.Client
	url        string
}

// NewHTTPRenderer returns a renderer posting to the given endpoint.  An
// empty endpoint yields a renderer that reports ErrNotConfigured.
func NewHTTPRenderer(url string) *HTTPRenderer {
	return &HTTPRenderer{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		url:        url,
	}
}

// Render implements Renderer.
func (r *HTTPRenderer) Render(ctx context.Context, html []byte) ([]byte, error) {
	if r.url == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("pdf: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	req.Header.Set("Accept", "application/pdf")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdf: render request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pdf: renderer returned %d: %s", resp.StatusCode, detail)
	}
	return io.ReadAll(resp.Body)
}
