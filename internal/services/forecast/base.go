package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Stooorage/internal/domain/models"
	xhttp "Stooorage/pkg/http"
)

// HTTPServiceBase is the shared client for model sidecars reached over HTTP.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

// NewHTTPServiceBase builds a JSON client rooted at baseURL.
func NewHTTPServiceBase(baseURL string, timeout time.Duration) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithRetries(2, 250*time.Millisecond)),
	}
}

// PostJSON posts payload to path under baseURL and decodes the JSON reply into dest.
// An unreachable or overloaded sidecar is reported as ErrUpstreamUnavailable.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("model service client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Body:   payload,
	}, dest)
	if err == nil {
		return nil
	}
	var se *xhttp.StatusError
	if errors.Is(err, xhttp.ErrTransport) || (errors.As(err, &se) && se.Temporary()) {
		return fmt.Errorf("post %s: %w: %w", path, models.ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("post %s: %w", path, err)
}
