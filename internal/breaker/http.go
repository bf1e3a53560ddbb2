// v1
// internal/breaker/http.go
package breaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps a standard http.Client with circuit breaker behaviour.
// Transport errors and 5xx responses count as failures; any other response is
// handed back to the caller untouched.
type HTTPClient struct {
	Client *http.Client
	brk    *Breaker
}

// NewHTTPClient guards httpClient with brk. A nil client gets a 15s timeout.
func NewHTTPClient(brk *Breaker, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{Client: httpClient, brk: brk}
}

// Breaker exposes the underlying breaker.
func (h *HTTPClient) Breaker() *Breaker { return h.brk }

type serverStatusError struct {
	status int
}

func (e *serverStatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.status)
}

// Do sends the request. A 5xx response is still returned with a nil error so
// the caller can read the upstream message, unless that failure opened the
// breaker.
func (h *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if h.brk == nil {
		return h.Client.Do(req)
	}
	var resp *http.Response
	err := h.brk.Execute(req.Context(), func(ctx context.Context) error {
		r, err := h.Client.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		resp = r
		if r.StatusCode >= http.StatusInternalServerError {
			return &serverStatusError{status: r.StatusCode}
		}
		return nil
	})
	if err == nil {
		return resp, nil
	}
	var statusErr *serverStatusError
	if errors.As(err, &statusErr) && !errors.Is(err, ErrOpen) {
		return resp, nil
	}
	if resp != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}
	return nil, err
}
