package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// response is a fully read HTTP response.
type response struct {
	Status    int
	Body      []byte
	RequestID string
}

// httpClient wraps http.Client with timeout.
type httpClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	return &httpClient{client: &http.Client{Timeout: timeout}}
}

// get performs a GET request.
func (c *httpClient) get(ctx context.Context, url string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return response{}, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, "")
}

// postJSON posts body as JSON with a fresh request id and checks the service
// echoes it back.
func (c *httpClient) postJSON(ctx context.Context, url string, body any) (response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return response{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	id := uuid.NewString()
	req.Header.Set(requestIDHeader, id)
	return c.do(req, id)
}

func (c *httpClient) do(req *http.Request, wantID string) (response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response body: %w", err)
	}
	out := response{Status: resp.StatusCode, Body: body, RequestID: resp.Header.Get(requestIDHeader)}
	if wantID != "" && out.RequestID != wantID {
		return out, fmt.Errorf("request id %q not echoed (got %q)", wantID, out.RequestID)
	}
	return out, nil
}
