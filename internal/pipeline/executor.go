package pipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// HTTPTransport dispatches descriptors over net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps an http.Client. A nil client gets sane defaults;
// per-call timeouts come from the pipeline, not the client.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &HTTPTransport{client: client}
}

// Execute performs one HTTP exchange. The response body is fully read so
// the descriptor can be retried without body state.
func (t *HTTPTransport) Execute(ctx context.Context, desc *Descriptor) (*Response, error) {
	var bodyReader io.Reader
	if len(desc.Body) > 0 {
		bodyReader = bytes.NewReader(desc.Body)
	}
	req, err := http.NewRequestWithContext(ctx, desc.Method, desc.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range desc.Headers {
		req.Header.Set(k, v)
	}
	if len(desc.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: res.StatusCode, Headers: res.Header, Body: payload}, nil
}
