package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Execute(t *testing.T) {
	var gotMethod, gotHeader string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Custom")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Echo", "yes")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "created"})
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	res, err := transport.Execute(context.Background(), &Descriptor{
		Method:  "POST",
		URL:     server.URL + "/api/things",
		Headers: map[string]string{"X-Custom": "value"},
		Body:    []byte(`{"name":"thing"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "value", gotHeader)
	assert.JSONEq(t, `{"name":"thing"}`, string(gotBody))
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, "yes", res.Headers.Get("X-Echo"))
	assert.JSONEq(t, `{"status":"created"}`, string(res.Body))
}

func TestHTTPTransport_DefaultsContentTypeForBodies(t *testing.T) {
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	_, err := transport.Execute(context.Background(), &Descriptor{
		Method: "POST",
		URL:    server.URL,
		Body:   []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
}

func TestHTTPTransport_RespectsExplicitContentType(t *testing.T) {
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	_, err := transport.Execute(context.Background(), &Descriptor{
		Method:  "POST",
		URL:     server.URL,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    []byte("raw"),
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", contentType)
}

func TestHTTPTransport_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := NewHTTPTransport(nil)
	_, err := transport.Execute(ctx, &Descriptor{Method: "GET", URL: server.URL})
	assert.Error(t, err)
}
