// Package testutil provides shared helpers for HTTP and snapshot
// tests.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TimurManjosov/konditional/internal/api"
	"github.com/TimurManjosov/konditional/internal/flags"
	"github.com/TimurManjosov/konditional/internal/store"
	"github.com/TimurManjosov/konditional/registry"
)

// TestAdminKey is the admin API key test servers accept.
const TestAdminKey = "test-admin-key"

// NewTestServer creates an API server over the shared flags namespace,
// a fresh registry, and an in-memory store.
func NewTestServer(t *testing.T) (*api.Server, *registry.Registry, *store.MemoryStore) {
	t.Helper()
	reg := registry.New(flags.Namespace.Name())
	memStore := store.NewMemoryStore()
	server := api.NewServer(api.Config{
		Namespace: flags.Namespace,
		Registry:  reg,
		Store:     memStore,
		AdminKey:  TestAdminKey,
	})
	return server, reg, memStore
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the request against the handler and returns the recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// AdminHeaders returns headers carrying the test admin key.
func AdminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + TestAdminKey}
}
