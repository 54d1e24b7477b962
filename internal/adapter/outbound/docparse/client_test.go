package docparse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Parse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/parse", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "policy.pdf", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"markdown": "--- PAGE 1 ---\nCoverage summary.",
			"page_markers": [{"page_number": 1, "start_index": 0, "end_index": 32}],
			"page_count": 1,
			"processing_time_ms": 1200
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	result, err := client.Parse(context.Background(), "policy.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)

	assert.Contains(t, result.Markdown, "Coverage summary.")
	assert.Equal(t, 1, result.PageCount)
	require.Len(t, result.PageMarkers, 1)
	assert.Equal(t, 1, result.PageMarkers[0].PageNumber)
	assert.Equal(t, 0, result.PageMarkers[0].StartIndex)
	assert.Equal(t, 32, result.PageMarkers[0].EndIndex)
}

func TestClient_Parse_ErrorDetailPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": "file is password protected"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	_, err := client.Parse(context.Background(), "locked.pdf", []byte("%PDF-1.7"))
	require.Error(t, err)
	// The detail text feeds the classifier downstream.
	assert.Contains(t, err.Error(), "file is password protected")
	assert.Contains(t, err.Error(), "422")
}

func TestClient_Parse_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	_, err := client.Parse(context.Background(), "policy.pdf", []byte("%PDF-1.7"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestClient_Parse_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Parse(ctx, "policy.pdf", []byte("%PDF-1.7"))
	require.Error(t, err)
}
