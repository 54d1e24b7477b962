// Package docparse calls the document parsing service, which converts PDFs
// and office formats into markdown with page markers.
package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"documine/internal/port/outbound"
)

// Client talks to the parsing service over HTTP. The service exposes a
// single multipart endpoint: POST /parse with the file under the "file"
// field.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a parsing client. The timeout bounds the full request,
// including the service's own processing time.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ outbound.ParsingBackend = (*Client)(nil)

// parseResponse is the service's wire format.
type parseResponse struct {
	Markdown         string       `json:"markdown"`
	PageMarkers      []pageMarker `json:"page_markers"`
	PageCount        int          `json:"page_count"`
	ProcessingTimeMS int64        `json:"processing_time_ms"`
}

type pageMarker struct {
	PageNumber int `json:"page_number"`
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// errorResponse carries a parse failure detail. The detail text feeds the
// error classifier, so it is passed through verbatim.
type errorResponse struct {
	Detail string `json:"detail"`
}

// Parse submits the document and returns its markdown rendition. Page
// markers in the markdown take the form "--- PAGE N ---".
func (c *Client) Parse(ctx context.Context, filename string, data []byte) (*outbound.ParseResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write multipart payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart form: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", &body)
	if err != nil {
		return nil, fmt.Errorf("build parse request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call parsing service: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, c.decodeError(response)
	}

	var parsed parseResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode parse response: %w", err)
	}

	markers := make([]outbound.PageMarker, len(parsed.PageMarkers))
	for i, marker := range parsed.PageMarkers {
		markers[i] = outbound.PageMarker{
			PageNumber: marker.PageNumber,
			StartIndex: marker.StartIndex,
			EndIndex:   marker.EndIndex,
		}
	}

	return &outbound.ParseResult{
		Markdown:    parsed.Markdown,
		PageMarkers: markers,
		PageCount:   parsed.PageCount,
	}, nil
}

func (c *Client) decodeError(response *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(response.Body, 4096))

	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
		return fmt.Errorf("parsing service returned status %d: %s", response.StatusCode, detail.Detail)
	}
	return fmt.Errorf("parsing service returned status %d: %s", response.StatusCode, strings.TrimSpace(string(raw)))
}
