package outbound

import "context"

// PageMarker records where a page begins and ends in parsed markdown.
type PageMarker struct {
	PageNumber int `json:"page_number"`
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// ParseResult is the output of the parsing backend: markdown with
// "--- PAGE X ---" markers plus their positions and the page count.
type ParseResult struct {
	Markdown    string       `json:"markdown"`
	PageMarkers []PageMarker `json:"page_markers"`
	PageCount   int          `json:"page_count"`
}

// ExtractionResult is the structured metadata produced by the analysis
// backend for a parsed document.
type ExtractionResult struct {
	DocumentType string            `json:"document_type"`
	Summary      string            `json:"summary"`
	Fields       map[string]string `json:"fields"`
}

// DocumentStorage defines the outbound port for the object store holding
// uploaded files.
type DocumentStorage interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}

// ParsingBackend defines the outbound port for the document-understanding
// service that converts raw bytes into paged markdown.
type ParsingBackend interface {
	Parse(ctx context.Context, filename string, data []byte) (*ParseResult, error)
}

// EmbeddingBackend defines the outbound port for the embedding service.
// Vectors are returned in input order, one per chunk.
type EmbeddingBackend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// AnalysisBackend defines the outbound port for the LLM extraction service.
type AnalysisBackend interface {
	Extract(ctx context.Context, text string) (*ExtractionResult, error)
}
