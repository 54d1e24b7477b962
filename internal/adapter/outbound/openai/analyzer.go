package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"documine/internal/port/outbound"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// DefaultAnalysisModel is used when no model is configured.
const DefaultAnalysisModel = "gpt-4o-mini"

// maxAnalysisInputChars truncates very large documents before analysis.
// Extraction targets the document's identity and key fields, which live in
// the opening pages; sending megabytes of tail content only burns tokens.
const maxAnalysisInputChars = 48_000

// ErrAPIKeyNotSet is returned when no API key is configured.
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

const extractionPrompt = `You are an insurance document analyst. Examine the document below and return JSON with exactly these keys:
- "document_type": one of "policy", "quote", "binder", "endorsement", "certificate", "claim", "invoice", "other"
- "summary": two sentences describing the document
- "fields": an object of key insurance fields found in the document, such as policy_number, carrier, insured_name, effective_date, expiration_date, premium

Document:
%s`

// Analyzer extracts structured metadata from parsed documents.
type Analyzer struct {
	client openai.Client
	model  string
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(apiKey, model string) (*Analyzer, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultAnalysisModel
	}
	return &Analyzer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

var _ outbound.AnalysisBackend = (*Analyzer)(nil)

// extractionPayload is the model's expected JSON response.
type extractionPayload struct {
	DocumentType string            `json:"document_type"`
	Summary      string            `json:"summary"`
	Fields       map[string]string `json:"fields"`
}

// Extract asks the model for document type, summary, and key fields.
func (a *Analyzer) Extract(ctx context.Context, text string) (*outbound.ExtractionResult, error) {
	if len(text) > maxAnalysisInputChars {
		text = text[:maxAnalysisInputChars]
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(extractionPrompt, text)),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("no completion choices returned")
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	if payload.Fields == nil {
		payload.Fields = make(map[string]string)
	}
	return &outbound.ExtractionResult{
		DocumentType: payload.DocumentType,
		Summary:      payload.Summary,
		Fields:       payload.Fields,
	}, nil
}
