// Package chunking splits parsed markdown into page-aware chunks sized for
// embedding.
package chunking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"documine/internal/domain/entity"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
)

// Chunking defaults, tuned for embedding model context sizes.
const (
	DefaultMaxTokens     = 512
	DefaultOverlapTokens = 64
)

// pageMarkerPattern matches the page separators the parsing service embeds
// in its markdown output.
var pageMarkerPattern = regexp.MustCompile(`(?m)^---\s*PAGE\s+(\d+)\s*---\s*$`)

// MarkdownChunker splits markdown into token-bounded chunks, tracking which
// pages each chunk spans. Splits prefer paragraph boundaries; an oversized
// paragraph is split mid-text with token overlap between the pieces.
type MarkdownChunker struct {
	encoding      *tiktoken.Tiktoken
	maxTokens     int
	overlapTokens int
}

// ChunkerOption configures a MarkdownChunker.
type ChunkerOption func(*MarkdownChunker)

// WithMaxTokens overrides the per-chunk token ceiling.
func WithMaxTokens(maxTokens int) ChunkerOption {
	return func(c *MarkdownChunker) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// WithOverlapTokens overrides the overlap between adjacent split pieces.
func WithOverlapTokens(overlap int) ChunkerOption {
	return func(c *MarkdownChunker) {
		if overlap >= 0 {
			c.overlapTokens = overlap
		}
	}
}

// NewMarkdownChunker creates a chunker backed by the cl100k_base encoding.
func NewMarkdownChunker(opts ...ChunkerOption) (*MarkdownChunker, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	c := &MarkdownChunker{
		encoding:      encoding,
		maxTokens:     DefaultMaxTokens,
		overlapTokens: DefaultOverlapTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// pageSection is a contiguous run of markdown belonging to one page.
type pageSection struct {
	page int
	text string
}

// Chunk splits the markdown into chunks. Page attribution comes from the
// inline markers; markdown before the first marker counts as page one.
func (c *MarkdownChunker) Chunk(documentID, jobID uuid.UUID, markdown string, _ []outbound.PageMarker) ([]*entity.Chunk, error) {
	sections := splitPages(markdown)

	var chunks []*entity.Chunk
	index := 0
	for _, section := range sections {
		for _, piece := range c.splitSection(section.text) {
			content := strings.TrimSpace(piece)
			if content == "" {
				continue
			}
			chunks = append(chunks, entity.NewChunk(
				documentID, jobID, index,
				section.page, section.page,
				content, c.countTokens(content),
			))
			index++
		}
	}
	return chunks, nil
}

// splitPages cuts markdown at page markers, dropping the marker lines.
func splitPages(markdown string) []pageSection {
	matches := pageMarkerPattern.FindAllStringSubmatchIndex(markdown, -1)
	if len(matches) == 0 {
		return []pageSection{{page: 1, text: markdown}}
	}

	var sections []pageSection
	if head := markdown[:matches[0][0]]; strings.TrimSpace(head) != "" {
		sections = append(sections, pageSection{page: 1, text: head})
	}

	for i, match := range matches {
		page, err := strconv.Atoi(markdown[match[2]:match[3]])
		if err != nil {
			page = len(sections) + 1
		}
		end := len(markdown)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		sections = append(sections, pageSection{page: page, text: markdown[match[1]:end]})
	}
	return sections
}

// splitSection packs paragraphs into token-bounded pieces.
func (c *MarkdownChunker) splitSection(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var pieces []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
			currentTokens = 0
		}
	}

	for _, paragraph := range paragraphs {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		tokens := c.countTokens(paragraph)

		if tokens > c.maxTokens {
			flush()
			pieces = append(pieces, c.splitOversized(paragraph)...)
			continue
		}
		if currentTokens+tokens > c.maxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
		currentTokens += tokens
	}
	flush()
	return pieces
}

// splitOversized cuts a single over-limit paragraph at token boundaries,
// overlapping adjacent pieces so no sentence loses its context entirely.
func (c *MarkdownChunker) splitOversized(text string) []string {
	tokens := c.encoding.Encode(text, nil, nil)

	step := c.maxTokens - c.overlapTokens
	if step <= 0 {
		step = c.maxTokens
	}

	var pieces []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		pieces = append(pieces, c.encoding.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return pieces
}

func (c *MarkdownChunker) countTokens(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}
