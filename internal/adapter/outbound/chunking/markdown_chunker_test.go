package chunking

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownChunker_PageAttribution(t *testing.T) {
	chunker, err := NewMarkdownChunker()
	require.NoError(t, err)

	markdown := "Intro before any marker.\n\n" +
		"--- PAGE 1 ---\n" +
		"Coverage summary for page one.\n\n" +
		"--- PAGE 2 ---\n" +
		"Exclusions listed on page two."

	chunks, err := chunker.Chunk(uuid.New(), uuid.New(), markdown, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 1, chunks[0].StartPage(), "text before the first marker is page one")
	assert.Equal(t, 1, chunks[1].StartPage())
	assert.Equal(t, 2, chunks[2].StartPage())
	assert.Equal(t, "Exclusions listed on page two.", chunks[2].Content())

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index())
		assert.NotContains(t, chunk.Content(), "--- PAGE", "marker lines are dropped")
		assert.Positive(t, chunk.TokenCount())
	}
}

func TestMarkdownChunker_NoMarkers(t *testing.T) {
	chunker, err := NewMarkdownChunker()
	require.NoError(t, err)

	chunks, err := chunker.Chunk(uuid.New(), uuid.New(), "A single page of text.", nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartPage())
	assert.Equal(t, 1, chunks[0].EndPage())
}

func TestMarkdownChunker_EmptyInput(t *testing.T) {
	chunker, err := NewMarkdownChunker()
	require.NoError(t, err)

	chunks, err := chunker.Chunk(uuid.New(), uuid.New(), "   \n\n  ", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMarkdownChunker_PacksParagraphsUnderLimit(t *testing.T) {
	chunker, err := NewMarkdownChunker(WithMaxTokens(50), WithOverlapTokens(5))
	require.NoError(t, err)

	paragraph := strings.Repeat("word ", 20)
	markdown := strings.TrimSpace(strings.Repeat(paragraph+"\n\n", 6))

	chunks, err := chunker.Chunk(uuid.New(), uuid.New(), markdown, nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount(), 50, "chunk exceeds token ceiling")
	}
}

func TestMarkdownChunker_SplitsOversizedParagraphWithOverlap(t *testing.T) {
	chunker, err := NewMarkdownChunker(WithMaxTokens(20), WithOverlapTokens(4))
	require.NoError(t, err)

	// One paragraph, no blank lines, far over the token ceiling.
	oversized := strings.TrimSpace(strings.Repeat("alpha beta gamma delta ", 30))

	chunks, err := chunker.Chunk(uuid.New(), uuid.New(), oversized, nil)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount(), 20)
	}

	// Adjacent pieces share text from the overlap window.
	first := chunks[0].Content()
	second := chunks[1].Content()
	tail := first[len(first)-10:]
	assert.Contains(t, second, strings.TrimSpace(tail))
}

func TestMarkdownChunker_Options(t *testing.T) {
	chunker, err := NewMarkdownChunker(WithMaxTokens(-1), WithOverlapTokens(-1))
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxTokens, chunker.maxTokens, "non-positive override is ignored")
	assert.Equal(t, DefaultOverlapTokens, chunker.overlapTokens)
}
