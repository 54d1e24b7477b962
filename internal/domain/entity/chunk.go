package entity

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a page-aware slice of a parsed document, with the embedding
// vector produced for it. Chunks belong to the attempt that produced them
// and are replaced wholesale when a job is retried.
type Chunk struct {
	id         uuid.UUID
	documentID uuid.UUID
	jobID      uuid.UUID
	index      int
	startPage  int
	endPage    int
	content    string
	tokenCount int
	embedding  []float32
	createdAt  time.Time
}

// NewChunk creates a new Chunk entity.
func NewChunk(documentID, jobID uuid.UUID, index, startPage, endPage int, content string, tokenCount int) *Chunk {
	return &Chunk{
		id:         uuid.New(),
		documentID: documentID,
		jobID:      jobID,
		index:      index,
		startPage:  startPage,
		endPage:    endPage,
		content:    content,
		tokenCount: tokenCount,
		createdAt:  time.Now(),
	}
}

// ID returns the chunk ID.
func (c *Chunk) ID() uuid.UUID {
	return c.id
}

// DocumentID returns the owning document's ID.
func (c *Chunk) DocumentID() uuid.UUID {
	return c.documentID
}

// JobID returns the producing job's ID.
func (c *Chunk) JobID() uuid.UUID {
	return c.jobID
}

// Index returns the chunk's position within the document.
func (c *Chunk) Index() int {
	return c.index
}

// StartPage returns the first source page covered by the chunk.
func (c *Chunk) StartPage() int {
	return c.startPage
}

// EndPage returns the last source page covered by the chunk.
func (c *Chunk) EndPage() int {
	return c.endPage
}

// Content returns the chunk text.
func (c *Chunk) Content() string {
	return c.content
}

// TokenCount returns the tokenizer count for the chunk text.
func (c *Chunk) TokenCount() int {
	return c.tokenCount
}

// Embedding returns the embedding vector, or nil before embedding.
func (c *Chunk) Embedding() []float32 {
	return c.embedding
}

// CreatedAt returns the creation timestamp.
func (c *Chunk) CreatedAt() time.Time {
	return c.createdAt
}

// SetEmbedding attaches the embedding vector produced for the chunk.
func (c *Chunk) SetEmbedding(vector []float32) {
	c.embedding = vector
}
