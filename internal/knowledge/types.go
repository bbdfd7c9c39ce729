package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Document is the metadata of an ingested document.
type Document struct {
	ID         uuid.UUID `json:"document_id"`
	OwnerID    string    `json:"owner_id"`
	Filename   string    `json:"filename"`
	IsPublic   bool      `json:"is_public"`
	ChunkCount int64     `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ChunkResult is one similarity-search hit over document chunks.
type ChunkResult struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Text       string
	Similarity float64
}

// Source resolves a chunk back to its parent document, for attribution in
// chat responses.
type Source struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Text       string    `json:"text"`
}

// IngestResult reports what an upload produced.
type IngestResult struct {
	Document   Document `json:"document"`
	ChunkCount int      `json:"chunk_count"`
}
