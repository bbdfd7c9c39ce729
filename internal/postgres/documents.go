package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// Document is a row of the documents table.
type Document struct {
	ID         pgtype.UUID
	OwnerID    string
	Filename   string
	StorageRef string
	IsPublic   bool
	UploadedAt pgtype.Timestamptz
}

// DocumentWithChunkCount is a documents row joined with its chunk count.
type DocumentWithChunkCount struct {
	Document
	ChunkCount int64
}

// InsertDocumentParams are the parameters for InsertDocument.
type InsertDocumentParams struct {
	ID         pgtype.UUID
	OwnerID    string
	Filename   string
	StorageRef string
	IsPublic   bool
	UploadedAt pgtype.Timestamptz
}

const insertDocument = `
INSERT INTO documents (document_id, owner_id, filename, storage_ref, is_public, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

// InsertDocument creates a document row. Visibility (is_public) is fixed at
// creation and never updated afterwards.
func (q *Queries) InsertDocument(ctx context.Context, arg InsertDocumentParams) error {
	_, err := q.db.Exec(ctx, insertDocument,
		arg.ID, arg.OwnerID, arg.Filename, arg.StorageRef, arg.IsPublic, arg.UploadedAt)
	return err
}

const getDocument = `
SELECT document_id, owner_id, filename, storage_ref, is_public, uploaded_at
FROM documents
WHERE document_id = $1
`

// GetDocument fetches a single document row by ID.
// Returns pgx.ErrNoRows when the document does not exist.
func (q *Queries) GetDocument(ctx context.Context, id pgtype.UUID) (Document, error) {
	var d Document
	err := q.db.QueryRow(ctx, getDocument, id).Scan(
		&d.ID, &d.OwnerID, &d.Filename, &d.StorageRef, &d.IsPublic, &d.UploadedAt)
	return d, err
}

const listDocumentsByOwner = `
SELECT d.document_id, d.owner_id, d.filename, d.storage_ref, d.is_public, d.uploaded_at,
       (SELECT COUNT(*) FROM document_chunks c WHERE c.document_id = d.document_id) AS chunk_count
FROM documents d
WHERE d.owner_id = $1
ORDER BY d.uploaded_at DESC
`

// ListDocumentsByOwner lists a user's documents, newest first, with per
// document chunk counts.
func (q *Queries) ListDocumentsByOwner(ctx context.Context, ownerID string) ([]DocumentWithChunkCount, error) {
	rows, err := q.db.Query(ctx, listDocumentsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentWithChunkCount
	for rows.Next() {
		var d DocumentWithChunkCount
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.StorageRef,
			&d.IsPublic, &d.UploadedAt, &d.ChunkCount); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

const countDocumentsByOwner = `
SELECT COUNT(*) FROM documents WHERE owner_id = $1
`

// CountDocumentsByOwner counts a user's documents (for the upload cap).
func (q *Queries) CountDocumentsByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countDocumentsByOwner, ownerID).Scan(&count)
	return count, err
}

const deleteDocument = `
DELETE FROM documents WHERE document_id = $1
`

// DeleteDocument removes a document; its chunks go with it via
// ON DELETE CASCADE. Returns the number of documents deleted (0 or 1).
func (q *Queries) DeleteDocument(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteDocument, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertChunkParams are the parameters for InsertChunk.
type InsertChunkParams struct {
	ChunkID    pgtype.UUID
	DocumentID pgtype.UUID
	OwnerID    string
	ChunkText  string
	Embedding  pgvector.Vector
	CreatedAt  pgtype.Timestamptz
}

const insertChunk = `
INSERT INTO document_chunks (chunk_id, document_id, owner_id, chunk_text, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

// InsertChunk stores one embedded document chunk. Chunks are immutable: text
// and embedding are never updated after insertion.
func (q *Queries) InsertChunk(ctx context.Context, arg InsertChunkParams) error {
	_, err := q.db.Exec(ctx, insertChunk,
		arg.ChunkID, arg.DocumentID, arg.OwnerID, arg.ChunkText, arg.Embedding, arg.CreatedAt)
	return err
}

// SearchChunksParams are the parameters for SearchChunks.
type SearchChunksParams struct {
	QueryEmbedding pgvector.Vector
	RequesterID    string
	IncludePublic  bool
	ResultLimit    int32
}

// SearchChunksRow is one vector search hit.
type SearchChunksRow struct {
	ChunkID    pgtype.UUID
	ChunkText  string
	Similarity float64
	DocumentID pgtype.UUID
}

const searchChunksWithPublic = `
SELECT c.chunk_id, c.chunk_text,
       1 - (c.embedding <=> $1) AS similarity,
       c.document_id
FROM document_chunks c
WHERE c.owner_id = $2
   OR c.document_id IN (SELECT document_id FROM documents WHERE is_public = true)
ORDER BY similarity DESC
LIMIT $3
`

const searchChunksOwnedOnly = `
SELECT c.chunk_id, c.chunk_text,
       1 - (c.embedding <=> $1) AS similarity,
       c.document_id
FROM document_chunks c
WHERE c.owner_id = $2
ORDER BY similarity DESC
LIMIT $3
`

// SearchChunks performs cosine similarity search over document chunks,
// restricted to chunks the requester may see: their own, plus chunks of
// public documents when IncludePublic is set. Results are ordered by
// descending similarity in [0, 1].
func (q *Queries) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	query := searchChunksOwnedOnly
	if arg.IncludePublic {
		query = searchChunksWithPublic
	}

	rows, err := q.db.Query(ctx, query, arg.QueryEmbedding, arg.RequesterID, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchChunksRow
	for rows.Next() {
		var r SearchChunksRow
		if err := rows.Scan(&r.ChunkID, &r.ChunkText, &r.Similarity, &r.DocumentID); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ChunkSourceRow describes the document a chunk came from, for source
// attribution in chat responses.
type ChunkSourceRow struct {
	ChunkID    pgtype.UUID
	ChunkText  string
	Filename   string
	DocumentID pgtype.UUID
	OwnerID    string
}

const getChunkSources = `
SELECT c.chunk_id, c.chunk_text, d.filename, d.document_id, d.owner_id
FROM document_chunks c
JOIN documents d ON c.document_id = d.document_id
WHERE c.chunk_id = ANY($1)
`

// GetChunkSources resolves chunk IDs to their parent document metadata.
func (q *Queries) GetChunkSources(ctx context.Context, chunkIDs []pgtype.UUID) ([]ChunkSourceRow, error) {
	rows, err := q.db.Query(ctx, getChunkSources, chunkIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []ChunkSourceRow
	for rows.Next() {
		var s ChunkSourceRow
		if err := rows.Scan(&s.ChunkID, &s.ChunkText, &s.Filename, &s.DocumentID, &s.OwnerID); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
