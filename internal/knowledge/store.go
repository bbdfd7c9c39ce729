package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/cmazet/ragchat/internal/log"
	"github.com/cmazet/ragchat/internal/postgres"
	"github.com/cmazet/ragchat/internal/provider"
)

// Querier defines the database operations the store needs. Interfaces are
// defined by the consumer; *postgres.Queries satisfies this.
type Querier interface {
	InsertDocument(ctx context.Context, arg postgres.InsertDocumentParams) error
	GetDocument(ctx context.Context, id pgtype.UUID) (postgres.Document, error)
	ListDocumentsByOwner(ctx context.Context, ownerID string) ([]postgres.DocumentWithChunkCount, error)
	CountDocumentsByOwner(ctx context.Context, ownerID string) (int64, error)
	DeleteDocument(ctx context.Context, id pgtype.UUID) (int64, error)
	InsertChunk(ctx context.Context, arg postgres.InsertChunkParams) error
	SearchChunks(ctx context.Context, arg postgres.SearchChunksParams) ([]postgres.SearchChunksRow, error)
	GetChunkSources(ctx context.Context, chunkIDs []pgtype.UUID) ([]postgres.ChunkSourceRow, error)
}

// Store manages documents and their embedded chunks.
//
// Store is safe for concurrent use; all state lives in the database.
type Store struct {
	querier      Querier
	logger       log.Logger
	maxDocuments int
}

// StoreOption configures optional Store behavior.
type StoreOption func(*Store)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithMaxDocuments overrides the per-user upload cap. Negative disables it.
func WithMaxDocuments(n int) StoreOption {
	return func(s *Store) { s.maxDocuments = n }
}

// NewStore creates a knowledge store backed by querier.
func NewStore(querier Querier, opts ...StoreOption) *Store {
	s := &Store{
		querier:      querier,
		logger:       log.NewNop(),
		maxDocuments: DefaultMaxDocuments,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// chunkSplitter prefers paragraph, then line, then word boundaries.
func chunkSplitter() textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)
}

// Ingest extracts text from an uploaded file, splits it into chunks, embeds
// each chunk and persists document plus chunks.
//
// A document becomes public only when the uploader both requested it and is
// privileged; everyone else gets a private document regardless of the
// request. The per-user cap is checked before any provider call and does not
// apply to privileged uploaders.
func (s *Store) Ingest(ctx context.Context, embedder provider.Embedder, ownerID, filename string, data []byte, requestPublic, privileged bool) (IngestResult, error) {
	if s.maxDocuments >= 0 && !privileged {
		count, err := s.querier.CountDocumentsByOwner(ctx, ownerID)
		if err != nil {
			return IngestResult{}, fmt.Errorf("%w: count documents: %v", ErrStore, err)
		}
		if count >= int64(s.maxDocuments) {
			return IngestResult{}, fmt.Errorf("%w: %d of %d used", ErrDocumentLimit, count, s.maxDocuments)
		}
	}

	text, err := ExtractText(filename, data)
	if err != nil {
		return IngestResult{}, err
	}
	if strings.TrimSpace(text) == "" {
		return IngestResult{}, ErrEmptyDocument
	}

	parts, err := chunkSplitter().SplitText(text)
	if err != nil {
		return IngestResult{}, fmt.Errorf("split document: %w", err)
	}

	isPublic := requestPublic && privileged
	docID := uuid.New()
	now := time.Now().UTC()

	err = s.querier.InsertDocument(ctx, postgres.InsertDocumentParams{
		ID:         uuidToPgUUID(docID),
		OwnerID:    ownerID,
		Filename:   filename,
		StorageRef: filename,
		IsPublic:   isPublic,
		UploadedAt: pgtype.Timestamptz{Time: now, Valid: true},
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("%w: insert document: %v", ErrStore, err)
	}

	inserted := 0
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		embedding, err := embedder.Embed(ctx, part)
		if err != nil {
			s.cleanup(ctx, docID)
			return IngestResult{}, fmt.Errorf("embed chunk: %w", err)
		}
		err = s.querier.InsertChunk(ctx, postgres.InsertChunkParams{
			ChunkID:    uuidToPgUUID(uuid.New()),
			DocumentID: uuidToPgUUID(docID),
			OwnerID:    ownerID,
			ChunkText:  part,
			Embedding:  pgvector.NewVector(toFloat32(embedding)),
			CreatedAt:  pgtype.Timestamptz{Time: now, Valid: true},
		})
		if err != nil {
			s.cleanup(ctx, docID)
			return IngestResult{}, fmt.Errorf("%w: insert chunk: %v", ErrStore, err)
		}
		inserted++
	}
	if inserted == 0 {
		s.cleanup(ctx, docID)
		return IngestResult{}, ErrEmptyDocument
	}

	s.logger.Info("document ingested",
		"document_id", docID, "owner_id", ownerID,
		"filename", filename, "chunks", inserted, "public", isPublic)

	return IngestResult{
		Document: Document{
			ID:         docID,
			OwnerID:    ownerID,
			Filename:   filename,
			IsPublic:   isPublic,
			ChunkCount: int64(inserted),
			UploadedAt: now,
		},
		ChunkCount: inserted,
	}, nil
}

// cleanup removes a half-ingested document. Best effort.
func (s *Store) cleanup(ctx context.Context, docID uuid.UUID) {
	if _, err := s.querier.DeleteDocument(ctx, uuidToPgUUID(docID)); err != nil {
		s.logger.Warn("cleanup of partial document failed", "document_id", docID, "error", err)
	}
}

// Search returns the chunks most similar to queryEmbedding that the
// requester may see: their own chunks, plus public ones when includePublic
// is set.
func (s *Store) Search(ctx context.Context, queryEmbedding []float64, requesterID string, includePublic bool, limit int) ([]ChunkResult, error) {
	rows, err := s.querier.SearchChunks(ctx, postgres.SearchChunksParams{
		QueryEmbedding: pgvector.NewVector(toFloat32(queryEmbedding)),
		RequesterID:    requesterID,
		IncludePublic:  includePublic,
		ResultLimit:    int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search chunks: %v", ErrStore, err)
	}

	results := make([]ChunkResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, ChunkResult{
			ChunkID:    pgUUIDToUUID(r.ChunkID),
			DocumentID: pgUUIDToUUID(r.DocumentID),
			Text:       r.ChunkText,
			Similarity: r.Similarity,
		})
	}
	return results, nil
}

// List returns the user's documents, newest first.
func (s *Store) List(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := s.querier.ListDocumentsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", ErrStore, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, Document{
			ID:         pgUUIDToUUID(r.ID),
			OwnerID:    r.OwnerID,
			Filename:   r.Filename,
			IsPublic:   r.IsPublic,
			ChunkCount: r.ChunkCount,
			UploadedAt: r.UploadedAt.Time,
		})
	}
	return docs, nil
}

// Delete removes a document and its chunks. Only the owner, or a privileged
// requester, may delete.
func (s *Store) Delete(ctx context.Context, docID uuid.UUID, requesterID string, privileged bool) error {
	doc, err := s.querier.GetDocument(ctx, uuidToPgUUID(docID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: get document: %v", ErrStore, err)
	}
	if doc.OwnerID != requesterID && !privileged {
		return ErrNotOwner
	}

	deleted, err := s.querier.DeleteDocument(ctx, uuidToPgUUID(docID))
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", ErrStore, err)
	}
	if deleted == 0 {
		return ErrDocumentNotFound
	}

	s.logger.Info("document deleted", "document_id", docID, "requester_id", requesterID)
	return nil
}

// Sources resolves chunk IDs to their parent documents.
func (s *Store) Sources(ctx context.Context, chunkIDs []uuid.UUID) ([]Source, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	ids := make([]pgtype.UUID, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = uuidToPgUUID(id)
	}

	rows, err := s.querier.GetChunkSources(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk sources: %v", ErrStore, err)
	}

	sources := make([]Source, 0, len(rows))
	for _, r := range rows {
		sources = append(sources, Source{
			ChunkID:    pgUUIDToUUID(r.ChunkID),
			DocumentID: pgUUIDToUUID(r.DocumentID),
			Filename:   r.Filename,
			Text:       r.ChunkText,
		})
	}
	return sources, nil
}

// toFloat32 narrows an embedding for pgvector storage.
func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// uuidToPgUUID converts uuid.UUID to pgtype.UUID.
func uuidToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgUUIDToUUID converts pgtype.UUID to uuid.UUID.
func pgUUIDToUUID(pgUUID pgtype.UUID) uuid.UUID {
	if !pgUUID.Valid {
		return uuid.Nil
	}
	return pgUUID.Bytes
}
