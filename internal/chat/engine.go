package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cmazet/ragchat/internal/activity"
	"github.com/cmazet/ragchat/internal/conversation"
	"github.com/cmazet/ragchat/internal/fusion"
	"github.com/cmazet/ragchat/internal/knowledge"
	"github.com/cmazet/ragchat/internal/log"
	"github.com/cmazet/ragchat/internal/provider"
)

// DocumentSearcher is the slice of the knowledge store the engine uses.
type DocumentSearcher interface {
	Search(ctx context.Context, queryEmbedding []float64, requesterID string, includePublic bool, limit int) ([]knowledge.ChunkResult, error)
	Sources(ctx context.Context, chunkIDs []uuid.UUID) ([]knowledge.Source, error)
}

// ConversationMemory is the slice of the conversation store the engine uses.
type ConversationMemory interface {
	Windows(ctx context.Context, embedder provider.Embedder, userID string) ([]conversation.Window, error)
	Record(ctx context.Context, userID, question, answer string, chunkIDs []string) (uuid.UUID, error)
}

// ActivityRecorder records audit entries. Best effort.
type ActivityRecorder interface {
	Record(ctx context.Context, userID, activityType string, details any)
}

// Engine runs the retrieval-augmented answer pipeline.
type Engine struct {
	embedder  provider.Embedder
	generator provider.Generator
	documents DocumentSearcher
	memory    ConversationMemory
	activity  ActivityRecorder
	budget    *provider.Budget
	logger    log.Logger
	topK      int
}

// EngineOption configures optional Engine behavior.
type EngineOption func(*Engine)

// WithTopK sets the fused context size. Zero or negative keeps the default.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithActivity attaches an audit recorder.
func WithActivity(rec ActivityRecorder) EngineOption {
	return func(e *Engine) { e.activity = rec }
}

// WithBudget exposes budget status in answers.
func WithBudget(b *provider.Budget) EngineOption {
	return func(e *Engine) { e.budget = b }
}

// NewEngine wires the pipeline stages together.
func NewEngine(embedder provider.Embedder, generator provider.Generator, documents DocumentSearcher, memory ConversationMemory, opts ...EngineOption) *Engine {
	e := &Engine{
		embedder:  embedder,
		generator: generator,
		documents: documents,
		memory:    memory,
		logger:    log.NewNop(),
		topK:      DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ask answers one question for one user.
//
// The question is embedded once; document search and conversation windowing
// then run concurrently, since neither depends on the other. Their results
// are fused, rendered into a prompt and sent to the generator. The turn is
// recorded only after generation succeeds, so a cancelled or failed request
// leaves no partial state behind.
func (e *Engine) Ask(ctx context.Context, userID, question string, usePublicData bool) (*Answer, error) {
	start := time.Now()

	queryEmbedding, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	var (
		docResults []knowledge.ChunkResult
		windows    []conversation.Window
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docResults, err = e.documents.Search(gctx, queryEmbedding, userID, usePublicData, e.topK)
		if err != nil {
			return fmt.Errorf("search documents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		windows, err = e.memory.Windows(gctx, e.embedder, userID)
		if err != nil {
			return fmt.Errorf("conversation windows: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	qt := fusion.Classify(question)

	docCandidates := make([]fusion.DocumentCandidate, len(docResults))
	for i, r := range docResults {
		docCandidates[i] = fusion.DocumentCandidate{
			ChunkID:    r.ChunkID.String(),
			DocumentID: r.DocumentID.String(),
			Text:       r.Text,
			Similarity: r.Similarity,
		}
	}
	convCandidates := make([]fusion.ConversationCandidate, len(windows))
	for i, w := range windows {
		convCandidates[i] = fusion.ConversationCandidate{Text: w.Text, Embedding: w.Embedding}
	}

	fused := fusion.Fuse(queryEmbedding, docCandidates, convCandidates, qt, e.topK)

	e.logger.Debug("context fused",
		"user_id", userID,
		"personal", qt.Personal, "memory", qt.Memory,
		"documents", len(docCandidates), "windows", len(convCandidates),
		"selected", len(fused))

	prompt := BuildPrompt(question, fused)
	answerText, err := e.generator.Complete(ctx, systemMessage, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	// Only document chunks are referenced from the stored turn; conversation
	// windows are transient.
	var chunkUUIDs []uuid.UUID
	var chunkIDs []string
	details := make([]ChunkDetail, len(fused))
	docCount, convCount := 0, 0
	for i, c := range fused {
		details[i] = ChunkDetail{
			ContentPreview:     preview(c.Text),
			SimilarityScore:    c.Similarity,
			OriginalSimilarity: c.OriginalSimilarity,
			Type:               c.Source,
			ChunkID:            c.ChunkID,
			DocumentID:         c.DocumentID,
		}
		if c.Source == fusion.SourceDocument {
			docCount++
			if id, err := uuid.Parse(c.ChunkID); err == nil {
				chunkUUIDs = append(chunkUUIDs, id)
				chunkIDs = append(chunkIDs, c.ChunkID)
			}
		} else {
			convCount++
		}
	}

	var sources []knowledge.Source
	if len(chunkUUIDs) > 0 {
		sources, err = e.documents.Sources(ctx, chunkUUIDs)
		if err != nil {
			e.logger.Warn("source resolution failed", "user_id", userID, "error", err)
			sources = nil
		}
	}

	turnID, err := e.memory.Record(ctx, userID, question, answerText, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("record turn: %w", err)
	}

	questionType := "factual"
	if qt.Personal {
		questionType = "personal"
	}

	if e.activity != nil {
		e.activity.Record(ctx, userID, activity.TypeChat, map[string]any{
			"question_length":     len(question),
			"total_chunks_used":   len(fused),
			"document_chunks":     docCount,
			"conversation_chunks": convCount,
			"question_type":       questionType,
		})
	}

	return &Answer{
		Answer:             answerText,
		TurnID:             turnID,
		ChunksUsed:         len(fused),
		Chunks:             details,
		Sources:            sources,
		DocumentChunks:     docCount,
		ConversationChunks: convCount,
		QuestionType:       questionType,
		BudgetStatus:       e.budget.Status(),
		Elapsed:            time.Since(start),
	}, nil
}

// preview truncates chunk text for response payloads.
func preview(text string) string {
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}
