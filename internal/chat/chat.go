// Package chat orchestrates one question/answer exchange: embed the
// question, retrieve document and conversation context concurrently, fuse
// the two into one ranked context set, prompt the model, and record the
// turn. This is the composition root of the retrieval pipeline; the
// algorithmic pieces live in the fusion, knowledge and conversation
// packages.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/cmazet/ragchat/internal/knowledge"
	"github.com/cmazet/ragchat/internal/provider"
)

// DefaultTopK is the fused context size when none is configured.
const DefaultTopK = 5

// ChunkDetail describes one fused context entry in the response payload.
type ChunkDetail struct {
	ContentPreview     string  `json:"content_preview"`
	SimilarityScore    float64 `json:"similarity_score"`
	OriginalSimilarity float64 `json:"original_similarity"`
	Type               string  `json:"type"`
	ChunkID            string  `json:"chunk_id,omitempty"`
	DocumentID         string  `json:"document_id,omitempty"`
}

// Answer is the full result of one exchange.
type Answer struct {
	Answer             string                `json:"answer"`
	TurnID             uuid.UUID             `json:"turn_id"`
	ChunksUsed         int                   `json:"chunks_used"`
	Chunks             []ChunkDetail         `json:"chunks"`
	Sources            []knowledge.Source    `json:"sources"`
	DocumentChunks     int                   `json:"document_chunks"`
	ConversationChunks int                   `json:"conversation_chunks"`
	QuestionType       string                `json:"question_type"`
	BudgetStatus       provider.BudgetStatus `json:"budget_status"`
	Elapsed            time.Duration         `json:"-"`
}
