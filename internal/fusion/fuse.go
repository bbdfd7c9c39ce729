package fusion

import "sort"

// Candidate sources.
const (
	SourceDocument     = "document"
	SourceConversation = "conversation"
)

// Source weights and conversation quota per question class.
const (
	conversationalDocWeight  = 0.8
	conversationalConvWeight = 1.2
	conversationalMinConv    = 2

	factualDocWeight  = 1.3
	factualConvWeight = 0.7
	factualMinConv    = 0
)

// DocumentCandidate is a document chunk already scored by the vector search.
type DocumentCandidate struct {
	ChunkID    string
	DocumentID string
	Text       string
	Similarity float64
}

// ConversationCandidate is a window over recent dialogue, scored against the
// query embedding at fusion time.
type ConversationCandidate struct {
	Text      string
	Embedding []float64
}

// ScoredCandidate is one entry of the fused context set. Similarity is the
// weighted score used for ranking; OriginalSimilarity is the raw score shown
// in the prompt attribution. ChunkID and DocumentID are set only for
// document-sourced entries.
type ScoredCandidate struct {
	Text               string
	Similarity         float64
	OriginalSimilarity float64
	WeightApplied      float64
	Source             string
	ChunkID            string
	DocumentID         string
}

// Fuse merges document and conversation candidates into a single ranked
// context set of at most topK entries.
//
// Personal and memory questions boost conversation windows and guarantee a
// minimum number of them; factual questions boost documents. Candidates are
// weighted, merged documents-first, stably sorted by weighted score, then
// admitted by a quota-aware walk over the sorted list.
func Fuse(queryEmbedding []float64, docs []DocumentCandidate, conv []ConversationCandidate, qt QuestionType, topK int) []ScoredCandidate {
	docWeight := factualDocWeight
	convWeight := factualConvWeight
	minConv := factualMinConv
	if qt.Conversational() {
		docWeight = conversationalDocWeight
		convWeight = conversationalConvWeight
		minConv = conversationalMinConv
	}

	all := make([]ScoredCandidate, 0, len(docs)+len(conv))
	for _, d := range docs {
		all = append(all, ScoredCandidate{
			Text:               d.Text,
			Similarity:         d.Similarity * docWeight,
			OriginalSimilarity: d.Similarity,
			WeightApplied:      docWeight,
			Source:             SourceDocument,
			ChunkID:            d.ChunkID,
			DocumentID:         d.DocumentID,
		})
	}
	for _, c := range conv {
		sim := CosineSimilarity(queryEmbedding, c.Embedding)
		all = append(all, ScoredCandidate{
			Text:               c.Text,
			Similarity:         sim * convWeight,
			OriginalSimilarity: sim,
			WeightApplied:      convWeight,
			Source:             SourceConversation,
		})
	}

	// Stable sort keeps the documents-first merge order on equal scores.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Similarity > all[j].Similarity
	})

	if topK < 0 {
		topK = 0
	}
	selected := make([]ScoredCandidate, 0, min(topK, len(all)))
	picked := make([]bool, len(all))
	docsSelected := 0
	convSelected := 0

	// Quota-aware walk: conversation candidates fill their quota first,
	// documents take up to topK-minConv slots outright, and any slot beyond
	// the unfilled conversation quota goes to whichever candidate ranks next.
	for i, c := range all {
		if len(selected) >= topK {
			break
		}
		reserved := minConv - convSelected
		free := topK - len(selected)

		admit := false
		switch {
		case c.Source == SourceConversation && convSelected < minConv:
			admit = true
			convSelected++
		case c.Source == SourceDocument && docsSelected < topK-minConv:
			admit = true
			docsSelected++
		case c.Source == SourceDocument && free > reserved:
			admit = true
			docsSelected++
		case c.Source == SourceConversation:
			admit = true
			convSelected++
		}
		if admit {
			selected = append(selected, c)
			picked[i] = true
		}
	}

	// The quota may reserve slots no conversation candidate can fill. Top up
	// from the remaining candidates in rank order.
	for i, c := range all {
		if len(selected) >= topK {
			break
		}
		if !picked[i] {
			selected = append(selected, c)
			picked[i] = true
		}
	}

	return selected
}
