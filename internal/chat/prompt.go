package chat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cmazet/ragchat/internal/fusion"
)

// systemMessage steers the model toward the source priorities the fused
// context was built around.
const systemMessage = "You are a helpful assistant that prioritizes document information for factual questions and conversation history for personal questions."

// noContextText stands in for the context block when fusion produced nothing.
const noContextText = "No relevant context found in documents or conversation history."

const promptTemplate = `You are a helpful assistant with access to the user's document knowledge and conversation history.

CONTEXT INFORMATION:
%s

QUESTION: %s

IMPORTANT INSTRUCTIONS:
1. For factual questions (dates, numbers, technical information, document content), prioritize information from DOCUMENTS
2. For personal questions (name, preferences, previous conversations), use CONVERSATION HISTORY
3. If information conflicts, trust DOCUMENTS over conversation history for factual information
4. Be clear about your sources - mention if information comes from documents or previous conversations
5. If you're not sure, say so

ANSWER:`

// BuildPrompt renders the fused context and the question into the model
// prompt. Candidates appear in fused order with source attribution; no
// re-ranking happens here.
func BuildPrompt(question string, candidates []fusion.ScoredCandidate) string {
	context := noContextText
	if len(candidates) > 0 {
		excerpts := make([]string, len(candidates))
		for i, c := range candidates {
			label := "Document"
			if c.Source == fusion.SourceConversation {
				label = "Conversation History"
			}
			excerpts[i] = fmt.Sprintf("Context excerpt %d:\n[Source: %s, Relevance: %.3f (weight: %s)]\n%s",
				i+1, label, c.OriginalSimilarity,
				strconv.FormatFloat(c.WeightApplied, 'g', -1, 64), c.Text)
		}
		context = strings.Join(excerpts, "\n\n---\n\n")
	}
	return fmt.Sprintf(promptTemplate, context, question)
}
