package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/cmazet/ragchat/internal/provider"
)

// Window is one embedded slice of recent dialogue, ready for fusion.
type Window struct {
	Text      string
	Embedding []float64
}

// windowSplitter prefers paragraph, line, sentence-ending, then word
// boundaries when slicing the rendered dialogue.
func windowSplitter() textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(windowSize),
		textsplitter.WithChunkOverlap(windowOverlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}),
	)
}

// renderTurns formats turns as a dialogue transcript, oldest first. Turns
// arrive newest first from the store.
func renderTurns(turns []Turn) string {
	var lines []string
	for i := len(turns) - 1; i >= 0; i-- {
		lines = append(lines, "[User] "+turns[i].Question)
		lines = append(lines, "[Assistant] "+turns[i].Answer)
	}
	return strings.Join(lines, "\n")
}

// Windows fetches the user's recent turns, renders them as a transcript,
// splits the transcript into overlapping windows and embeds each one. The
// windows are always embedded fresh so they reflect the current history.
//
// A window whose embedding fails is skipped with a warning; windowing only
// fails as a whole when the store or the splitter does.
func (s *Store) Windows(ctx context.Context, embedder provider.Embedder, userID string) ([]Window, error) {
	turns, err := s.Recent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, nil
	}

	transcript := renderTurns(turns)
	parts, err := windowSplitter().SplitText(transcript)
	if err != nil {
		return nil, fmt.Errorf("split transcript: %w", err)
	}

	windows := make([]Window, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		embedding, err := embedder.Embed(ctx, part)
		if err != nil {
			// The cost cap is terminal for the request; anything else only
			// loses this one window.
			if errors.Is(err, provider.ErrBudgetExceeded) {
				return nil, err
			}
			s.logger.Warn("conversation window embedding failed, skipping",
				"user_id", userID, "error", err)
			continue
		}
		windows = append(windows, Window{Text: part, Embedding: embedding})
	}
	return windows, nil
}
