package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cmazet/ragchat/internal/provider"
)

// mockEmbedder returns a fixed vector, with optional per-text failures.
type mockEmbedder struct {
	calls   []string
	failOn  map[string]error
	failAll error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	m.calls = append(m.calls, text)
	if m.failAll != nil {
		return nil, m.failAll
	}
	if err, ok := m.failOn[text]; ok {
		return nil, err
	}
	return []float64{0.1, 0.2, 0.3}, nil
}

func storeWithTurns(t *testing.T, questions ...string) *Store {
	t.Helper()
	q := newMockQuerier()
	store := NewStore(q)
	ctx := context.Background()
	for _, question := range questions {
		if _, err := store.Record(ctx, "alice", question, "the answer to "+question, nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	return store
}

func TestRenderTurns_ChronologicalTranscript(t *testing.T) {
	// Turns arrive newest first, as the store returns them.
	turns := []Turn{
		{Question: "second q", Answer: "second a"},
		{Question: "first q", Answer: "first a"},
	}

	got := renderTurns(turns)
	want := "[User] first q\n[Assistant] first a\n[User] second q\n[Assistant] second a"
	if got != want {
		t.Errorf("renderTurns:\ngot  %q\nwant %q", got, want)
	}
}

func TestWindows(t *testing.T) {
	store := storeWithTurns(t, "What is the capital of France?", "How many people live there?")
	embedder := &mockEmbedder{}

	windows, err := store.Windows(context.Background(), embedder, "alice")
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}
	if len(windows) == 0 {
		t.Fatal("no windows produced")
	}
	for _, w := range windows {
		if strings.TrimSpace(w.Text) == "" {
			t.Error("window with empty text")
		}
		if len(w.Embedding) == 0 {
			t.Error("window without embedding")
		}
	}
	if len(embedder.calls) != len(windows) {
		t.Errorf("embed calls = %d, windows = %d", len(embedder.calls), len(windows))
	}
}

func TestWindows_EmptyHistory(t *testing.T) {
	store := NewStore(newMockQuerier())
	embedder := &mockEmbedder{}

	windows, err := store.Windows(context.Background(), embedder, "nobody")
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}
	if windows != nil {
		t.Errorf("windows = %v, want nil", windows)
	}
	if len(embedder.calls) != 0 {
		t.Errorf("embedder called %d times for empty history", len(embedder.calls))
	}
}

func TestWindows_SkipsFailedEmbeddings(t *testing.T) {
	// Enough text to produce several windows.
	long := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)
	store := storeWithTurns(t, long)
	embedder := &mockEmbedder{}

	all, err := store.Windows(context.Background(), embedder, "alice")
	if err != nil {
		t.Fatalf("Windows: %v", err)
	}
	if len(all) < 2 {
		t.Fatalf("need at least 2 windows to test skipping, got %d", len(all))
	}

	// Fail the first window only; the rest must survive.
	failing := &mockEmbedder{failOn: map[string]error{all[0].Text: errors.New("boom")}}
	got, err := store.Windows(context.Background(), failing, "alice")
	if err != nil {
		t.Fatalf("Windows with one failure: %v", err)
	}
	if len(got) != len(all)-1 {
		t.Errorf("windows = %d, want %d", len(got), len(all)-1)
	}
}

func TestWindows_BudgetExhaustionIsTerminal(t *testing.T) {
	store := storeWithTurns(t, "What is AI?")
	embedder := &mockEmbedder{failAll: provider.ErrBudgetExceeded}

	_, err := store.Windows(context.Background(), embedder, "alice")
	if !errors.Is(err, provider.ErrBudgetExceeded) {
		t.Fatalf("got %v, want ErrBudgetExceeded", err)
	}
}

func TestWindows_StoreFailure(t *testing.T) {
	q := newMockQuerier()
	q.recentErr = errors.New("connection refused")
	store := NewStore(q)

	if _, err := store.Windows(context.Background(), &mockEmbedder{}, "alice"); !errors.Is(err, ErrStore) {
		t.Fatalf("got %v, want ErrStore", err)
	}
}
