package conversation

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cmazet/ragchat/internal/postgres"
)

// mockQuerier is an in-memory Querier keeping turns per user.
type mockQuerier struct {
	turns map[string][]postgres.Turn

	insertErr error
	deleteErr error
	recentErr error
	statsErr  error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{turns: make(map[string][]postgres.Turn)}
}

func (m *mockQuerier) InsertTurn(_ context.Context, arg postgres.InsertTurnParams) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.turns[arg.UserID] = append(m.turns[arg.UserID], postgres.Turn{
		TurnID:       arg.TurnID,
		UserID:       arg.UserID,
		QuestionText: arg.QuestionText,
		AnswerText:   arg.AnswerText,
		ChunkIDs:     arg.ChunkIDs,
		CreatedAt:    arg.CreatedAt,
	})
	return nil
}

func (m *mockQuerier) RecentTurns(_ context.Context, userID string, limit int32) ([]postgres.Turn, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	turns := append([]postgres.Turn(nil), m.turns[userID]...)
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Time.After(turns[j].CreatedAt.Time)
	})
	if int32(len(turns)) > limit {
		turns = turns[:limit]
	}
	return turns, nil
}

func (m *mockQuerier) DeleteTurnsBeyond(_ context.Context, userID string, keepLast int32) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	turns := m.turns[userID]
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Time.After(turns[j].CreatedAt.Time)
	})
	if int32(len(turns)) <= keepLast {
		return 0, nil
	}
	deleted := int64(len(turns)) - int64(keepLast)
	m.turns[userID] = turns[:keepLast]
	return deleted, nil
}

func (m *mockQuerier) TurnStats(_ context.Context, userID string) (postgres.TurnStatsRow, error) {
	if m.statsErr != nil {
		return postgres.TurnStatsRow{}, m.statsErr
	}
	turns := m.turns[userID]
	row := postgres.TurnStatsRow{TotalTurns: int64(len(turns))}
	for _, t := range turns {
		if !row.FirstTurn.Valid || t.CreatedAt.Time.Before(row.FirstTurn.Time) {
			row.FirstTurn = t.CreatedAt
		}
		if !row.LastTurn.Valid || t.CreatedAt.Time.After(row.LastTurn.Time) {
			row.LastTurn = t.CreatedAt
		}
	}
	return row, nil
}

func TestRecord(t *testing.T) {
	q := newMockQuerier()
	store := NewStore(q)

	id, err := store.Record(context.Background(), "alice", "What is AI?", "A field of computer science.", []string{"c1"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == uuid.Nil {
		t.Error("Record returned nil turn ID")
	}

	turns := q.turns["alice"]
	if len(turns) != 1 {
		t.Fatalf("stored turns = %d, want 1", len(turns))
	}
	if turns[0].QuestionText != "What is AI?" {
		t.Errorf("QuestionText = %q", turns[0].QuestionText)
	}
	if len(turns[0].ChunkIDs) != 1 || turns[0].ChunkIDs[0] != "c1" {
		t.Errorf("ChunkIDs = %v, want [c1]", turns[0].ChunkIDs)
	}
}

func TestRecord_InsertFailure(t *testing.T) {
	q := newMockQuerier()
	q.insertErr = errors.New("connection refused")
	store := NewStore(q)

	_, err := store.Record(context.Background(), "alice", "q", "a", nil)
	if !errors.Is(err, ErrStore) {
		t.Fatalf("got %v, want ErrStore", err)
	}
}

func TestRecord_EvictionFailureIsNotSurfaced(t *testing.T) {
	q := newMockQuerier()
	q.deleteErr = errors.New("deadlock detected")
	store := NewStore(q)

	if _, err := store.Record(context.Background(), "alice", "q", "a", nil); err != nil {
		t.Fatalf("Record surfaced eviction error: %v", err)
	}
}

func TestRecord_EvictsBeyondKeepLast(t *testing.T) {
	q := newMockQuerier()
	store := NewStore(q)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	// Pre-load 5 turns with distinct timestamps, then record a 6th.
	for i := range 5 {
		q.turns["alice"] = append(q.turns["alice"], postgres.Turn{
			TurnID:       uuidToPgUUID(uuid.New()),
			UserID:       "alice",
			QuestionText: "question",
			AnswerText:   "answer",
			CreatedAt:    pgtype.Timestamptz{Time: base.Add(time.Duration(i) * time.Minute), Valid: true},
		})
	}
	oldest := q.turns["alice"][0].TurnID

	if _, err := store.Record(ctx, "alice", "sixth question", "sixth answer", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	remaining := q.turns["alice"]
	if len(remaining) != 5 {
		t.Fatalf("turns after eviction = %d, want 5", len(remaining))
	}
	for _, turn := range remaining {
		if turn.TurnID == oldest {
			t.Error("oldest turn survived eviction")
		}
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	q := newMockQuerier()
	store := NewStore(q)

	ctx := context.Background()
	for _, question := range []string{"first", "second", "third"} {
		if _, err := store.Record(ctx, "alice", question, "answer", nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	turns, err := store.Recent(ctx, "alice")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len = %d, want 3", len(turns))
	}
	if turns[0].Question != "third" || turns[2].Question != "first" {
		t.Errorf("order = [%s %s %s], want newest first", turns[0].Question, turns[1].Question, turns[2].Question)
	}
}

func TestRecent_StoreFailure(t *testing.T) {
	q := newMockQuerier()
	q.recentErr = errors.New("connection refused")
	store := NewStore(q)

	if _, err := store.Recent(context.Background(), "alice"); !errors.Is(err, ErrStore) {
		t.Fatalf("got %v, want ErrStore", err)
	}
}

func TestStats(t *testing.T) {
	q := newMockQuerier()
	store := NewStore(q)

	ctx := context.Background()
	for range 3 {
		if _, err := store.Record(ctx, "alice", "q", "a", nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	stats, err := store.Stats(ctx, "alice")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalTurns != 3 {
		t.Errorf("TotalTurns = %d, want 3", stats.TotalTurns)
	}
	if !stats.FirstTurn.Before(stats.LastTurn) {
		t.Errorf("FirstTurn %v not before LastTurn %v", stats.FirstTurn, stats.LastTurn)
	}
}

func TestStats_EmptyHistory(t *testing.T) {
	store := NewStore(newMockQuerier())

	stats, err := store.Stats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalTurns != 0 {
		t.Errorf("TotalTurns = %d, want 0", stats.TotalTurns)
	}
}

func TestHistory_Limit(t *testing.T) {
	q := newMockQuerier()
	store := NewStore(q, WithKeepLast(10))

	ctx := context.Background()
	for range 6 {
		if _, err := store.Record(ctx, "alice", "q", "a", nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	turns, err := store.History(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 {
		t.Errorf("len = %d, want 2", len(turns))
	}
}
