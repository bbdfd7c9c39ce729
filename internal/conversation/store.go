package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/cmazet/ragchat/internal/log"
	"github.com/cmazet/ragchat/internal/postgres"
)

// Querier defines the database operations the store needs. Interfaces are
// defined by the consumer; *postgres.Queries satisfies this.
type Querier interface {
	InsertTurn(ctx context.Context, arg postgres.InsertTurnParams) error
	RecentTurns(ctx context.Context, userID string, limit int32) ([]postgres.Turn, error)
	DeleteTurnsBeyond(ctx context.Context, userID string, keepLast int32) (int64, error)
	TurnStats(ctx context.Context, userID string) (postgres.TurnStatsRow, error)
}

// Turn is one question/answer exchange.
type Turn struct {
	ID        uuid.UUID
	Question  string
	Answer    string
	ChunkIDs  []string
	CreatedAt time.Time
}

// Stats summarizes a user's stored history.
type Stats struct {
	TotalTurns int64     `json:"total_turns"`
	FirstTurn  time.Time `json:"first_turn,omitzero"`
	LastTurn   time.Time `json:"last_turn,omitzero"`
}

// Store persists conversation turns and enforces per-user retention.
//
// Store is safe for concurrent use. Append-then-evict for the same user is
// serialized by a per-user mutex; the mutex is never held across provider
// calls, only around the two store operations.
type Store struct {
	querier  Querier
	logger   log.Logger
	keepLast int32

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// StoreOption configures optional Store behavior.
type StoreOption func(*Store)

// WithKeepLast overrides the retention limit. Zero or negative values keep
// the default.
func WithKeepLast(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.keepLast = int32(n)
		}
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a conversation store backed by querier.
func NewStore(querier Querier, opts ...StoreOption) *Store {
	s := &Store{
		querier:  querier,
		logger:   log.NewNop(),
		keepLast: DefaultKeepLast,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// userLock returns the mutex serializing append+evict for one user.
func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Record appends a turn and evicts the user's oldest turns beyond the
// retention limit. Eviction is housekeeping: its failure is logged, never
// returned.
func (s *Store) Record(ctx context.Context, userID, question, answer string, chunkIDs []string) (uuid.UUID, error) {
	turnID := uuid.New()

	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	err := s.querier.InsertTurn(ctx, postgres.InsertTurnParams{
		TurnID:       uuidToPgUUID(turnID),
		UserID:       userID,
		QuestionText: question,
		AnswerText:   answer,
		ChunkIDs:     chunkIDs,
		CreatedAt:    pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true},
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: insert turn: %v", ErrStore, err)
	}

	deleted, err := s.querier.DeleteTurnsBeyond(ctx, userID, s.keepLast)
	if err != nil {
		s.logger.Warn("turn eviction failed", "user_id", userID, "error", err)
	} else if deleted > 0 {
		s.logger.Debug("evicted old turns", "user_id", userID, "deleted", deleted)
	}

	return turnID, nil
}

// Recent returns the user's most recent turns, newest first, up to the
// retention limit.
func (s *Store) Recent(ctx context.Context, userID string) ([]Turn, error) {
	rows, err := s.querier.RecentTurns(ctx, userID, s.keepLast)
	if err != nil {
		return nil, fmt.Errorf("%w: recent turns: %v", ErrStore, err)
	}
	return toTurns(rows), nil
}

// History returns up to limit recent turns, newest first. A zero or negative
// limit falls back to the retention limit.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]Turn, error) {
	n := s.keepLast
	if limit > 0 {
		n = int32(limit)
	}
	rows, err := s.querier.RecentTurns(ctx, userID, n)
	if err != nil {
		return nil, fmt.Errorf("%w: history: %v", ErrStore, err)
	}
	return toTurns(rows), nil
}

func toTurns(rows []postgres.Turn) []Turn {
	turns := make([]Turn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, Turn{
			ID:        pgUUIDToUUID(r.TurnID),
			Question:  r.QuestionText,
			Answer:    r.AnswerText,
			ChunkIDs:  r.ChunkIDs,
			CreatedAt: r.CreatedAt.Time,
		})
	}
	return turns
}

// Stats returns the turn count and first/last timestamps for a user.
func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	row, err := s.querier.TurnStats(ctx, userID)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: stats: %v", ErrStore, err)
	}
	return Stats{
		TotalTurns: row.TotalTurns,
		FirstTurn:  row.FirstTurn.Time,
		LastTurn:   row.LastTurn.Time,
	}, nil
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
