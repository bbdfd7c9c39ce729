package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Turn is a row of the chat_history table: one question/answer exchange.
type Turn struct {
	TurnID       pgtype.UUID
	UserID       string
	QuestionText string
	AnswerText   string
	ChunkIDs     []string
	CreatedAt    pgtype.Timestamptz
}

// InsertTurnParams are the parameters for InsertTurn.
type InsertTurnParams struct {
	TurnID       pgtype.UUID
	UserID       string
	QuestionText string
	AnswerText   string
	ChunkIDs     []string
	CreatedAt    pgtype.Timestamptz
}

const insertTurn = `
INSERT INTO chat_history (turn_id, user_id, question_text, answer_text, context_chunk_ids, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

// InsertTurn appends one conversation turn. chat_history is append-only;
// the only deletes happen through DeleteTurnsBeyond.
func (q *Queries) InsertTurn(ctx context.Context, arg InsertTurnParams) error {
	_, err := q.db.Exec(ctx, insertTurn,
		arg.TurnID, arg.UserID, arg.QuestionText, arg.AnswerText, arg.ChunkIDs, arg.CreatedAt)
	return err
}

const recentTurns = `
SELECT turn_id, user_id, question_text, answer_text, context_chunk_ids, created_at
FROM chat_history
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`

// RecentTurns returns the most recent turns for a user, newest first.
func (q *Queries) RecentTurns(ctx context.Context, userID string, limit int32) ([]Turn, error) {
	rows, err := q.db.Query(ctx, recentTurns, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.TurnID, &t.UserID, &t.QuestionText, &t.AnswerText,
			&t.ChunkIDs, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

const deleteTurnsBeyond = `
WITH ranked AS (
    SELECT turn_id, ROW_NUMBER() OVER (ORDER BY created_at DESC) AS rn
    FROM chat_history
    WHERE user_id = $1
)
DELETE FROM chat_history
WHERE user_id = $1 AND turn_id IN (
    SELECT turn_id FROM ranked WHERE rn > $2
)
`

// DeleteTurnsBeyond removes all of a user's turns beyond the most recent
// keepLast, ordered by created_at descending. Returns the number deleted.
func (q *Queries) DeleteTurnsBeyond(ctx context.Context, userID string, keepLast int32) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteTurnsBeyond, userID, keepLast)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// TurnStatsRow summarizes a user's conversation history.
type TurnStatsRow struct {
	TotalTurns int64
	FirstTurn  pgtype.Timestamptz
	LastTurn   pgtype.Timestamptz
}

const turnStats = `
SELECT COUNT(*), MIN(created_at), MAX(created_at)
FROM chat_history
WHERE user_id = $1
`

// TurnStats returns the turn count and first/last timestamps for a user.
func (q *Queries) TurnStats(ctx context.Context, userID string) (TurnStatsRow, error) {
	var s TurnStatsRow
	err := q.db.QueryRow(ctx, turnStats, userID).Scan(&s.TotalTurns, &s.FirstTurn, &s.LastTurn)
	return s, err
}
