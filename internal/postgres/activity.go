package postgres

import "context"

// InsertActivityParams are the parameters for InsertActivity.
type InsertActivityParams struct {
	UserID       string
	ActivityType string
	Details      []byte // JSONB payload, always produced by json.Marshal
}

const insertActivity = `
INSERT INTO activity_log (user_id, activity_type, details)
VALUES ($1, $2, $3)
`

// InsertActivity appends an audit record. Callers treat failures as
// best-effort: the log is housekeeping, not state.
func (q *Queries) InsertActivity(ctx context.Context, arg InsertActivityParams) error {
	_, err := q.db.Exec(ctx, insertActivity, arg.UserID, arg.ActivityType, arg.Details)
	return err
}
