// Package activity records a best-effort audit trail of user actions.
// Logging an activity never fails the operation being logged.
package activity

import (
	"context"
	"encoding/json"

	"github.com/cmazet/ragchat/internal/log"
	"github.com/cmazet/ragchat/internal/postgres"
)

// Activity types recorded by the application.
const (
	TypeChat           = "chat"
	TypeDocumentUpload = "document_upload"
	TypeDocumentDelete = "document_delete"
)

// Querier defines the database operation the recorder needs.
type Querier interface {
	InsertActivity(ctx context.Context, arg postgres.InsertActivityParams) error
}

// Recorder writes activity rows.
type Recorder struct {
	querier Querier
	logger  log.Logger
}

// NewRecorder creates a Recorder. A nil logger falls back to a no-op logger.
func NewRecorder(querier Querier, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Recorder{querier: querier, logger: logger}
}

// Record stores one activity entry. Marshal or insert failures are logged
// and swallowed.
func (r *Recorder) Record(ctx context.Context, userID, activityType string, details any) {
	payload, err := json.Marshal(details)
	if err != nil {
		r.logger.Warn("activity details not serializable",
			"user_id", userID, "type", activityType, "error", err)
		payload = []byte("{}")
	}

	err = r.querier.InsertActivity(ctx, postgres.InsertActivityParams{
		UserID:       userID,
		ActivityType: activityType,
		Details:      payload,
	})
	if err != nil {
		r.logger.Warn("activity insert failed",
			"user_id", userID, "type", activityType, "error", err)
	}
}
