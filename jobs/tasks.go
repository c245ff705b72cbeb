// Package jobs holds the background tasks of the auth service, processed by
// an Asynq worker.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionPurge removes expired session audit rows from Postgres.
	// The bearer tokens themselves expire in Redis via TTL; only the audit
	// trail needs active cleanup.
	TaskSessionPurge = "auth:session_purge"
)

// SessionPurgePayload controls how long expired sessions are retained before
// their audit rows are deleted.
type SessionPurgePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewSessionPurgeTask constructs an Asynq task.
func NewSessionPurgeTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(SessionPurgePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionPurge, data), nil
}
