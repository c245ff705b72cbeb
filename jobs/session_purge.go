package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// SessionPurger deletes expired session audit rows.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, retention time.Duration) (int64, error)
}

// SessionPurgeJob wires the purge task to the identity service.
type SessionPurgeJob struct {
	purger SessionPurger
	logger *slog.Logger
}

// NewSessionPurgeJob constructs a SessionPurgeJob.
func NewSessionPurgeJob(purger SessionPurger, logger *slog.Logger) *SessionPurgeJob {
	return &SessionPurgeJob{purger: purger, logger: logger}
}

// Handle processes TaskSessionPurge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		payload.Retention = 30 * 24 * time.Hour
	}
	purged, err := j.purger.PurgeExpiredSessions(ctx, payload.Retention)
	if err != nil {
		return err
	}
	if j.logger != nil {
		j.logger.Info("purged expired sessions", slog.Int64("rows", purged))
	}
	return nil
}
