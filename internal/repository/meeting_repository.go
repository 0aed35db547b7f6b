package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MeetingDirectory answers the walkthrough precondition for the quoting
// transition. Meeting scheduling itself belongs to an external collaborator.
type MeetingDirectory interface {
	HasScheduledWalkthrough(ctx context.Context, requestID string) (bool, error)
}

type meetingDirectory struct {
	pool *pgxpool.Pool
}

// NewMeetingDirectory builds the directory.
func NewMeetingDirectory(pool *pgxpool.Pool) MeetingDirectory {
	return &meetingDirectory{pool: pool}
}

func (d *meetingDirectory) HasScheduledWalkthrough(ctx context.Context, requestID string) (bool, error) {
	const query = `
        SELECT EXISTS(
            SELECT 1 FROM walkthrough_meetings
            WHERE request_id=$1 AND NOT cancelled
        )`
	var exists bool
	if err := d.pool.QueryRow(ctx, query, requestID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
