package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/request-engine/internal/domain"
)

// AuditRepository reads the append-only audit trail. Writes happen only
// through RequestRepository mutations; entries are never edited or deleted.
type AuditRepository interface {
	ListByRequest(ctx context.Context, requestID string) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds the repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, request_id, actor_id, change_type, from_status, to_status, from_assignee, to_assignee, reason, created_at
        FROM request_audit WHERE request_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ActorID,
			&entry.ChangeType,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.FromAssignee,
			&entry.ToAssignee,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
