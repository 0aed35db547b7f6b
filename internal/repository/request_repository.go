package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/request-engine/internal/domain"
)

// ErrVersionConflict signals a lost optimistic-concurrency race on a request
// row. The caller maps it to a retryable conflict.
var ErrVersionConflict = errors.New("request version conflict")

// RequestFilter captures listing parameters.
type RequestFilter struct {
	Statuses   []domain.RequestStatus
	AssigneeID *string
	Limit      int
	Offset     int
}

// RequestRepository encapsulates request persistence. Mutations carry their
// audit entry and commit atomically: the request row and the audit row are
// written in one transaction or not at all.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request, entry *domain.AuditEntry) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	UpdateWithAudit(ctx context.Context, req *domain.Request, expectedVersion int64, entry *domain.AuditEntry) error
	ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]domain.Request, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error)
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates the repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, status, assignee_id, assigned_at, score, archival_reason,
               reactivation_count, attributes, version, created_at, last_activity_at`

func (r *requestRepository) Create(ctx context.Context, req *domain.Request, entry *domain.AuditEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO requests (status, assignee_id, assigned_at, score, archival_reason, reactivation_count, attributes, last_activity_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, version, created_at`
	if err := tx.QueryRow(ctx, query,
		req.Status,
		req.AssigneeID,
		req.AssignedAt,
		req.Score,
		req.ArchivalReason,
		req.ReactivationCount,
		req.Attributes,
		req.LastActivityAt,
	).Scan(&req.ID, &req.Version, &req.CreatedAt); err != nil {
		return err
	}

	if entry != nil {
		entry.RequestID = req.ID
		if err := insertAudit(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id=$1`, requestColumns)
	var req domain.Request
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.Status,
		&req.AssigneeID,
		&req.AssignedAt,
		&req.Score,
		&req.ArchivalReason,
		&req.ReactivationCount,
		&req.Attributes,
		&req.Version,
		&req.CreatedAt,
		&req.LastActivityAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) UpdateWithAudit(ctx context.Context, req *domain.Request, expectedVersion int64, entry *domain.AuditEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        UPDATE requests SET status=$1, assignee_id=$2, assigned_at=$3, score=$4, archival_reason=$5,
            reactivation_count=$6, attributes=$7, last_activity_at=$8, version=version+1
        WHERE id=$9 AND version=$10`
	cmd, err := tx.Exec(ctx, query,
		req.Status,
		req.AssigneeID,
		req.AssignedAt,
		req.Score,
		req.ArchivalReason,
		req.ReactivationCount,
		req.Attributes,
		req.LastActivityAt,
		req.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM requests WHERE id=$1)`, req.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrVersionConflict
		}
		return pgx.ErrNoRows
	}
	req.Version = expectedVersion + 1

	if entry != nil {
		if err := insertAudit(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *requestRepository) ListExpirable(ctx context.Context, cutoff time.Time, limit int) ([]domain.Request, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`
        SELECT %s FROM requests
        WHERE status = ANY($1) AND last_activity_at < $2
        ORDER BY last_activity_at ASC
        LIMIT $3`, requestColumns)

	statuses := make([]string, 0, 3)
	for _, s := range domain.OpenStatuses() {
		statuses = append(statuses, string(s))
	}
	rows, err := r.pool.Query(ctx, query, statuses, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM requests WHERE %s ORDER BY last_activity_at DESC LIMIT %d OFFSET %d`,
		requestColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func scanRequests(rows pgx.Rows) ([]domain.Request, error) {
	var result []domain.Request
	for rows.Next() {
		var req domain.Request
		if err := rows.Scan(
			&req.ID,
			&req.Status,
			&req.AssigneeID,
			&req.AssignedAt,
			&req.Score,
			&req.ArchivalReason,
			&req.ReactivationCount,
			&req.Attributes,
			&req.Version,
			&req.CreatedAt,
			&req.LastActivityAt,
		); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func insertAudit(ctx context.Context, tx pgx.Tx, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO request_audit (request_id, actor_id, change_type, from_status, to_status, from_assignee, to_assignee, reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return tx.QueryRow(ctx, query,
		entry.RequestID,
		entry.ActorID,
		entry.ChangeType,
		entry.FromStatus,
		entry.ToStatus,
		entry.FromAssignee,
		entry.ToAssignee,
		entry.Reason,
	).Scan(&entry.ID, &entry.CreatedAt)
}
