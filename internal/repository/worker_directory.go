package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/request-engine/internal/domain"
)

// WorkerDirectory is the read model of assignable workers. Worker records are
// owned by the external directory; the engine only reads them. CurrentLoad is
// recomputed from live open-request counts on every read to avoid drift.
type WorkerDirectory interface {
	ActiveWorkers(ctx context.Context) ([]domain.Worker, error)
	ListWorkers(ctx context.Context) ([]domain.Worker, error)
}

type workerDirectory struct {
	pool *pgxpool.Pool
}

// NewWorkerDirectory builds the directory over the shared pool.
func NewWorkerDirectory(pool *pgxpool.Pool) WorkerDirectory {
	return &workerDirectory{pool: pool}
}

const workerQuery = `
        SELECT w.id, w.name, w.active_flag, w.sort_order, w.skills, w.territories,
               COUNT(r.id) AS current_load, w.created_at, w.updated_at
        FROM workers w
        LEFT JOIN requests r
            ON r.assignee_id = w.id
           AND r.status IN ('NEW','PENDING_WALKTHROUGH','MOVE_TO_QUOTING')
        %s
        GROUP BY w.id
        ORDER BY w.sort_order ASC`

func (d *workerDirectory) ActiveWorkers(ctx context.Context) ([]domain.Worker, error) {
	return d.query(ctx, "WHERE w.active_flag")
}

func (d *workerDirectory) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	return d.query(ctx, "")
}

func (d *workerDirectory) query(ctx context.Context, where string) ([]domain.Worker, error) {
	rows, err := d.pool.Query(ctx, fmt.Sprintf(workerQuery, where))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWorkers(rows)
}

func scanWorkers(rows pgx.Rows) ([]domain.Worker, error) {
	var result []domain.Worker
	for rows.Next() {
		var w domain.Worker
		if err := rows.Scan(
			&w.ID,
			&w.Name,
			&w.Active,
			&w.SortOrder,
			&w.Skills,
			&w.Territories,
			&w.CurrentLoad,
			&w.CreatedAt,
			&w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
