package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tallybridge/internal/model"
)

// RecordUpload upserts the uploading client and inserts its task in one
// transaction, so a task never exists without its client and a failed insert
// leaves the client record untouched.
//
// Task.ClientID is overwritten with clientID. Task.ID and Task.CreatedAt are
// assigned by the store. The schema rejects a task whose status and
// missing_fields disagree.
func (s *Store) RecordUpload(ctx context.Context, clientID, companyName string, task model.Task) (model.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, fault("record upload: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := s.upsertClientTx(ctx, tx, clientID, companyName); err != nil {
		return model.Task{}, err
	}

	task.ClientID = clientID
	createdAt := s.timestamp()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (client_id, voucher_data, data_type, status, missing_fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, task.ClientID, task.VoucherData, string(task.DataType), string(task.Status), task.MissingFields, createdAt)
	if err != nil {
		return model.Task{}, fault("record upload: insert task", err)
	}

	task.ID, err = result.LastInsertId()
	if err != nil {
		return model.Task{}, fault("record upload: last insert id", err)
	}
	task.CreatedAt = fromUnix(createdAt)

	if err := tx.Commit(); err != nil {
		return model.Task{}, fault("record upload: commit", err)
	}
	return task, nil
}

// Task retrieves a single task by id.
// Returns ErrNotFound (wrapped) if no task has that id.
func (s *Store) Task(ctx context.Context, id int64) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, voucher_data, data_type, status, missing_fields, created_at
		FROM tasks
		WHERE id = ?
	`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Task{}, fault("read task", err)
	}
	return task, nil
}

// PendingTasks returns the client's pending tasks ordered by creation time.
// Ties on created_at fall back to id so the order is total.
func (s *Store) PendingTasks(ctx context.Context, clientID string) ([]model.Task, error) {
	return s.queryTasks(ctx, "pending tasks", `
		SELECT id, client_id, voucher_data, data_type, status, missing_fields, created_at
		FROM tasks
		WHERE client_id = ? AND status = ?
		ORDER BY created_at ASC, id ASC
	`, clientID, string(model.TaskPending))
}

// RejectedTasks returns every rejected task, grouped by client_id then id.
func (s *Store) RejectedTasks(ctx context.Context) ([]model.Task, error) {
	return s.queryTasks(ctx, "rejected tasks", `
		SELECT id, client_id, voucher_data, data_type, status, missing_fields, created_at
		FROM tasks
		WHERE status = ?
		ORDER BY client_id ASC, id ASC
	`, string(model.TaskRejected))
}

// CountTasks returns the total number of task rows. Used by tests and the
// dashboard summary.
func (s *Store) CountTasks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fault("count tasks", err)
	}
	return n, nil
}

func (s *Store) queryTasks(ctx context.Context, op, query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault(op, err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fault(op+": scan", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fault(op+": iterate", err)
	}
	return tasks, nil
}

func scanTask(row rowScanner) (model.Task, error) {
	var (
		t         model.Task
		dataType  string
		status    string
		createdAt int64
	)
	if err := row.Scan(&t.ID, &t.ClientID, &t.VoucherData, &dataType, &status, &t.MissingFields, &createdAt); err != nil {
		return model.Task{}, err
	}
	t.DataType = model.DataType(dataType)
	t.Status = model.TaskStatus(status)
	t.CreatedAt = fromUnix(createdAt)
	return t, nil
}
