package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tallybridge/internal/model"
)

// Enqueue appends a pending payload to the outbound queue and returns its id.
//
// The insert is committed (synchronous=FULL) before Enqueue returns, so a crash
// immediately afterwards cannot lose the item. An empty kind is stored as
// model.DefaultKind.
func (s *Store) Enqueue(ctx context.Context, payload, kind string) (int64, error) {
	if kind == "" {
		kind = model.DefaultKind
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO queue (payload, kind, status, created_at)
		VALUES (?, ?, ?, ?)
	`, payload, kind, string(model.QueuePending), s.timestamp())
	if err != nil {
		return 0, fault("enqueue", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fault("enqueue: last insert id", err)
	}
	return id, nil
}

// ListPending returns every pending item in ascending id order.
// Read-only; safe to call while other goroutines enqueue.
//
// Returns an empty slice (not nil) when nothing is pending.
func (s *Store) ListPending(ctx context.Context) ([]model.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload, kind, status, created_at, completed_at
		FROM queue
		WHERE status = ?
		ORDER BY id ASC
	`, string(model.QueuePending))
	if err != nil {
		return nil, fault("list pending", err)
	}
	defer rows.Close()

	return scanQueueItems(rows, "list pending")
}

// ListQueue returns up to limit items of any status in ascending id order.
// A limit <= 0 returns every item.
func (s *Store) ListQueue(ctx context.Context, limit int) ([]model.QueueItem, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload, kind, status, created_at, completed_at
		FROM queue
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fault("list queue", err)
	}
	defer rows.Close()

	return scanQueueItems(rows, "list queue")
}

// MarkComplete marks a queue item as delivered.
//
// Idempotent: marking an already-complete item is a no-op, and the original
// completed_at is kept. Returns ErrNotFound (wrapped) if no item has that id.
func (s *Store) MarkComplete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE queue
		SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, string(model.QueueComplete), s.timestamp(), id, string(model.QueuePending))
	if err != nil {
		return fault("mark complete", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fault("mark complete: rows affected", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing changed: either already complete (fine) or unknown id.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fault("mark complete: lookup", err)
	}
	if exists == 0 {
		return fmt.Errorf("mark complete %d: %w", id, ErrNotFound)
	}
	return nil
}

// QueueItem retrieves a single queue item by id.
// Returns ErrNotFound (wrapped) if no item has that id.
func (s *Store) QueueItem(ctx context.Context, id int64) (model.QueueItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, payload, kind, status, created_at, completed_at
		FROM queue
		WHERE id = ?
	`, id)

	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.QueueItem{}, fmt.Errorf("queue item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.QueueItem{}, fault("read queue item", err)
	}
	return item, nil
}

// QueueStats returns the number of pending and complete items.
func (s *Store) QueueStats(ctx context.Context) (pending, complete int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM queue
	`, string(model.QueuePending), string(model.QueueComplete)).Scan(&pending, &complete)
	if err != nil {
		return 0, 0, fault("queue stats", err)
	}
	return pending, complete, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row rowScanner) (model.QueueItem, error) {
	var (
		item        model.QueueItem
		status      string
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := row.Scan(&item.ID, &item.Payload, &item.Kind, &status, &createdAt, &completedAt); err != nil {
		return model.QueueItem{}, err
	}
	item.Status = model.QueueStatus(status)
	item.CreatedAt = fromUnix(createdAt)
	item.CompletedAt = nullableTime(completedAt)
	return item, nil
}

func scanQueueItems(rows *sql.Rows, op string) ([]model.QueueItem, error) {
	items := []model.QueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fault(op+": scan", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fault(op+": iterate", err)
	}
	return items, nil
}
