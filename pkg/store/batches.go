package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Batch statuses. A batch is created as pending, moves to processing when
// the engine starts, and ends in exactly one terminal state.
const (
	BatchPending    = "pending"
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
	BatchCancelled  = "cancelled"
)

// Batch is one row of the import_batches audit table.
type Batch struct {
	ID         string `json:"id"`
	Registry   string `json:"registry"`
	FileName   string `json:"file_name"`
	Status     string `json:"status"`
	Imported   int    `json:"imported"`
	Skipped    int    `json:"skipped"`
	Duplicates int    `json:"duplicates"`
	ErrorCount int    `json:"error_count"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
}

// CreateBatch records a new pending batch.
func (s *Store) CreateBatch(ctx context.Context, id, registry, fileName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_batches (id, registry, file_name, status, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, registry, fileName, BatchPending, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("create batch %s: %w", id, err)
	}
	return nil
}

// MarkProcessing flips a pending batch to processing.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE import_batches SET status = ? WHERE id = ?`, BatchProcessing, id)
	if err != nil {
		return fmt.Errorf("mark batch %s processing: %w", id, err)
	}
	return nil
}

// FinishBatch records the terminal state and final counters of a batch.
func (s *Store) FinishBatch(ctx context.Context, id, status string, imported, skipped, duplicates, errorCount int) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_batches
		 SET status = ?, imported = ?, skipped = ?, duplicates = ?, error_count = ?, finished_at = ?
		 WHERE id = ?`,
		status, imported, skipped, duplicates, errorCount, now, id)
	if err != nil {
		return fmt.Errorf("finish batch %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("batch %s not found", id)
	}
	return nil
}

// GetBatch returns one batch by ID.
func (s *Store) GetBatch(ctx context.Context, id string) (*Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, registry, file_name, status, imported, skipped, duplicates,
		        error_count, started_at, finished_at
		 FROM import_batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	return b, err
}

// ListBatches returns the most recent batches, newest first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, registry, file_name, status, imported, skipped, duplicates,
		        error_count, started_at, finished_at
		 FROM import_batches ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (*Batch, error) {
	var b Batch
	var finished sql.NullInt64
	err := row.Scan(&b.ID, &b.Registry, &b.FileName, &b.Status, &b.Imported,
		&b.Skipped, &b.Duplicates, &b.ErrorCount, &b.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		b.FinishedAt = &finished.Int64
	}
	return &b, nil
}
