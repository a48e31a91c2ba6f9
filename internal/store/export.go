package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/listacompra/internal/model"
	"github.com/google/uuid"
)

type ExportStore struct {
	db *sql.DB
}

func NewExportStore(db *sql.DB) *ExportStore {
	return &ExportStore{db: db}
}

func scanExport(s scanner) (*model.Export, error) {
	var e model.Export
	var errMsg sql.NullString
	var createdAt int64
	var completedAt sql.NullInt64
	if err := s.Scan(&e.ID, &e.RoomID, &e.S3Key, &e.SizeBytes, &e.Status, &errMsg, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	e.ErrorMessage = errMsg.String
	e.CreatedAt = decodeTime(createdAt)
	e.CompletedAt = decodeNullTime(completedAt)
	return &e, nil
}

const exportCols = `id, room_id, s3_key, size_bytes, status, error_message, created_at, completed_at`

func (s *ExportStore) Create(ctx context.Context, roomID, s3Key string) (*model.Export, error) {
	e := model.Export{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		S3Key:     s3Key,
		Status:    model.ExportStatusPending,
		CreatedAt: now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports (id, room_id, s3_key, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.RoomID, e.S3Key, e.Status, encodeTime(e.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("create export: %w", err)
	}
	return &e, nil
}

func (s *ExportStore) Get(ctx context.Context, roomID, id string) (*model.Export, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exportCols+` FROM exports WHERE id = ? AND room_id = ?`, id, roomID)
	e, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get export %s: %w", id, err)
	}
	return e, nil
}

func (s *ExportStore) List(ctx context.Context, roomID string, limit int) ([]model.Export, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+exportCols+` FROM exports WHERE room_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var exports []model.Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		exports = append(exports, *e)
	}
	return exports, rows.Err()
}

func (s *ExportStore) UpdateStatus(ctx context.Context, id string, status model.ExportStatus, errorMsg string) error {
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE exports SET status = ?, error_message = ? WHERE id = ?`,
		status, errPtr, id,
	)
	if err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return nil
}

func (s *ExportStore) UpdateCompleted(ctx context.Context, id string, sizeBytes int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE exports SET status = ?, size_bytes = ?, completed_at = ? WHERE id = ?`,
		model.ExportStatusCompleted, sizeBytes, encodeTime(now()), id,
	)
	if err != nil {
		return fmt.Errorf("update export completed: %w", err)
	}
	return nil
}

// DeleteOlderThan removes the room's exports created before the cutoff and
// returns their object keys.
func (s *ExportStore) DeleteOlderThan(ctx context.Context, roomID string, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s3_key FROM exports WHERE room_id = ? AND created_at < ?`,
		roomID, encodeTime(before),
	)
	if err != nil {
		return nil, fmt.Errorf("select old exports: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan s3 key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM exports WHERE room_id = ? AND created_at < ?`,
		roomID, encodeTime(before),
	)
	if err != nil {
		return nil, fmt.Errorf("delete old exports: %w", err)
	}
	return keys, nil
}
