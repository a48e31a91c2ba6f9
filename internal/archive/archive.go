// Package archive exports a room's items and prices as an encrypted JSON
// document to S3-compatible storage and reads them back.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/listacompra/internal/config"
	"github.com/dukerupert/listacompra/internal/model"
)

var (
	ErrNotConfigured  = errors.New("archive storage not configured")
	ErrExportNotFound = errors.New("export not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// RoomSource reads the records of one room.
type RoomSource interface {
	ListItems(ctx context.Context, roomID string) ([]model.Item, error)
	ListPrices(ctx context.Context, roomID string) ([]model.PriceEntry, error)
}

// ExportLog records every export attempt and its outcome.
type ExportLog interface {
	Create(ctx context.Context, roomID, s3Key string) (*model.Export, error)
	Get(ctx context.Context, roomID, id string) (*model.Export, error)
	List(ctx context.Context, roomID string, limit int) ([]model.Export, error)
	UpdateStatus(ctx context.Context, id string, status model.ExportStatus, errorMsg string) error
	UpdateCompleted(ctx context.Context, id string, sizeBytes int64) error
	DeleteOlderThan(ctx context.Context, roomID string, before time.Time) ([]string, error)
}

// Document is the decrypted content of an archive.
type Document struct {
	RoomID     string             `json:"room_id"`
	ExportedAt time.Time          `json:"exported_at"`
	Items      []model.Item       `json:"items"`
	Prices     []model.PriceEntry `json:"prices"`
}

type Manager struct {
	client s3Client
	bucket string
	source RoomSource
	log    ExportLog
	logger *slog.Logger
	now    func() time.Time
}

// NewManager returns a manager for the configured bucket. Without complete
// S3 settings every operation fails with ErrNotConfigured.
func NewManager(cfg config.S3Config, source RoomSource, log ExportLog, logger *slog.Logger) *Manager {
	m := &Manager{
		bucket: cfg.Bucket,
		source: source,
		log:    log,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if cfg.Enabled() {
		m.client = newS3Client(cfg)
	}
	return m
}

func newS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Export snapshots the room, encrypts it with passphrase and uploads it.
func (m *Manager) Export(ctx context.Context, roomID, passphrase string) (*model.Export, error) {
	if m.client == nil {
		return nil, ErrNotConfigured
	}
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}

	ts := m.now()
	key := fmt.Sprintf("rooms/%s/export-%s.json.enc", roomID, ts.Format("2006-01-02T150405Z"))
	record, err := m.log.Create(ctx, roomID, key)
	if err != nil {
		return nil, fmt.Errorf("create export record: %w", err)
	}

	size, err := m.upload(ctx, record, roomID, passphrase, ts)
	if err != nil {
		if uerr := m.log.UpdateStatus(ctx, record.ID, model.ExportStatusFailed, err.Error()); uerr != nil {
			m.logger.Warn("record failed export", "id", record.ID, "error", uerr)
		}
		return nil, err
	}
	if err := m.log.UpdateCompleted(ctx, record.ID, size); err != nil {
		return nil, fmt.Errorf("complete export record: %w", err)
	}
	m.logger.Info("room exported", "room", roomID, "key", key, "bytes", size)
	return m.log.Get(ctx, roomID, record.ID)
}

func (m *Manager) upload(ctx context.Context, record *model.Export, roomID, passphrase string, ts time.Time) (int64, error) {
	items, err := m.source.ListItems(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("list items: %w", err)
	}
	prices, err := m.source.ListPrices(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("list prices: %w", err)
	}

	doc := Document{RoomID: roomID, ExportedAt: ts, Items: items, Prices: prices}
	if doc.Items == nil {
		doc.Items = []model.Item{}
	}
	if doc.Prices == nil {
		doc.Prices = []model.PriceEntry{}
	}
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode archive: %w", err)
	}
	sealed, err := Seal(plaintext, passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	if err := m.log.UpdateStatus(ctx, record.ID, model.ExportStatusUploading, ""); err != nil {
		return 0, fmt.Errorf("mark uploading: %w", err)
	}
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(record.S3Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return int64(len(sealed)), nil
}

// Fetch downloads a completed export and decrypts it.
func (m *Manager) Fetch(ctx context.Context, roomID, exportID, passphrase string) (*Document, error) {
	if m.client == nil {
		return nil, ErrNotConfigured
	}
	record, err := m.log.Get(ctx, roomID, exportID)
	if err != nil {
		return nil, fmt.Errorf("get export: %w", err)
	}
	if record == nil || record.Status != model.ExportStatusCompleted {
		return nil, ErrExportNotFound
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	plaintext, err := Open(sealed, passphrase)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return &doc, nil
}

func (m *Manager) List(ctx context.Context, roomID string, limit int) ([]model.Export, error) {
	return m.log.List(ctx, roomID, limit)
}

// Cleanup deletes the room's exports older than the retention period. Objects
// that fail to delete are logged and left behind.
func (m *Manager) Cleanup(ctx context.Context, roomID string, retentionDays int) (int, error) {
	if m.client == nil {
		return 0, nil
	}

	before := m.now().AddDate(0, 0, -retentionDays)
	keys, err := m.log.DeleteOlderThan(ctx, roomID, before)
	if err != nil {
		return 0, fmt.Errorf("delete old exports: %w", err)
	}

	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete archived object", "key", key, "error", err)
		}
	}
	return len(keys), nil
}
