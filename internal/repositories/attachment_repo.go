package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/bulletin/internal/database"
	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

type AttachmentRepository struct {
	db *database.DB
}

func NewAttachmentRepository(db *database.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentSelect = `SELECT id, file_name, saved_name, file_path, content_type, file_extension, created_at, updated_at FROM attachments`

func scanAttachmentRow(scanner rowScanner) (*models.Attachment, error) {
	var a models.Attachment
	err := scanner.Scan(&a.ID, &a.FileName, &a.SavedName, &a.FilePath, &a.ContentType, &a.FileExtension, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func scanAttachmentRows(rows pgx.Rows) ([]models.Attachment, error) {
	defer rows.Close()

	out := make([]models.Attachment, 0)
	for rows.Next() {
		a, err := scanAttachmentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// CreateMany inserts the attachments and returns them with ids assigned.
func (r *AttachmentRepository) CreateMany(ctx context.Context, attachments []models.Attachment) ([]models.Attachment, error) {
	query := `
		INSERT INTO attachments (id, file_name, saved_name, file_path, content_type, file_extension, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`

	now := time.Now().UTC()
	q := r.db.Querier(ctx)
	created := make([]models.Attachment, 0, len(attachments))

	for _, a := range attachments {
		a.ID = uuid.New().String()
		a.CreatedAt = now
		a.UpdatedAt = now

		if _, err := q.Exec(ctx, query, a.ID, a.FileName, a.SavedName, a.FilePath, a.ContentType, a.FileExtension, now); err != nil {
			return nil, fmt.Errorf("failed to insert attachment: %w", database.MapPostgresError(err))
		}
		created = append(created, a)
	}
	return created, nil
}

// GetByIDs returns the attachments in the order of ids. Unknown ids are skipped.
func (r *AttachmentRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Attachment, error) {
	if len(ids) == 0 {
		return []models.Attachment{}, nil
	}

	query := attachmentSelect + ` WHERE id::text = ANY($1) ORDER BY array_position($1, id::text)`
	rows, err := r.db.Querier(ctx).Query(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", database.MapPostgresError(err))
	}
	return scanAttachmentRows(rows)
}

// DeleteByIDs removes the attachment rows and returns the file paths they referenced.
func (r *AttachmentRepository) DeleteByIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}

	rows, err := r.db.Querier(ctx).Query(ctx, `DELETE FROM attachments WHERE id::text = ANY($1) RETURNING file_path`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to delete attachments: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	paths := make([]string, 0, len(ids))
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan attachment path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return paths, nil
}

// SavedNames returns every saved file name still referenced by an attachment row.
func (r *AttachmentRepository) SavedNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT saved_name FROM attachments`)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved names: %w", database.MapPostgresError(err))
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan saved name: %w", err)
		}
		names[name] = struct{}{}
	}
	return names, rows.Err()
}
