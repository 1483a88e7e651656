package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/bulletin/internal/database"
	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

type AnnouncementRepository struct {
	db          *database.DB
	attachments *AttachmentRepository
}

func NewAnnouncementRepository(db *database.DB, attachments *AttachmentRepository) *AnnouncementRepository {
	return &AnnouncementRepository{db: db, attachments: attachments}
}

const announcementColumns = `
	a.id, a.title, a.description, a.author_id, a.attachment_ids, a.viewer_status,
	a.created_at, a.updated_at, u.email, u.profile`

func scanAnnouncementRow(scanner rowScanner) (*models.Announcement, error) {
	var a models.Announcement
	var authorEmail *string
	var authorProfile []byte

	err := scanner.Scan(
		&a.ID, &a.Title, &a.Description, &a.AuthorID,
		pq.Array(&a.AttachmentIDs), pq.Array(&a.ViewerStatus),
		&a.CreatedAt, &a.UpdatedAt, &authorEmail, &authorProfile,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if a.AttachmentIDs == nil {
		a.AttachmentIDs = []string{}
	}
	if a.ViewerStatus == nil {
		a.ViewerStatus = []string{}
	}
	a.Attachments = []models.Attachment{}

	if authorEmail != nil {
		a.Author = &models.UserSummary{ID: a.AuthorID, Email: *authorEmail}
		if len(authorProfile) > 0 {
			a.Author.Profile = &models.Profile{}
			if err := json.Unmarshal(authorProfile, a.Author.Profile); err != nil {
				return nil, fmt.Errorf("failed to decode author profile: %w", err)
			}
		}
	}
	return &a, nil
}

func notFoundAnnouncement(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NewNotFoundError("Announcement", "Announcement not found")
	}
	return err
}

// populate attaches the attachment metadata to each announcement with one query.
func (r *AnnouncementRepository) populate(ctx context.Context, announcements ...*models.Announcement) error {
	var ids []string
	for _, a := range announcements {
		ids = append(ids, a.AttachmentIDs...)
	}
	if len(ids) == 0 {
		return nil
	}

	found, err := r.attachments.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]models.Attachment, len(found))
	for _, att := range found {
		byID[att.ID] = att
	}

	for _, a := range announcements {
		for _, id := range a.AttachmentIDs {
			if att, ok := byID[id]; ok {
				a.Attachments = append(a.Attachments, att)
			}
		}
	}
	return nil
}

func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := `SELECT ` + announcementColumns + `
		FROM announcements a LEFT JOIN users u ON u.id = a.author_id
		WHERE a.id = $1`

	a, err := scanAnnouncementRow(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundAnnouncement(err)
	}
	if err := r.populate(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AnnouncementRepository) List(ctx context.Context) ([]*models.Announcement, error) {
	query := `SELECT ` + announcementColumns + `
		FROM announcements a LEFT JOIN users u ON u.id = a.author_id
		ORDER BY a.created_at DESC`

	rows, err := r.db.Querier(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", database.MapPostgresError(err))
	}

	out, err := collectAnnouncements(rows)
	if err != nil {
		return nil, err
	}
	if err := r.populate(ctx, out...); err != nil {
		return nil, err
	}
	return out, nil
}

func collectAnnouncements(rows pgx.Rows) ([]*models.Announcement, error) {
	defer rows.Close()

	out := make([]*models.Announcement, 0)
	for rows.Next() {
		a, err := scanAnnouncementRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// Create inserts the announcement row. The author summary is not loaded.
func (r *AnnouncementRepository) Create(ctx context.Context, in models.AnnouncementInput, attachmentIDs []string) (*models.Announcement, error) {
	if attachmentIDs == nil {
		attachmentIDs = []string{}
	}
	viewers := in.ViewerStatus
	if viewers == nil {
		viewers = []string{}
	}

	now := time.Now().UTC()
	a := &models.Announcement{
		ID:            uuid.New().String(),
		Title:         in.Title,
		Description:   in.Description,
		AuthorID:      in.AuthorID,
		AttachmentIDs: attachmentIDs,
		Attachments:   []models.Attachment{},
		ViewerStatus:  viewers,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `
		INSERT INTO announcements (id, title, description, author_id, attachment_ids, viewer_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err := r.db.Querier(ctx).Exec(ctx, query,
		a.ID, a.Title, a.Description, a.AuthorID, pq.Array(a.AttachmentIDs), pq.Array(a.ViewerStatus), now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert announcement: %w", database.MapPostgresError(err))
	}
	return a, nil
}

// Update applies the non-nil fields of upd. A missing row is a NotFound error.
func (r *AnnouncementRepository) Update(ctx context.Context, id string, upd models.AnnouncementUpdate) error {
	args := []any{id}
	var set []string
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.ViewerStatus != nil {
		add("viewer_status", pq.Array(*upd.ViewerStatus))
	}
	if upd.AttachmentIDs != nil {
		add("attachment_ids", pq.Array(*upd.AttachmentIDs))
	}
	add("updated_at", time.Now().UTC())

	query := `UPDATE announcements SET ` + strings.Join(set, ", ") + ` WHERE id = $1`
	result, err := r.db.Querier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update announcement: %w", database.MapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("Announcement", "Announcement not found")
	}
	return nil
}

// Delete removes the announcement row and returns it as it was, without
// populated attachments.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) (*models.Announcement, error) {
	query := `
		WITH deleted AS (DELETE FROM announcements WHERE id = $1 RETURNING *)
		SELECT ` + announcementColumns + `
		FROM deleted a LEFT JOIN users u ON u.id = a.author_id`

	a, err := scanAnnouncementRow(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundAnnouncement(err)
	}
	return a, nil
}
