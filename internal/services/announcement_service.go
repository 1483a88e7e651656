package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/bulletin/internal/database"
	"github.com/BradenHooton/bulletin/internal/models"
)

// AnnouncementRepository defines the interface for announcement data access
type AnnouncementRepository interface {
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	List(ctx context.Context) ([]*models.Announcement, error)
	Create(ctx context.Context, in models.AnnouncementInput, attachmentIDs []string) (*models.Announcement, error)
	Update(ctx context.Context, id string, upd models.AnnouncementUpdate) error
	Delete(ctx context.Context, id string) (*models.Announcement, error)
}

// AttachmentRepository defines the interface for attachment metadata
type AttachmentRepository interface {
	CreateMany(ctx context.Context, attachments []models.Attachment) ([]models.Attachment, error)
	DeleteByIDs(ctx context.Context, ids []string) ([]string, error)
}

// AuthorRepository keeps the user side of the author relation.
type AuthorRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	AddAnnouncement(ctx context.Context, userID, announcementID string) error
	RemoveAnnouncement(ctx context.Context, userID, announcementID string) error
}

// UnitOfWorkFactory hands out a fresh unit of work per operation.
type UnitOfWorkFactory interface {
	NewUnitOfWork() database.UnitOfWork
}

// FileRemover deletes stored upload files.
type FileRemover interface {
	RemoveFiles(ctx context.Context, paths []string) error
}

// CleanupRecorder counts file cleanup attempts by phase ("abort" or "post_commit").
type CleanupRecorder interface {
	RecordFileCleanup(phase, outcome string)
}

// AnnouncementFields are the client-editable fields of an announcement.
type AnnouncementFields struct {
	Title        string
	Description  string
	ViewerStatus []string
}

// AnnouncementService coordinates announcement writes with their attachments
// and the author's back-references.
type AnnouncementService struct {
	announcements AnnouncementRepository
	attachments   AttachmentRepository
	authors       AuthorRepository
	uow           UnitOfWorkFactory
	files         FileRemover
	cleanups      CleanupRecorder
	logger        *slog.Logger
}

func NewAnnouncementService(announcements AnnouncementRepository, attachments AttachmentRepository, authors AuthorRepository,
	uow UnitOfWorkFactory, files FileRemover, cleanups CleanupRecorder, logger *slog.Logger) *AnnouncementService {
	return &AnnouncementService{
		announcements: announcements,
		attachments:   attachments,
		authors:       authors,
		uow:           uow,
		files:         files,
		cleanups:      cleanups,
		logger:        logger,
	}
}

func announcementNotFound(id string) error {
	return models.NewNotFoundError("Announcement", fmt.Sprintf("Announcement with id %s not found", id))
}

func filePaths(attachments []models.Attachment) []string {
	paths := make([]string, 0, len(attachments))
	for _, a := range attachments {
		paths = append(paths, a.FilePath)
	}
	return paths
}

func attachmentIDs(attachments []models.Attachment) []string {
	ids := make([]string, 0, len(attachments))
	for _, a := range attachments {
		ids = append(ids, a.ID)
	}
	return ids
}

// removeFiles never fails the caller. Files it could not delete are left for
// the reconciliation sweep.
func (s *AnnouncementService) removeFiles(ctx context.Context, phase string, paths []string) {
	if len(paths) == 0 {
		return
	}
	err := s.files.RemoveFiles(context.WithoutCancel(ctx), paths)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		s.logger.Error("failed to remove announcement files",
			slog.String("phase", phase), slog.Int("count", len(paths)), slog.Any("error", err))
	}
	if s.cleanups != nil {
		s.cleanups.RecordFileCleanup(phase, outcome)
	}
}

func (s *AnnouncementService) List(ctx context.Context) ([]*models.Announcement, error) {
	announcements, err := s.announcements.List(ctx)
	if err != nil {
		s.logger.Error("failed to list announcements", slog.Any("error", err))
		return nil, err
	}
	return announcements, nil
}

func (s *AnnouncementService) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	a, err := s.announcements.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, announcementNotFound(id)
		}
		return nil, err
	}
	return a, nil
}

// Create stores the attachment records, the announcement and the author's
// back-reference in one transaction. files are already on disk; they are
// removed again if anything fails.
func (s *AnnouncementService) Create(ctx context.Context, authorID string, in AnnouncementFields, files []models.Attachment) (*models.Announcement, error) {
	var created *models.Announcement

	err := database.WithTransaction(ctx, s.uow.NewUnitOfWork(), func(ctx context.Context) error {
		saved, err := s.attachments.CreateMany(ctx, files)
		if err != nil {
			return err
		}

		author, err := s.authors.GetByID(ctx, authorID)
		if err != nil {
			return err
		}

		a, err := s.announcements.Create(ctx, models.AnnouncementInput{
			Title:        in.Title,
			Description:  in.Description,
			AuthorID:     author.ID,
			ViewerStatus: in.ViewerStatus,
		}, attachmentIDs(saved))
		if err != nil {
			return err
		}

		if err := s.authors.AddAnnouncement(ctx, author.ID, a.ID); err != nil {
			return err
		}

		a.Attachments = saved
		a.Author = &models.UserSummary{ID: author.ID, Email: author.Email, Profile: author.Profile}
		created = a
		return nil
	})
	if err != nil {
		s.removeFiles(ctx, "abort", filePaths(files))
		s.logger.Error("failed to create announcement", slog.String("author_id", authorID), slog.Any("error", err))
		return nil, models.NewServerError("AnnouncementCreationFailure", "Fail to create a new announcement", err)
	}

	s.logger.Info("announcement created", slog.String("announcement_id", created.ID))
	return created, nil
}

// Update replaces the fields and the whole attachment set. The previous files
// are deleted only after the transaction commits; on failure the new ones are.
func (s *AnnouncementService) Update(ctx context.Context, id string, in AnnouncementFields, files []models.Attachment) (*models.Announcement, error) {
	var oldPaths []string

	err := database.WithTransaction(ctx, s.uow.NewUnitOfWork(), func(ctx context.Context) error {
		existing, err := s.announcements.GetByID(ctx, id)
		if err != nil {
			return err
		}

		saved, err := s.attachments.CreateMany(ctx, files)
		if err != nil {
			return err
		}

		oldPaths, err = s.attachments.DeleteByIDs(ctx, existing.AttachmentIDs)
		if err != nil {
			return err
		}

		ids := attachmentIDs(saved)
		upd := models.AnnouncementUpdate{
			Title:         &in.Title,
			Description:   &in.Description,
			AttachmentIDs: &ids,
		}
		if in.ViewerStatus != nil {
			upd.ViewerStatus = &in.ViewerStatus
		}
		return s.announcements.Update(ctx, id, upd)
	})
	if err != nil {
		s.removeFiles(ctx, "abort", filePaths(files))
		if errors.Is(err, models.ErrNotFound) {
			return nil, announcementNotFound(id)
		}
		s.logger.Error("failed to update announcement", slog.String("announcement_id", id), slog.Any("error", err))
		return nil, models.NewServerError("AnnouncementUpdateFailure", "Failed to update the announcement", err)
	}

	s.removeFiles(ctx, "post_commit", oldPaths)
	s.logger.Info("announcement updated", slog.String("announcement_id", id))
	return s.GetByID(ctx, id)
}

// Delete removes the announcement, its attachment records and the author's
// back-reference, then the files.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	var paths []string

	err := database.WithTransaction(ctx, s.uow.NewUnitOfWork(), func(ctx context.Context) error {
		deleted, err := s.announcements.Delete(ctx, id)
		if err != nil {
			return err
		}

		paths, err = s.attachments.DeleteByIDs(ctx, deleted.AttachmentIDs)
		if err != nil {
			return err
		}

		return s.authors.RemoveAnnouncement(ctx, deleted.AuthorID, id)
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return announcementNotFound(id)
		}
		return err
	}

	s.removeFiles(ctx, "post_commit", paths)
	s.logger.Info("announcement deleted", slog.String("announcement_id", id))
	return nil
}
