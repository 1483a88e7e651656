package handlers

import (
	"context"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/BradenHooton/bulletin/internal/auth"
	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/BradenHooton/bulletin/internal/services"
	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AnnouncementService defines the interface for announcement business logic
type AnnouncementService interface {
	List(ctx context.Context) ([]*models.Announcement, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, authorID string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error)
	Update(ctx context.Context, id string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error)
	Delete(ctx context.Context, id string) error
}

// FileUploads parses and stores the files of a multipart request
type FileUploads interface {
	ParseRequest(w http.ResponseWriter, r *http.Request) ([]*multipart.FileHeader, error)
	Save(ctx context.Context, headers []*multipart.FileHeader) ([]models.Attachment, error)
}

type AnnouncementHandler struct {
	service AnnouncementService
	uploads FileUploads
	logger  *slog.Logger
}

func NewAnnouncementHandler(service AnnouncementService, uploads FileUploads, logger *slog.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{service: service, uploads: uploads, logger: logger}
}

// @Router /announcements [get]
func (h *AnnouncementHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, list)
}

// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) GetAnnouncement(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, a)
}

// CreateAnnouncement takes a multipart form: title, description, viewerStatus
// (repeatable) and up to the configured number of files under "files". The
// author is the caller.
// @Router /announcements [post]
func (h *AnnouncementHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteAppError(w, h.logger, models.NewNotAuthorizedError("User", "Authorization header required"))
		return
	}

	fields, files, ok := h.readForm(w, r)
	if !ok {
		return
	}

	a, err := h.service.Create(r.Context(), claims.UserID, fields, files)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusCreated, a)
}

// UpdateAnnouncement replaces the fields and all attachments of an announcement
// @Router /announcements/{id} [put]
func (h *AnnouncementHandler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	fields, files, ok := h.readForm(w, r)
	if !ok {
		return
	}

	a, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), fields, files)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, a)
}

// @Router /announcements/{id} [delete]
func (h *AnnouncementHandler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusNoContent, nil)
}

// readForm validates the text fields before any file is written, then stores
// the files. It writes the error response itself and reports ok=false.
func (h *AnnouncementHandler) readForm(w http.ResponseWriter, r *http.Request) (services.AnnouncementFields, []models.Attachment, bool) {
	headers, err := h.uploads.ParseRequest(w, r)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return services.AnnouncementFields{}, nil, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := AnnouncementRequest{
		Title:        firstValue(r.MultipartForm, "title"),
		Description:  firstValue(r.MultipartForm, "description"),
		ViewerStatus: r.MultipartForm.Value["viewerStatus"],
	}
	if err := ValidateRequest("Announcement", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return services.AnnouncementFields{}, nil, false
	}

	files, err := h.uploads.Save(r.Context(), headers)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return services.AnnouncementFields{}, nil, false
	}

	return services.AnnouncementFields{
		Title:        req.Title,
		Description:  req.Description,
		ViewerStatus: req.ViewerStatus,
	}, files, true
}

func firstValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}
