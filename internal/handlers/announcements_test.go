package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/BradenHooton/bulletin/internal/handlers"
	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/BradenHooton/bulletin/internal/services"
	"github.com/BradenHooton/bulletin/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

func newUploader(t *testing.T) *storage.Uploader {
	t.Helper()
	u, err := storage.NewUploader(t.TempDir(), storage.Limits{MaxFiles: 2, MaxFileSize: 1 << 20}, handlers.DiscardLogger())
	require.NoError(t, err)
	return u
}

func employee() models.Role {
	for _, r := range models.DefaultRoles() {
		if r.Name == models.RoleEmployee {
			return r
		}
	}
	panic("employee role missing")
}

func TestCreateAnnouncement_AuthorFromClaims(t *testing.T) {
	uploads := newUploader(t)
	var gotAuthor string
	var gotFields services.AnnouncementFields
	var gotFiles []models.Attachment
	svc := &handlers.MockAnnouncementService{
		CreateFunc: func(ctx context.Context, authorID string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error) {
			gotAuthor, gotFields, gotFiles = authorID, in, files
			return &models.Announcement{ID: "a1", Title: in.Title, AuthorID: authorID, Attachments: files}, nil
		},
	}
	handler := handlers.NewAnnouncementHandler(svc, uploads, handlers.DiscardLogger())

	req := handlers.NewMultipartRequest(t, http.MethodPost, "/announcements",
		map[string][]string{"title": {"Hello"}, "description": {"World"}, "viewerStatus": {"CLIENT", "EMPLOYEE"}},
		handlers.FormFile{Field: storage.FormField, Name: "photo.png", Contents: pngBytes})
	req = handlers.WithAuthContext(req, "author-1", "author@example.com", employee())
	w := httptest.NewRecorder()
	handler.CreateAnnouncement(w, req)

	var a models.Announcement
	handlers.AssertSuccessResponse(t, w, http.StatusCreated, &a)
	assert.Equal(t, "author-1", gotAuthor)
	assert.Equal(t, "Hello", gotFields.Title)
	assert.Equal(t, []string{"CLIENT", "EMPLOYEE"}, gotFields.ViewerStatus)
	require.Len(t, gotFiles, 1)
	assert.Equal(t, "photo.png", gotFiles[0].FileName)
	assert.Equal(t, "image/png", gotFiles[0].ContentType)
	_, err := os.Stat(gotFiles[0].FilePath)
	assert.NoError(t, err, "file is stored before the service runs")
}

func TestCreateAnnouncement_ValidationWritesNoFiles(t *testing.T) {
	uploads := newUploader(t)
	called := false
	svc := &handlers.MockAnnouncementService{
		CreateFunc: func(ctx context.Context, authorID string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error) {
			called = true
			return nil, nil
		},
	}
	handler := handlers.NewAnnouncementHandler(svc, uploads, handlers.DiscardLogger())

	req := handlers.NewMultipartRequest(t, http.MethodPost, "/announcements",
		map[string][]string{"description": {"no title"}},
		handlers.FormFile{Field: storage.FormField, Name: "photo.png", Contents: pngBytes})
	req = handlers.WithAuthContext(req, "author-1", "author@example.com", employee())
	w := httptest.NewRecorder()
	handler.CreateAnnouncement(w, req)

	resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "ValidationError")
	assert.Equal(t, "title", resp.FieldErrors[0].Field)
	assert.False(t, called)
	files, err := uploads.List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCreateAnnouncement_UploadLimits(t *testing.T) {
	tests := []struct {
		name  string
		files []handlers.FormFile
		msg   string
	}{
		{"too many", []handlers.FormFile{
			{Field: storage.FormField, Name: "1.png", Contents: pngBytes},
			{Field: storage.FormField, Name: "2.png", Contents: pngBytes},
			{Field: storage.FormField, Name: "3.png", Contents: pngBytes},
		}, "Too many files (max 2)"},
		{"wrong field", []handlers.FormFile{
			{Field: "avatar", Name: "1.png", Contents: pngBytes},
		}, "Unexpected field"},
		{"sniffed type", []handlers.FormFile{
			{Field: storage.FormField, Name: "evil.png", Contents: []byte("#!/bin/sh\necho hi\n")},
		}, "Unsupported file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.NewAnnouncementHandler(&handlers.MockAnnouncementService{}, newUploader(t), handlers.DiscardLogger())

			req := handlers.NewMultipartRequest(t, http.MethodPost, "/announcements",
				map[string][]string{"title": {"t"}, "description": {"d"}}, tt.files...)
			req = handlers.WithAuthContext(req, "author-1", "author@example.com", employee())
			w := httptest.NewRecorder()
			handler.CreateAnnouncement(w, req)

			resp := handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "FileInvalidArgument")
			assert.Equal(t, tt.msg, resp.Message)
		})
	}
}

func TestCreateAnnouncement_RequiresMultipart(t *testing.T) {
	handler := handlers.NewAnnouncementHandler(&handlers.MockAnnouncementService{}, newUploader(t), handlers.DiscardLogger())

	req := handlers.NewTestRequest(t, http.MethodPost, "/announcements", map[string]string{"title": "t"})
	req = handlers.WithAuthContext(req, "author-1", "author@example.com", employee())
	w := httptest.NewRecorder()
	handler.CreateAnnouncement(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "RequestInvalidArgument")
}

func TestCreateAnnouncement_ServiceFailure(t *testing.T) {
	svc := &handlers.MockAnnouncementService{
		CreateFunc: func(ctx context.Context, authorID string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error) {
			return nil, models.NewServerError("AnnouncementCreationFailure", "Fail to create a new announcement", assert.AnError)
		},
	}
	handler := handlers.NewAnnouncementHandler(svc, newUploader(t), handlers.DiscardLogger())

	req := handlers.NewMultipartRequest(t, http.MethodPost, "/announcements",
		map[string][]string{"title": {"t"}, "description": {"d"}})
	req = handlers.WithAuthContext(req, "author-1", "author@example.com", employee())
	w := httptest.NewRecorder()
	handler.CreateAnnouncement(w, req)

	resp := handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "AnnouncementCreationFailure")
	assert.Equal(t, "Fail to create a new announcement", resp.Message)
}

func TestUpdateAnnouncement_KeepsViewerStatusWhenAbsent(t *testing.T) {
	var got services.AnnouncementFields
	svc := &handlers.MockAnnouncementService{
		UpdateFunc: func(ctx context.Context, id string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error) {
			got = in
			return &models.Announcement{ID: id}, nil
		},
	}
	handler := handlers.NewAnnouncementHandler(svc, newUploader(t), handlers.DiscardLogger())

	req := handlers.NewMultipartRequest(t, http.MethodPut, "/announcements/a1",
		map[string][]string{"title": {"New"}, "description": {"Desc"}})
	req = handlers.WithURLParams(req, "id", "a1")
	w := httptest.NewRecorder()
	handler.UpdateAnnouncement(w, req)

	handlers.AssertSuccessResponse(t, w, http.StatusOK, nil)
	assert.Nil(t, got.ViewerStatus)
}

func TestGetAnnouncement_NotFound(t *testing.T) {
	handler := handlers.NewAnnouncementHandler(&handlers.MockAnnouncementService{}, newUploader(t), handlers.DiscardLogger())

	req := handlers.WithURLParams(httptest.NewRequest(http.MethodGet, "/announcements/a9", nil), "id", "a9")
	w := httptest.NewRecorder()
	handler.GetAnnouncement(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "AnnouncementNotFound")
}

func TestDeleteAnnouncement_NoContent(t *testing.T) {
	handler := handlers.NewAnnouncementHandler(&handlers.MockAnnouncementService{}, newUploader(t), handlers.DiscardLogger())

	req := handlers.WithURLParams(httptest.NewRequest(http.MethodDelete, "/announcements/a1", nil), "id", "a1")
	w := httptest.NewRecorder()
	handler.DeleteAnnouncement(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.Health(&handlers.MockHealthChecker{})(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var ok handlers.HealthResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &ok)
	assert.Equal(t, "OK", ok.Status)

	w = httptest.NewRecorder()
	handlers.Health(&handlers.MockHealthChecker{Err: assert.AnError})(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
