package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/BradenHooton/bulletin/internal/models"
)

// FormField is the multipart field carrying uploads.
const FormField = "files"

// AllowedTypes are the accepted content types, detected from the bytes
// rather than the client's header.
var AllowedTypes = []string{"image/jpeg", "image/png", "application/pdf", "image/webp"}

// Limits bound a single request.
type Limits struct {
	MaxFiles    int
	MaxFileSize int64
}

// StoredFile is one file found in the upload directory.
type StoredFile struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Uploader stores attachment files on local disk.
type Uploader struct {
	dir    string
	limits Limits
	logger *slog.Logger
}

func NewUploader(dir string, limits Limits, logger *slog.Logger) (*Uploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Uploader{dir: dir, limits: limits, logger: logger}, nil
}

func (u *Uploader) Dir() string { return u.dir }

func invalidFile(msg string) error {
	return models.NewInvalidArgumentError("File", msg)
}

// ParseRequest reads a multipart body and returns the uploaded file headers.
// Limits are enforced here, before any file reaches the disk.
func (u *Uploader) ParseRequest(w http.ResponseWriter, r *http.Request) ([]*multipart.FileHeader, error) {
	maxBody := int64(u.limits.MaxFiles)*u.limits.MaxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			return nil, models.NewInvalidArgumentError("Request", "Expected multipart/form-data body")
		case errors.As(err, &maxErr):
			return nil, invalidFile(fmt.Sprintf("Request too large (max %d files of %s)", u.limits.MaxFiles, humanSize(u.limits.MaxFileSize)))
		}
		return nil, models.NewInvalidArgumentError("Request", "Malformed multipart body")
	}

	for field := range r.MultipartForm.File {
		if field != FormField {
			return nil, invalidFile("Unexpected field")
		}
	}

	headers := r.MultipartForm.File[FormField]
	if len(headers) > u.limits.MaxFiles {
		return nil, invalidFile(fmt.Sprintf("Too many files (max %d)", u.limits.MaxFiles))
	}
	for _, h := range headers {
		if h.Size > u.limits.MaxFileSize {
			return nil, invalidFile(fmt.Sprintf("File too large (max %s)", humanSize(u.limits.MaxFileSize)))
		}
	}
	return headers, nil
}

func humanSize(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

// Save checks the content type of every file and writes them under fresh
// names. On error nothing written by this call is left behind.
func (u *Uploader) Save(ctx context.Context, headers []*multipart.FileHeader) ([]models.Attachment, error) {
	saved := make([]models.Attachment, 0, len(headers))
	paths := make([]string, 0, len(headers))

	for _, h := range headers {
		if err := ctx.Err(); err != nil {
			u.discard(paths)
			return nil, err
		}
		att, err := u.saveOne(h)
		if err != nil {
			u.discard(paths)
			return nil, err
		}
		saved = append(saved, att)
		paths = append(paths, att.FilePath)
	}
	return saved, nil
}

func (u *Uploader) saveOne(h *multipart.FileHeader) (models.Attachment, error) {
	src, err := h.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to detect content type: %w", err)
	}
	if !mimetype.EqualsAny(mtype.String(), AllowedTypes...) {
		return models.Attachment{}, invalidFile("Unsupported file type")
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to rewind upload: %w", err)
	}

	savedName := uuid.New().String() + mtype.Extension()
	path := filepath.Join(u.dir, savedName)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return models.Attachment{}, fmt.Errorf("failed to write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return models.Attachment{}, fmt.Errorf("failed to write upload: %w", err)
	}

	return models.Attachment{
		FileName:      h.Filename,
		SavedName:     savedName,
		FilePath:      path,
		ContentType:   mtype.String(),
		FileExtension: strings.TrimPrefix(filepath.Ext(h.Filename), "."),
	}, nil
}

func (u *Uploader) discard(paths []string) {
	if err := u.RemoveFiles(context.Background(), paths); err != nil {
		u.logger.Warn("failed to discard partial upload", slog.Any("error", err))
	}
}

// RemoveFiles deletes every path concurrently. All removals are attempted;
// files that are already gone count as removed.
func (u *Uploader) RemoveFiles(ctx context.Context, paths []string) error {
	var g errgroup.Group
	g.SetLimit(8)

	for _, path := range paths {
		g.Go(func() error {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				u.logger.Warn("failed to delete file", slog.String("path", path), slog.Any("error", err))
				return models.NewServerError("AppServerError", "Fail to delete uploads", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// List returns the regular files in the upload directory.
func (u *Uploader) List() ([]StoredFile, error) {
	entries, err := os.ReadDir(u.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload dir: %w", err)
	}

	files := make([]StoredFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, StoredFile{Name: e.Name(), Path: filepath.Join(u.dir, e.Name()), ModTime: info.ModTime()})
	}
	return files, nil
}
