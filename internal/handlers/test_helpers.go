package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/bulletin/internal/auth"
	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/BradenHooton/bulletin/internal/services"
	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DiscardLogger drops all output
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// FormFile is one file part of a multipart test request
type FormFile struct {
	Field    string
	Name     string
	Contents []byte
}

// NewMultipartRequest builds a multipart/form-data request
func NewMultipartRequest(t *testing.T, method, url string, values map[string][]string, files ...FormFile) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range values {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.Field, f.Name)
		require.NoError(t, err)
		_, err = fw.Write(f.Contents)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// WithURLParams sets chi route parameters on the request
func WithURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// WithAuthContext adds claims for a user holding role to the request context
func WithAuthContext(req *http.Request, userID, email string, role models.Role) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   models.RoleSnapshot{Name: role.Name, Authorities: role.Authorities},
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertSuccessResponse checks for {"status": true, "data": ...} and decodes data
func AssertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, data any) {
	t.Helper()
	var resp struct {
		Status bool            `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	AssertJSONResponse(t, w, expectedStatus, &resp)
	assert.True(t, resp.Status)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedCode, resp.Code, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc                      func(ctx context.Context, email, password string) (string, error)
	VerifyAccountFunc              func(ctx context.Context, email, token string) error
	ResetPasswordAfterRecoveryFunc func(ctx context.Context, email, token, newPassword string) error
	UnlockAccountFunc              func(ctx context.Context, email, token string) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	if m.LoginFunc == nil {
		return "", models.NewNotAuthorizedError("User", "Bad credentials")
	}
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthService) VerifyAccount(ctx context.Context, email, token string) error {
	if m.VerifyAccountFunc == nil {
		return nil
	}
	return m.VerifyAccountFunc(ctx, email, token)
}

func (m *MockAuthService) ResetPasswordAfterRecovery(ctx context.Context, email, token, newPassword string) error {
	if m.ResetPasswordAfterRecoveryFunc == nil {
		return nil
	}
	return m.ResetPasswordAfterRecoveryFunc(ctx, email, token, newPassword)
}

func (m *MockAuthService) UnlockAccount(ctx context.Context, email, token string) error {
	if m.UnlockAccountFunc == nil {
		return nil
	}
	return m.UnlockAccountFunc(ctx, email, token)
}

// MockAccountFlows implements AccountFlowsInterface and UserCreator for testing
type MockAccountFlows struct {
	RegisterFunc        func(ctx context.Context, in services.RegisterInput) (*models.User, error)
	CreateUserFunc      func(ctx context.Context, in services.CreateUserInput) (*models.User, error)
	RecoverPasswordFunc func(ctx context.Context, email string) error
	RequestUnlockFunc   func(ctx context.Context, email string) error
}

func (m *MockAccountFlows) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	if m.RegisterFunc == nil {
		return &models.User{ID: "user-1", Email: in.Email, VAT: in.VAT, Profile: in.Profile}, nil
	}
	return m.RegisterFunc(ctx, in)
}

func (m *MockAccountFlows) CreateUser(ctx context.Context, in services.CreateUserInput) (*models.User, error) {
	if m.CreateUserFunc == nil {
		return &models.User{ID: "user-1", Email: in.Email, RoleID: "role-" + in.RoleName}, nil
	}
	return m.CreateUserFunc(ctx, in)
}

func (m *MockAccountFlows) RecoverPassword(ctx context.Context, email string) error {
	if m.RecoverPasswordFunc == nil {
		return nil
	}
	return m.RecoverPasswordFunc(ctx, email)
}

func (m *MockAccountFlows) RequestUnlock(ctx context.Context, email string) error {
	if m.RequestUnlockFunc == nil {
		return nil
	}
	return m.RequestUnlockFunc(ctx, email)
}

// MockUserService implements UserService for testing
type MockUserService struct {
	ListFunc       func(ctx context.Context, filter models.UserFilter) (*models.UserPage, error)
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	UpdateFunc     func(ctx context.Context, id string, in services.UpdateUserInput) (*models.User, error)
	PatchFunc      func(ctx context.Context, id string, in services.PatchUserInput) (*models.User, error)
	ChangeRoleFunc func(ctx context.Context, id, roleName string) (*models.User, error)
	DeleteFunc     func(ctx context.Context, id string) error
}

func userNotFound(id string) error {
	return models.NewNotFoundError("User", "User with id "+id+" not found")
}

func (m *MockUserService) List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	if m.ListFunc == nil {
		return &models.UserPage{Users: []*models.User{}, Page: 1, PageSize: models.DefaultPageSize}, nil
	}
	return m.ListFunc(ctx, filter)
}

func (m *MockUserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc == nil {
		return nil, userNotFound(id)
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *MockUserService) Update(ctx context.Context, id string, in services.UpdateUserInput) (*models.User, error) {
	if m.UpdateFunc == nil {
		return nil, userNotFound(id)
	}
	return m.UpdateFunc(ctx, id, in)
}

func (m *MockUserService) Patch(ctx context.Context, id string, in services.PatchUserInput) (*models.User, error) {
	if m.PatchFunc == nil {
		return nil, userNotFound(id)
	}
	return m.PatchFunc(ctx, id, in)
}

func (m *MockUserService) ChangeRole(ctx context.Context, id, roleName string) (*models.User, error) {
	if m.ChangeRoleFunc == nil {
		return nil, userNotFound(id)
	}
	return m.ChangeRoleFunc(ctx, id, roleName)
}

func (m *MockUserService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

// MockRoleService implements RoleService for testing
type MockRoleService struct {
	ListFunc    func(ctx context.Context) ([]*models.Role, error)
	GetByIDFunc func(ctx context.Context, id string) (*models.Role, error)
	CreateFunc  func(ctx context.Context, name string, authorities models.Authorities) (*models.Role, error)
	UpdateFunc  func(ctx context.Context, id string, upd models.RoleUpdate) (*models.Role, error)
	DeleteFunc  func(ctx context.Context, id string) error
}

func (m *MockRoleService) List(ctx context.Context) ([]*models.Role, error) {
	if m.ListFunc == nil {
		return []*models.Role{}, nil
	}
	return m.ListFunc(ctx)
}

func (m *MockRoleService) GetByID(ctx context.Context, id string) (*models.Role, error) {
	if m.GetByIDFunc == nil {
		return nil, models.NewNotFoundError("Role", "Role with id "+id+" not found")
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *MockRoleService) Create(ctx context.Context, name string, authorities models.Authorities) (*models.Role, error) {
	if m.CreateFunc == nil {
		return &models.Role{ID: "role-new", Name: name, Authorities: authorities}, nil
	}
	return m.CreateFunc(ctx, name, authorities)
}

func (m *MockRoleService) Update(ctx context.Context, id string, upd models.RoleUpdate) (*models.Role, error) {
	if m.UpdateFunc == nil {
		return nil, models.NewNotFoundError("Role", "Role with id "+id+" not found")
	}
	return m.UpdateFunc(ctx, id, upd)
}

func (m *MockRoleService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

// MockAnnouncementService implements AnnouncementService for testing
type MockAnnouncementService struct {
	ListFunc    func(ctx context.Context) ([]*models.Announcement, error)
	GetByIDFunc func(ctx context.Context, id string) (*models.Announcement, error)
	CreateFunc  func(ctx context.Context, authorID string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error)
	UpdateFunc  func(ctx context.Context, id string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error)
	DeleteFunc  func(ctx context.Context, id string) error
}

func announcementNotFound(id string) error {
	return models.NewNotFoundError("Announcement", "Announcement with id "+id+" not found")
}

func (m *MockAnnouncementService) List(ctx context.Context) ([]*models.Announcement, error) {
	if m.ListFunc == nil {
		return []*models.Announcement{}, nil
	}
	return m.ListFunc(ctx)
}

func (m *MockAnnouncementService) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	if m.GetByIDFunc == nil {
		return nil, announcementNotFound(id)
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *MockAnnouncementService) Create(ctx context.Context, authorID string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error) {
	if m.CreateFunc == nil {
		return &models.Announcement{ID: "announcement-1", Title: in.Title, Description: in.Description, AuthorID: authorID, Attachments: files}, nil
	}
	return m.CreateFunc(ctx, authorID, in, files)
}

func (m *MockAnnouncementService) Update(ctx context.Context, id string, in services.AnnouncementFields, files []models.Attachment) (*models.Announcement, error) {
	if m.UpdateFunc == nil {
		return nil, announcementNotFound(id)
	}
	return m.UpdateFunc(ctx, id, in, files)
}

func (m *MockAnnouncementService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error { return m.Err }
