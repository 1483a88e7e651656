package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/bulletin/internal/auth"
	"github.com/BradenHooton/bulletin/internal/database"
	"github.com/BradenHooton/bulletin/internal/models"
	pkgauth "github.com/BradenHooton/bulletin/pkg/auth"
	pkglogger "github.com/BradenHooton/bulletin/pkg/logger"
)

const testJWTSecret = "test-secret-32-characters-long!!"

// MockUserRepository implements UserRepository and AuthorRepository for testing
type MockUserRepository struct {
	GetByIDFunc            func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc         func(ctx context.Context, email string) (*models.User, error)
	ExistsByEmailFunc      func(ctx context.Context, email string) (bool, error)
	ExistsByVATFunc        func(ctx context.Context, vat string) (bool, error)
	ListAllFunc            func(ctx context.Context) ([]*models.User, error)
	ListFunc               func(ctx context.Context, filter models.UserFilter) (*models.UserPage, error)
	CreateFunc             func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc             func(ctx context.Context, id string, upd *models.UserUpdate) (*models.User, error)
	UpdateByEmailFunc      func(ctx context.Context, email string, upd *models.UserUpdate) (*models.User, error)
	ConsumeTokenFunc       func(ctx context.Context, email string, kind models.TokenKind, tokenHash string, now time.Time, upd *models.UserUpdate) (*models.User, error)
	DeleteFunc             func(ctx context.Context, id string) error
	DeleteByEmailFunc      func(ctx context.Context, email string) error
	CountByRoleFunc        func(ctx context.Context, roleID string) (int, error)
	AddAnnouncementFunc    func(ctx context.Context, userID, announcementID string) error
	RemoveAnnouncementFunc func(ctx context.Context, userID, announcementID string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.ExistsByEmailFunc != nil {
		return m.ExistsByEmailFunc(ctx, email)
	}
	return false, nil
}

func (m *MockUserRepository) ExistsByVAT(ctx context.Context, vat string) (bool, error) {
	if m.ExistsByVATFunc != nil {
		return m.ExistsByVATFunc(ctx, vat)
	}
	return false, nil
}

func (m *MockUserRepository) ListAll(ctx context.Context) ([]*models.User, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	return &models.UserPage{Users: []*models.User{}, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id string, upd *models.UserUpdate) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, upd)
	}
	return nil, models.NewNotFoundError("User", "User not found")
}

func (m *MockUserRepository) UpdateByEmail(ctx context.Context, email string, upd *models.UserUpdate) (*models.User, error) {
	if m.UpdateByEmailFunc != nil {
		return m.UpdateByEmailFunc(ctx, email, upd)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) ConsumeToken(ctx context.Context, email string, kind models.TokenKind, tokenHash string, now time.Time, upd *models.UserUpdate) (*models.User, error) {
	if m.ConsumeTokenFunc != nil {
		return m.ConsumeTokenFunc(ctx, email, kind, tokenHash, now, upd)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) DeleteByEmail(ctx context.Context, email string) error {
	if m.DeleteByEmailFunc != nil {
		return m.DeleteByEmailFunc(ctx, email)
	}
	return nil
}

func (m *MockUserRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	if m.CountByRoleFunc != nil {
		return m.CountByRoleFunc(ctx, roleID)
	}
	return 0, nil
}

func (m *MockUserRepository) AddAnnouncement(ctx context.Context, userID, announcementID string) error {
	if m.AddAnnouncementFunc != nil {
		return m.AddAnnouncementFunc(ctx, userID, announcementID)
	}
	return nil
}

func (m *MockUserRepository) RemoveAnnouncement(ctx context.Context, userID, announcementID string) error {
	if m.RemoveAnnouncementFunc != nil {
		return m.RemoveAnnouncementFunc(ctx, userID, announcementID)
	}
	return nil
}

// MockRoleRepository implements RoleRepository for testing
type MockRoleRepository struct {
	GetByIDFunc      func(ctx context.Context, id string) (*models.Role, error)
	GetByNameFunc    func(ctx context.Context, name string) (*models.Role, error)
	ListFunc         func(ctx context.Context) ([]*models.Role, error)
	ExistsByNameFunc func(ctx context.Context, name string) (bool, error)
	CreateFunc       func(ctx context.Context, role *models.Role) (*models.Role, error)
	UpdateFunc       func(ctx context.Context, id string, upd models.RoleUpdate) (*models.Role, error)
	DeleteFunc       func(ctx context.Context, id string) error
}

func (m *MockRoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

// GetByName falls back to the built-in roles.
func (m *MockRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(ctx, name)
	}
	for _, r := range models.DefaultRoles() {
		if r.Name == name {
			r.ID = "role-" + name
			return &r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockRoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.Role{}, nil
}

func (m *MockRoleRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	if m.ExistsByNameFunc != nil {
		return m.ExistsByNameFunc(ctx, name)
	}
	return false, nil
}

func (m *MockRoleRepository) Create(ctx context.Context, role *models.Role) (*models.Role, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, role)
	}
	created := *role
	created.ID = "role-new"
	return &created, nil
}

func (m *MockRoleRepository) Update(ctx context.Context, id string, upd models.RoleUpdate) (*models.Role, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, upd)
	}
	return nil, models.ErrNotFound
}

func (m *MockRoleRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockAnnouncementRepository implements AnnouncementRepository for testing
type MockAnnouncementRepository struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.Announcement, error)
	ListFunc    func(ctx context.Context) ([]*models.Announcement, error)
	CreateFunc  func(ctx context.Context, in models.AnnouncementInput, attachmentIDs []string) (*models.Announcement, error)
	UpdateFunc  func(ctx context.Context, id string, upd models.AnnouncementUpdate) error
	DeleteFunc  func(ctx context.Context, id string) (*models.Announcement, error)
}

func (m *MockAnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAnnouncementRepository) List(ctx context.Context) ([]*models.Announcement, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.Announcement{}, nil
}

func (m *MockAnnouncementRepository) Create(ctx context.Context, in models.AnnouncementInput, attachmentIDs []string) (*models.Announcement, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, in, attachmentIDs)
	}
	return &models.Announcement{
		ID:            "announcement-1",
		Title:         in.Title,
		Description:   in.Description,
		AuthorID:      in.AuthorID,
		AttachmentIDs: attachmentIDs,
		ViewerStatus:  in.ViewerStatus,
	}, nil
}

func (m *MockAnnouncementRepository) Update(ctx context.Context, id string, upd models.AnnouncementUpdate) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, upd)
	}
	return nil
}

func (m *MockAnnouncementRepository) Delete(ctx context.Context, id string) (*models.Announcement, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

// MockAttachmentRepository implements AttachmentRepository for testing
type MockAttachmentRepository struct {
	CreateManyFunc  func(ctx context.Context, attachments []models.Attachment) ([]models.Attachment, error)
	DeleteByIDsFunc func(ctx context.Context, ids []string) ([]string, error)
}

func (m *MockAttachmentRepository) CreateMany(ctx context.Context, attachments []models.Attachment) ([]models.Attachment, error) {
	if m.CreateManyFunc != nil {
		return m.CreateManyFunc(ctx, attachments)
	}
	out := make([]models.Attachment, len(attachments))
	for i, a := range attachments {
		a.ID = "att-" + a.SavedName
		out[i] = a
	}
	return out, nil
}

func (m *MockAttachmentRepository) DeleteByIDs(ctx context.Context, ids []string) ([]string, error) {
	if m.DeleteByIDsFunc != nil {
		return m.DeleteByIDsFunc(ctx, ids)
	}
	return []string{}, nil
}

// MockUnitOfWork records what happened to the transaction.
type MockUnitOfWork struct {
	StartErr    error
	CommitErr   error
	Started     bool
	Committed   bool
	RolledBack  bool
	ContextSeen context.Context
}

type mockTxKey struct{}

func (u *MockUnitOfWork) Start(ctx context.Context) (context.Context, error) {
	if u.StartErr != nil {
		return ctx, u.StartErr
	}
	u.Started = true
	u.ContextSeen = context.WithValue(ctx, mockTxKey{}, u)
	return u.ContextSeen, nil
}

func (u *MockUnitOfWork) Commit(ctx context.Context) error {
	if u.CommitErr != nil {
		return u.CommitErr
	}
	u.Committed = true
	return nil
}

func (u *MockUnitOfWork) Rollback(ctx context.Context) error {
	if !u.Committed {
		u.RolledBack = true
	}
	return nil
}

// InTransaction reports whether ctx was derived from this unit of work.
func (u *MockUnitOfWork) InTransaction(ctx context.Context) bool {
	got, _ := ctx.Value(mockTxKey{}).(*MockUnitOfWork)
	return got == u
}

// MockUnitOfWorkFactory hands out one MockUnitOfWork per call.
type MockUnitOfWorkFactory struct {
	Configure func(u *MockUnitOfWork)
	Created   []*MockUnitOfWork
}

func (f *MockUnitOfWorkFactory) NewUnitOfWork() database.UnitOfWork {
	u := &MockUnitOfWork{}
	if f.Configure != nil {
		f.Configure(u)
	}
	f.Created = append(f.Created, u)
	return u
}

func (f *MockUnitOfWorkFactory) Last() *MockUnitOfWork {
	if len(f.Created) == 0 {
		return nil
	}
	return f.Created[len(f.Created)-1]
}

// MockFileRemover records removed paths.
type MockFileRemover struct {
	mu      sync.Mutex
	Err     error
	Removed [][]string
}

func (m *MockFileRemover) RemoveFiles(ctx context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removed = append(m.Removed, paths)
	return m.Err
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc  func(ctx context.Context, to, url string) error
	SendPasswordResetEmailFunc func(ctx context.Context, to, url string) error
	SendUnlockAccountEmailFunc func(ctx context.Context, to, url string) error
	Sent                       []string
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, to, url string) error {
	m.Sent = append(m.Sent, url)
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, to, url)
	}
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, to, url string) error {
	m.Sent = append(m.Sent, url)
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, to, url)
	}
	return nil
}

func (m *MockEmailService) SendUnlockAccountEmail(ctx context.Context, to, url string) error {
	m.Sent = append(m.Sent, url)
	if m.SendUnlockAccountEmailFunc != nil {
		return m.SendUnlockAccountEmailFunc(ctx, to, url)
	}
	return nil
}

// recorder counts outcomes reported by services.
type recorder struct {
	mu     sync.Mutex
	events map[string]int
}

func newRecorder() *recorder {
	return &recorder{events: make(map[string]int)}
}

func (r *recorder) RecordAuthEvent(event, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event+":"+outcome]++
}

func (r *recorder) RecordFileCleanup(phase, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events["cleanup_"+phase+":"+outcome]++
}

func (r *recorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[key]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testSettings() AuthSettings {
	return AuthSettings{
		SaltRounds:           4,
		MaxLoginFailures:     3,
		VerificationTokenTTL: 24 * time.Hour,
		PasswordResetTTL:     10 * time.Minute,
		UnlockTokenTTL:       10 * time.Minute,
	}
}

// newTestAuthService builds an AuthService without timing delay.
func newTestAuthService(users UserRepository, roles RoleRepository) (*AuthService, *recorder) {
	logger := discardLogger()
	rec := newRecorder()
	svc := NewAuthService(users, roles, auth.NewTokenManager(testJWTSecret, time.Hour), nil,
		testSettings(), logger, pkglogger.NewAuditLogger(logger), rec)
	return svc, rec
}

// NewTestUser returns a verified, enabled CLIENT account with the given password.
func NewTestUser(id, email, password string) *models.User {
	hash, err := pkgauth.HashPassword(password, 4)
	if err != nil {
		panic(err)
	}
	role := models.DefaultRoles()[2]
	role.ID = "role-" + role.Name
	return &models.User{
		ID:                id,
		Email:             email,
		VAT:               "1234567890",
		PasswordHash:      hash,
		Enabled:           true,
		Verified:          true,
		PasswordChangedAt: time.Now().Add(-24 * time.Hour),
		RoleID:            role.ID,
		Role:              &role,
		AnnouncementIDs:   []string{},
	}
}

// NewTestUserUnverified returns a pending registration.
func NewTestUserUnverified(id, email, password string) *models.User {
	u := NewTestUser(id, email, password)
	u.Enabled = false
	u.Verified = false
	return u
}

// NewTestUserLocked returns an account disabled by the lockout.
func NewTestUserLocked(id, email, password string) *models.User {
	u := NewTestUser(id, email, password)
	u.Enabled = false
	return u
}

// WithToken stores the digest of raw as the token of the given kind.
func WithToken(u *models.User, kind models.TokenKind, raw string, expires time.Time) *models.User {
	hash := pkgauth.HashSecurityToken(raw)
	switch kind {
	case models.VerificationToken:
		u.VerificationToken, u.VerificationTokenExpires = &hash, &expires
	case models.PasswordResetToken:
		u.PasswordResetToken, u.PasswordResetTokenExpires = &hash, &expires
	case models.EnableUserToken:
		u.EnableUserToken, u.EnableUserTokenExpires = &hash, &expires
	}
	return u
}
