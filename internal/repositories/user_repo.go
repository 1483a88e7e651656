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

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// userSelect reads a user joined with its role. The FROM source is substituted
// so the same column list serves plain reads and UPDATE ... RETURNING CTEs.
const userColumns = `
	u.id, u.email, u.vat, u.password_hash, u.enabled, u.verified,
	u.login_consecutive_failures, u.password_changed_at, u.role_id, u.profile, u.announcement_ids,
	u.verification_token, u.verification_token_expires,
	u.password_reset_token, u.password_reset_token_expires,
	u.enable_user_token, u.enable_user_token_expires,
	u.created_at, u.updated_at,
	r.name, r.authorities, r.created_at, r.updated_at`

func userSelect(source string) string {
	return `SELECT ` + userColumns + ` FROM ` + source + ` u JOIN roles r ON r.id = u.role_id`
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role models.Role
	var profile, authorities []byte

	err := scanner.Scan(
		&user.ID, &user.Email, &user.VAT, &user.PasswordHash, &user.Enabled, &user.Verified,
		&user.LoginConsecutiveFailures, &user.PasswordChangedAt, &user.RoleID, &profile,
		pq.Array(&user.AnnouncementIDs),
		&user.VerificationToken, &user.VerificationTokenExpires,
		&user.PasswordResetToken, &user.PasswordResetTokenExpires,
		&user.EnableUserToken, &user.EnableUserTokenExpires,
		&user.CreatedAt, &user.UpdatedAt,
		&role.Name, &authorities, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if len(profile) > 0 {
		user.Profile = &models.Profile{}
		if err := json.Unmarshal(profile, user.Profile); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
	}
	if err := json.Unmarshal(authorities, &role.Authorities); err != nil {
		return nil, fmt.Errorf("failed to decode authorities: %w", err)
	}
	if user.AnnouncementIDs == nil {
		user.AnnouncementIDs = []string{}
	}

	role.ID = user.RoleID
	user.Role = &role
	return &user, nil
}

// scanUserRows iterates through rows and scans each into User models
func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func notFoundUser(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NewNotFoundError("User", "User not found")
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := userSelect("users") + ` WHERE u.id = $1`

	user, err := scanUserRow(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundUser(err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := userSelect("users") + ` WHERE u.email = $1`

	user, err := scanUserRow(r.db.Querier(ctx).QueryRow(ctx, query, email))
	if err != nil {
		return nil, notFoundUser(err)
	}
	return user, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByVAT(ctx context.Context, vat string) (bool, error) {
	var exists bool
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE vat = $1)`, vat).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]*models.User, error) {
	query := userSelect("users") + ` ORDER BY u.created_at DESC`

	rows, err := r.db.Querier(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", database.MapPostgresError(err))
	}
	return scanUserRows(rows)
}

// List returns one filtered page plus the total match count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	filter.Normalize()

	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Email != "" {
		where = append(where, "u.email ILIKE "+arg(likePrefix(filter.Email)))
	}
	if filter.VAT != "" {
		where = append(where, "u.vat ILIKE "+arg(likePrefix(filter.VAT)))
	}
	if filter.Enabled != nil {
		where = append(where, "u.enabled = "+arg(*filter.Enabled))
	}
	if filter.Verified != nil {
		where = append(where, "u.verified = "+arg(*filter.Verified))
	}
	if len(filter.RoleNames) > 0 {
		where = append(where, "r.name = ANY("+arg(pq.Array(filter.RoleNames))+")")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	q := r.db.Querier(ctx)

	var total int
	countQuery := `SELECT COUNT(*) FROM users u JOIN roles r ON r.id = u.role_id` + clause
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", database.MapPostgresError(err))
	}

	pageQuery := userSelect("users") + clause +
		` ORDER BY u.created_at DESC LIMIT ` + arg(filter.PageSize) + ` OFFSET ` + arg(filter.Offset())

	rows, err := q.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", database.MapPostgresError(err))
	}
	users, err := scanUserRows(rows)
	if err != nil {
		return nil, err
	}

	return &models.UserPage{
		Users:      users,
		TotalItems: total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}, nil
}

// likePrefix escapes LIKE wildcards so the filter is a literal prefix match.
func likePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s) + "%"
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.PasswordChangedAt.IsZero() {
		user.PasswordChangedAt = now
	}
	if user.AnnouncementIDs == nil {
		user.AnnouncementIDs = []string{}
	}

	profile, err := encodeProfile(user.Profile)
	if err != nil {
		return nil, err
	}

	query := `
		WITH inserted AS (
			INSERT INTO users (
				id, email, vat, password_hash, enabled, verified, login_consecutive_failures,
				password_changed_at, role_id, profile, announcement_ids,
				verification_token, verification_token_expires,
				password_reset_token, password_reset_token_expires,
				enable_user_token, enable_user_token_expires,
				created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
			RETURNING *
		)
	` + userSelect("inserted")

	created, err := scanUserRow(r.db.Querier(ctx).QueryRow(ctx, query,
		user.ID, user.Email, user.VAT, user.PasswordHash, user.Enabled, user.Verified,
		user.LoginConsecutiveFailures, user.PasswordChangedAt, user.RoleID, profile,
		pq.Array(user.AnnouncementIDs),
		user.VerificationToken, user.VerificationTokenExpires,
		user.PasswordResetToken, user.PasswordResetTokenExpires,
		user.EnableUserToken, user.EnableUserTokenExpires,
		user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// The join found no role row.
			return nil, models.NewNotFoundError("Role", "Role not found")
		}
		return nil, err
	}
	return created, nil
}

func encodeProfile(p *models.Profile) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile: %w", err)
	}
	return b, nil
}

func tokenColumns(kind models.TokenKind) (string, string) {
	switch kind {
	case models.VerificationToken:
		return "verification_token", "verification_token_expires"
	case models.PasswordResetToken:
		return "password_reset_token", "password_reset_token_expires"
	case models.EnableUserToken:
		return "enable_user_token", "enable_user_token_expires"
	default:
		panic(fmt.Sprintf("unknown token kind %d", kind))
	}
}

// buildUserSet turns an explicit update into SET clauses. Arguments are appended to args.
func buildUserSet(upd *models.UserUpdate, args *[]any) ([]string, error) {
	var set []string
	add := func(col string, v any) {
		*args = append(*args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(*args)))
	}

	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.VAT != nil {
		add("vat", *upd.VAT)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.PasswordChangedAt != nil {
		add("password_changed_at", *upd.PasswordChangedAt)
	}
	if upd.Enabled != nil {
		add("enabled", *upd.Enabled)
	}
	if upd.Verified != nil {
		add("verified", *upd.Verified)
	}
	if upd.LoginConsecutiveFailures != nil {
		add("login_consecutive_failures", *upd.LoginConsecutiveFailures)
	}
	if upd.RoleID != nil {
		add("role_id", *upd.RoleID)
	}
	if upd.Profile != nil {
		profile, err := encodeProfile(upd.Profile)
		if err != nil {
			return nil, err
		}
		add("profile", profile)
	}
	for kind, pair := range upd.Tokens {
		tokenCol, expiresCol := tokenColumns(kind)
		add(tokenCol, pair.Hash)
		add(expiresCol, pair.ExpiresAt)
	}
	for _, kind := range upd.Unset {
		tokenCol, expiresCol := tokenColumns(kind)
		set = append(set, tokenCol+" = NULL", expiresCol+" = NULL")
	}

	add("updated_at", time.Now().UTC())
	return set, nil
}

// updateWhere applies upd to the single row matching where and returns it.
// A miss surfaces as models.ErrNotFound.
func (r *UserRepository) updateWhere(ctx context.Context, upd *models.UserUpdate, where string, whereArgs ...any) (*models.User, error) {
	args := append([]any{}, whereArgs...)
	set, err := buildUserSet(upd, &args)
	if err != nil {
		return nil, err
	}

	query := `
		WITH updated AS (
			UPDATE users SET ` + strings.Join(set, ", ") + `
			WHERE ` + where + `
			RETURNING *
		)
	` + userSelect("updated")

	return scanUserRow(r.db.Querier(ctx).QueryRow(ctx, query, args...))
}

func (r *UserRepository) Update(ctx context.Context, id string, upd *models.UserUpdate) (*models.User, error) {
	user, err := r.updateWhere(ctx, upd, "id = $1", id)
	if err != nil {
		return nil, notFoundUser(err)
	}
	return user, nil
}

// UpdateByEmail returns models.ErrNotFound (bare) when no user has the email,
// so callers can decide whether absence is an error.
func (r *UserRepository) UpdateByEmail(ctx context.Context, email string, upd *models.UserUpdate) (*models.User, error) {
	return r.updateWhere(ctx, upd, "email = $1", email)
}

// ConsumeToken applies upd only if the stored token digest of the given kind
// matches and has not expired at now. One statement, so at most one caller
// can win for a given token. A miss returns models.ErrNotFound (bare).
func (r *UserRepository) ConsumeToken(ctx context.Context, email string, kind models.TokenKind, tokenHash string, now time.Time, upd *models.UserUpdate) (*models.User, error) {
	tokenCol, expiresCol := tokenColumns(kind)
	where := fmt.Sprintf("email = $1 AND %s = $2 AND %s > $3", tokenCol, expiresCol)
	return r.updateWhere(ctx, upd, where, email, tokenHash, now)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("User", "User not found")
	}
	return nil
}

func (r *UserRepository) DeleteByEmail(ctx context.Context, email string) error {
	result, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM users WHERE email = $1`, email)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("User", "User not found")
	}
	return nil
}

// AddAnnouncement puts announcementID at the front of the user's list.
func (r *UserRepository) AddAnnouncement(ctx context.Context, userID, announcementID string) error {
	query := `
		UPDATE users SET announcement_ids = array_prepend($2::text, announcement_ids), updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Querier(ctx).Exec(ctx, query, userID, announcementID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("User", "User not found")
	}
	return nil
}

func (r *UserRepository) RemoveAnnouncement(ctx context.Context, userID, announcementID string) error {
	query := `
		UPDATE users SET announcement_ids = array_remove(announcement_ids, $2::text), updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.Querier(ctx).Exec(ctx, query, userID, announcementID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("User", "User not found")
	}
	return nil
}

func (r *UserRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	var n int
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&n)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return n, nil
}

// DeleteExpiredRegistrations removes users who never verified before their
// verification token expired.
func (r *UserRepository) DeleteExpiredRegistrations(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM users WHERE verified = FALSE AND verification_token_expires < $1`
	result, err := r.db.Querier(ctx).Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// ClearExpiredTokens drops expired password-reset and unlock pairs.
func (r *UserRepository) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users SET
			password_reset_token = CASE WHEN password_reset_token_expires < $1 THEN NULL ELSE password_reset_token END,
			password_reset_token_expires = CASE WHEN password_reset_token_expires < $1 THEN NULL ELSE password_reset_token_expires END,
			enable_user_token = CASE WHEN enable_user_token_expires < $1 THEN NULL ELSE enable_user_token END,
			enable_user_token_expires = CASE WHEN enable_user_token_expires < $1 THEN NULL ELSE enable_user_token_expires END,
			updated_at = NOW()
		WHERE password_reset_token_expires < $1 OR enable_user_token_expires < $1
	`
	result, err := r.db.Querier(ctx).Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
