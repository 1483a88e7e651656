package models

import (
	"time"
)

type Phone struct {
	Type  string `json:"type"`
	Phone string `json:"phone"`
}

type Address struct {
	Street  string `json:"street"`
	Number  string `json:"number"`
	City    string `json:"city"`
	ZipCode string `json:"zipCode"`
}

type Profile struct {
	Firstname string   `json:"firstname,omitempty"`
	Lastname  string   `json:"lastname,omitempty"`
	Avatar    string   `json:"avatar,omitempty"`
	Phones    []Phone  `json:"phones,omitempty"`
	Address   *Address `json:"address,omitempty"`
}

// User is an account. Security token columns hold SHA-256 digests, never the
// value that was emailed to the user.
type User struct {
	ID                       string    `json:"id"`
	Email                    string    `json:"email"`
	VAT                      string    `json:"vat"`
	PasswordHash             string    `json:"-"`
	Enabled                  bool      `json:"enabled"`
	Verified                 bool      `json:"verified"`
	LoginConsecutiveFailures int       `json:"loginConsecutiveFailures"`
	PasswordChangedAt        time.Time `json:"passwordChangedAt"`
	RoleID                   string    `json:"roleId"`
	Role                     *Role     `json:"role,omitempty"`
	Profile                  *Profile  `json:"profile,omitempty"`
	AnnouncementIDs          []string  `json:"announcements"`

	VerificationToken         *string    `json:"-"`
	VerificationTokenExpires  *time.Time `json:"-"`
	PasswordResetToken        *string    `json:"-"`
	PasswordResetTokenExpires *time.Time `json:"-"`
	EnableUserToken           *string    `json:"-"`
	EnableUserTokenExpires    *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserSummary is the author view embedded in announcements.
type UserSummary struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Profile *Profile `json:"profile,omitempty"`
}

// TokenKind selects one of the three single-use token pairs on a user.
type TokenKind int

const (
	VerificationToken TokenKind = iota + 1
	PasswordResetToken
	EnableUserToken
)

func (k TokenKind) String() string {
	switch k {
	case VerificationToken:
		return "verification"
	case PasswordResetToken:
		return "password_reset"
	case EnableUserToken:
		return "enable_user"
	default:
		return "unknown"
	}
}

// TokenPair is a stored token digest with its expiry. Both halves are always
// written or cleared together.
type TokenPair struct {
	Hash      string
	ExpiresAt time.Time
}

// UserUpdate is an explicit partial update. Only non-nil fields are written;
// Unset lists token pairs to clear.
type UserUpdate struct {
	Email                    *string
	VAT                      *string
	PasswordHash             *string
	PasswordChangedAt        *time.Time
	Enabled                  *bool
	Verified                 *bool
	LoginConsecutiveFailures *int
	RoleID                   *string
	Profile                  *Profile

	Tokens map[TokenKind]TokenPair
	Unset  []TokenKind
}

func (u *UserUpdate) SetEnabled(v bool) *UserUpdate {
	u.Enabled = &v
	return u
}

func (u *UserUpdate) SetVerified(v bool) *UserUpdate {
	u.Verified = &v
	return u
}

func (u *UserUpdate) SetFailures(n int) *UserUpdate {
	u.LoginConsecutiveFailures = &n
	return u
}

func (u *UserUpdate) SetPassword(hash string, changedAt time.Time) *UserUpdate {
	u.PasswordHash = &hash
	u.PasswordChangedAt = &changedAt
	return u
}

func (u *UserUpdate) SetRole(roleID string) *UserUpdate {
	u.RoleID = &roleID
	return u
}

func (u *UserUpdate) SetToken(kind TokenKind, hash string, expiresAt time.Time) *UserUpdate {
	if u.Tokens == nil {
		u.Tokens = make(map[TokenKind]TokenPair)
	}
	u.Tokens[kind] = TokenPair{Hash: hash, ExpiresAt: expiresAt}
	return u
}

func (u *UserUpdate) UnsetToken(kind TokenKind) *UserUpdate {
	u.Unset = append(u.Unset, kind)
	return u
}

// IsEmpty reports whether the update would change nothing.
func (u *UserUpdate) IsEmpty() bool {
	return u.Email == nil && u.VAT == nil && u.PasswordHash == nil &&
		u.PasswordChangedAt == nil && u.Enabled == nil && u.Verified == nil &&
		u.LoginConsecutiveFailures == nil && u.RoleID == nil && u.Profile == nil &&
		len(u.Tokens) == 0 && len(u.Unset) == 0
}

// UserFilter narrows the paginated user listing. Zero values mean no filter.
type UserFilter struct {
	Email     string
	VAT       string
	Enabled   *bool
	Verified  *bool
	RoleNames []string
	Page      int
	PageSize  int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps paging values into range.
func (f *UserFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

func (f UserFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// UserPage is one page of a filtered user listing.
type UserPage struct {
	Users      []*User `json:"data"`
	TotalItems int     `json:"totalItems"`
	Page       int     `json:"currentPage"`
	PageSize   int     `json:"pageSize"`
}

func (p UserPage) TotalPages() int {
	if p.PageSize == 0 {
		return 0
	}
	return (p.TotalItems + p.PageSize - 1) / p.PageSize
}
