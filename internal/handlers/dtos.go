package handlers

import (
	"github.com/BradenHooton/bulletin/internal/models"
)

// Request DTOs

type PhoneRequest struct {
	Type  string `json:"type" validate:"required"`
	Phone string `json:"phone" validate:"required,min=10"`
}

type AddressRequest struct {
	Street  string `json:"street" validate:"required"`
	Number  string `json:"number" validate:"required"`
	City    string `json:"city" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
}

type ProfileRequest struct {
	Firstname string          `json:"firstname"`
	Lastname  string          `json:"lastname"`
	Avatar    string          `json:"avatar"`
	Phones    []PhoneRequest  `json:"phones" validate:"omitempty,dive"`
	Address   *AddressRequest `json:"address" validate:"omitempty"`
}

func (p *ProfileRequest) toModel() *models.Profile {
	if p == nil {
		return nil
	}
	profile := &models.Profile{Firstname: p.Firstname, Lastname: p.Lastname, Avatar: p.Avatar}
	for _, ph := range p.Phones {
		profile.Phones = append(profile.Phones, models.Phone{Type: ph.Type, Phone: ph.Phone})
	}
	if p.Address != nil {
		profile.Address = &models.Address{
			Street: p.Address.Street, Number: p.Address.Number, City: p.Address.City, ZipCode: p.Address.ZipCode,
		}
	}
	return profile
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the public sign-up body. Password strength is checked by
// the service so the rules live in one place.
type RegisterRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	VAT      string          `json:"vat" validate:"required,vat"`
	Password string          `json:"password" validate:"required,min=8"`
	Profile  *ProfileRequest `json:"profile" validate:"omitempty"`
}

// TokenRequest carries an emailed token back with its account.
type TokenRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required,hexadecimal"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Token    string `json:"token" validate:"required,hexadecimal"`
	Password string `json:"password" validate:"required,min=8"`
}

// CreateUserRequest is the administrator's create body; role is a role name.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	VAT      string          `json:"vat" validate:"required,vat"`
	Password string          `json:"password" validate:"required,min=8"`
	Profile  *ProfileRequest `json:"profile" validate:"omitempty"`
	Role     string          `json:"role" validate:"required"`
}

type UpdateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	VAT      string          `json:"vat" validate:"required,vat"`
	Profile  *ProfileRequest `json:"profile" validate:"omitempty"`
	Enabled  bool            `json:"enabled"`
	Verified bool            `json:"verified"`
}

type PatchUserRequest struct {
	Profile  *ProfileRequest `json:"profile" validate:"omitempty"`
	Enabled  *bool           `json:"enabled"`
	Verified *bool           `json:"verified"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type AuthorityRequest struct {
	Resource string   `json:"resource" validate:"required,resource"`
	Actions  []string `json:"actions" validate:"required,min=1,dive,action"`
}

type RoleRequest struct {
	Name        string             `json:"name" validate:"required,max=64"`
	Authorities []AuthorityRequest `json:"authorities" validate:"required,dive"`
}

type PatchRoleRequest struct {
	Name        *string             `json:"name" validate:"omitempty,min=1,max=64"`
	Authorities *[]AuthorityRequest `json:"authorities" validate:"omitempty,dive"`
}

func toAuthorities(in []AuthorityRequest) models.Authorities {
	out := make(models.Authorities, 0, len(in))
	for _, a := range in {
		actions := make([]models.Action, 0, len(a.Actions))
		for _, act := range a.Actions {
			actions = append(actions, models.Action(act))
		}
		out = append(out, models.Authority{Resource: models.Resource(a.Resource), Actions: actions})
	}
	return out
}

// AnnouncementRequest holds the text fields of a multipart announcement form.
type AnnouncementRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"required"`
	ViewerStatus []string `json:"viewerStatus" validate:"omitempty,dive,required"`
}

// Response DTOs

// LoginResponse carries the access token.
type LoginResponse struct {
	Status bool   `json:"status"`
	Token  string `json:"token"`
}

// MessageResponse is the data of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}
