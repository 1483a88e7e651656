package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/BradenHooton/bulletin/internal/services"
	pkghttp "github.com/BradenHooton/bulletin/pkg/http"
	"github.com/go-chi/chi/v5"
)

const (
	msgRecoverySent  = "If an account with this email exists, a password recovery link has been sent."
	msgUnlockSent    = "If an account with this email exists, an activation user recovery link has been sent."
	msgVerified      = "User verification token has been verified"
	msgPasswordReset = "Password recovery has been executed successfully. New password has been set."
	msgUnlocked      = "Account has been unlocked."
)

// AuthServiceInterface defines the token-consuming side of the account lifecycle
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (string, error)
	VerifyAccount(ctx context.Context, email, token string) error
	ResetPasswordAfterRecovery(ctx context.Context, email, token, newPassword string) error
	UnlockAccount(ctx context.Context, email, token string) error
}

// AccountFlowsInterface defines the flows that email a token
type AccountFlowsInterface interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	RecoverPassword(ctx context.Context, email string) error
	RequestUnlock(ctx context.Context, email string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthServiceInterface
	flows   AccountFlowsInterface
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, flows AccountFlowsInterface, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: service, flows: flows, logger: logger}
}

// Login handles user login
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(w, r, "User", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	token, err := h.service.Login(r.Context(), normalizeEmail(req.Email), req.Password)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Status: true, Token: token})
}

// Register handles public sign-up. The account stays disabled until verified.
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(w, r, "User", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	user, err := h.flows.Register(r.Context(), services.RegisterInput{
		Email:    normalizeEmail(req.Email),
		Password: req.Password,
		VAT:      req.VAT,
		Profile:  req.Profile.toModel(),
	})
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusCreated, user)
}

// VerifyAccount consumes a verification token
// @Router /auth/verify-account [post]
func (h *AuthHandler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeAndValidate(w, r, "VerifyAccount", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	if err := h.service.VerifyAccount(r.Context(), normalizeEmail(req.Email), req.Token); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, MessageResponse{Message: msgVerified})
}

// RecoverPassword emails a reset link. The response never reveals whether
// the account exists.
// @Router /auth/password-recovery/{email} [post]
func (h *AuthHandler) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	if err := h.flows.RecoverPassword(r.Context(), email); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, MessageResponse{Message: msgRecoverySent})
}

// ResetPassword consumes a reset token and sets the new password
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeAndValidate(w, r, "ResetPassword", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	if err := h.service.ResetPasswordAfterRecovery(r.Context(), normalizeEmail(req.Email), req.Token, req.Password); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, MessageResponse{Message: msgPasswordReset})
}

// RequestUnlock emails an unlock link to a locked account
// @Router /auth/request-unlock/{email} [post]
func (h *AuthHandler) RequestUnlock(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	if err := h.flows.RequestUnlock(r.Context(), email); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, MessageResponse{Message: msgUnlockSent})
}

// Unlock consumes an unlock token
// @Router /auth/unlock [post]
func (h *AuthHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeAndValidate(w, r, "UnlockAccount", &req); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	if err := h.service.UnlockAccount(r.Context(), normalizeEmail(req.Email), req.Token); err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, MessageResponse{Message: msgUnlocked})
}

func emailParam(r *http.Request) (string, error) {
	email := normalizeEmail(chi.URLParam(r, "email"))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", &models.ValidationError{
			Message: "User validation failed",
			Fields:  []models.FieldError{{Field: "email", Message: "must be a valid email address"}},
		}
	}
	return email, nil
}
