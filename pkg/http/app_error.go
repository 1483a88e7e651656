package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/bulletin/internal/models"
)

var kindStatus = map[models.ErrorKind]int{
	models.KindNotFound:        http.StatusNotFound,
	models.KindAlreadyExists:   http.StatusConflict,
	models.KindInvalidArgument: http.StatusBadRequest,
	models.KindNotAuthorized:   http.StatusUnauthorized,
	models.KindForbidden:       http.StatusForbidden,
	models.KindServer:          http.StatusInternalServerError,
	models.KindUnavailable:     http.StatusServiceUnavailable,
}

// StatusFor returns the HTTP status an error should be reported with.
func StatusFor(err error) int {
	if appErr, ok := models.AsAppError(err); ok {
		if status, ok := kindStatus[appErr.Kind]; ok {
			return status
		}
	}

	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// WriteAppError renders err as {"code", "message"}. Server faults are logged
// with their cause; client faults at warn. Unclassified errors never leak
// their text.
func WriteAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		fields := make([]FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, FieldError{Field: f.Field, Message: f.Message})
		}
		logger.Warn("[ValidationError] "+verr.Message, slog.Int("fields", len(fields)))
		WriteValidationError(w, verr.Message, fields)
		return
	}

	code, message := "InternalServerError", "An unexpected error occurred"
	if appErr, ok := models.AsAppError(err); ok {
		code, message = appErr.Code, appErr.Message
	} else {
		switch status {
		case http.StatusNotFound:
			code, message = "NotFound", "Resource not found"
		case http.StatusConflict:
			code, message = "AlreadyExists", "Resource already exists"
		case http.StatusBadRequest:
			code, message = "InvalidArgument", "Invalid request"
		case http.StatusUnauthorized:
			code, message = "NotAuthorized", "Not authorized"
		case http.StatusForbidden:
			code, message = "Forbidden", "Forbidden"
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("["+code+"] "+message, slog.Any("error", err))
	} else {
		logger.Warn("["+code+"] "+message)
	}

	WriteError(w, status, code, message)
}
