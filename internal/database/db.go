package database

import (
	"errors"
	"net"

	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError translates driver errors into domain errors.
// pgx.ErrNoRows becomes the bare models.ErrNotFound so callers can attach
// their own subject.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.NewAlreadyExistsError("Object", "Duplicate value for unique field")
		case "23503", "23502", "23514": // foreign_key, not_null, check
			return models.NewInvalidArgumentError("Object", "Validation failed for one or more fields")
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return models.NewInvalidArgumentError("Object", "Invalid identifier or value for field")
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return models.NewUnavailableError("DatabaseUnavailable", "Error connecting to the database", err)
	}

	return err
}
