package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name     string
		input    error
		sentinel error
	}{
		{name: "no rows", input: pgx.ErrNoRows, sentinel: models.ErrNotFound},
		{name: "wrapped no rows", input: fmt.Errorf("scan: %w", pgx.ErrNoRows), sentinel: models.ErrNotFound},
		{name: "unique violation", input: &pgconn.PgError{Code: "23505"}, sentinel: models.ErrConflict},
		{name: "foreign key", input: &pgconn.PgError{Code: "23503"}, sentinel: models.ErrBadRequest},
		{name: "check constraint", input: &pgconn.PgError{Code: "23514"}, sentinel: models.ErrBadRequest},
		{name: "bad uuid", input: &pgconn.PgError{Code: "22P02"}, sentinel: models.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapPostgresError(tt.input), tt.sentinel)
		})
	}
}

func TestMapPostgresError_PassThrough(t *testing.T) {
	assert.Nil(t, MapPostgresError(nil))

	other := errors.New("something else")
	assert.Equal(t, other, MapPostgresError(other))

	unknown := &pgconn.PgError{Code: "40001"}
	assert.Equal(t, error(unknown), MapPostgresError(unknown))
}
