package dberrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "schema_migrations_pkey"}

	assert.True(t, IsUniqueViolation(dup, "schema_migrations_pkey"))
	assert.True(t, IsUniqueViolation(fmt.Errorf("record: %w", dup), ""))
	assert.False(t, IsUniqueViolation(dup, "users_school_id_email_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}
