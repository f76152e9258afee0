package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapDBError(t *testing.T) {
	other := errors.New("boom")

	assert.NoError(t, mapDBError(nil))
	assert.ErrorIs(t, mapDBError(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, mapDBError(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)
	assert.ErrorIs(t, mapDBError(&pgconn.PgError{Code: "23505"}), ErrConflict)
	assert.Equal(t, other, mapDBError(other))

	fk := &pgconn.PgError{Code: "23503"}
	assert.Equal(t, error(fk), mapDBError(fk))
}

func TestContainsPattern_EscapesWildcards(t *testing.T) {
	assert.Equal(t, "%golang%", containsPattern("golang"))
	assert.Equal(t, `%100\%%`, containsPattern("100%"))
	assert.Equal(t, `%snake\_case%`, containsPattern("snake_case"))
	assert.Equal(t, `%a\\b%`, containsPattern(`a\b`))
}
