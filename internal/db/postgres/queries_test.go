package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"serotonyl.ru/tradedesk/internal/common"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, common.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), common.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, common.ErrConflict},
		{"connection failure", &pgconn.PgError{Code: "08006"}, common.ErrStoreUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, common.ErrStoreUnavailable},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, common.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, common.ErrStoreUnavailable},
		{"already classified", common.ErrNotFound, common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Classify(tt.in), tt.want)
		})
	}
}

func TestClassifyKeepsOtherErrors(t *testing.T) {
	assert.Nil(t, Classify(nil))

	syntax := &pgconn.PgError{Code: "42601"}
	got := Classify(syntax)
	assert.Equal(t, error(syntax), got)
	assert.False(t, errors.Is(got, common.ErrStoreUnavailable))
	assert.False(t, errors.Is(got, common.ErrConflict))
}
