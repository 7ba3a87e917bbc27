package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(dup))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}

func TestIsUnavailable(t *testing.T) {
	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(errors.New("syntax error")))
	assert.True(t, IsUnavailable(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}))
	assert.True(t, IsUnavailable(fmt.Errorf("query: %w", context.DeadlineExceeded)))
}

func TestNewClientRequiresDSN(t *testing.T) {
	_, err := NewClient(context.Background())
	assert.Error(t, err)
}
