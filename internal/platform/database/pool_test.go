package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverify/internal/platform/database"
)

func TestNewWithoutURLReturnsNilPool(t *testing.T) {
	pool, err := database.New(database.Config{})
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestNilPoolIsSafe(t *testing.T) {
	var pool *database.Pool

	assert.Error(t, pool.Health(context.Background()))
	assert.NoError(t, pool.Close())
}
