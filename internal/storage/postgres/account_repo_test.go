package postgres_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/duel/internal/storage/postgres"
	"github.com/cory-johannsen/duel/internal/testutil"
)

var nameSeq atomic.Int64

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, nameSeq.Add(1))
}

func TestAccountRepository_CreateAndAuthenticate(t *testing.T) {
	repo := postgres.NewAccountRepository(testutil.NewPool(t))
	ctx := context.Background()

	username := uniqueName("user")
	acct, err := repo.Create(ctx, username, "hunter22")
	require.NoError(t, err)
	assert.NotZero(t, acct.ID)
	assert.Equal(t, username, acct.Username)
	assert.NotEqual(t, "hunter22", acct.PasswordHash)

	got, err := repo.Authenticate(ctx, username, "hunter22")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)

	_, err = repo.Authenticate(ctx, username, "wrong")
	assert.ErrorIs(t, err, postgres.ErrInvalidCredentials)

	_, err = repo.Authenticate(ctx, uniqueName("ghost"), "hunter22")
	assert.ErrorIs(t, err, postgres.ErrAccountNotFound)
}

func TestAccountRepository_DuplicateUsername(t *testing.T) {
	repo := postgres.NewAccountRepository(testutil.NewPool(t))
	ctx := context.Background()

	username := uniqueName("dup")
	_, err := repo.Create(ctx, username, "pw")
	require.NoError(t, err)
	_, err = repo.Create(ctx, username, "pw")
	assert.ErrorIs(t, err, postgres.ErrAccountExists)
}
