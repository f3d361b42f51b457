package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
	"github.com/tendant/sealed-content/pkg/sealedcontent/repo/bolt"
	"github.com/tendant/sealed-content/pkg/sealedcontent/repo/repotest"
)

func openTemp(t *testing.T) *bolt.Repository {
	t.Helper()
	repo, err := bolt.Open(filepath.Join(t.TempDir(), "data", "sealed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestBoltRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) sealedcontent.Repository {
		return openTemp(t)
	})
}

func TestBoltRepository_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sealed.db")
	ctx := context.Background()

	repo, err := bolt.Open(path)
	require.NoError(t, err)

	account := repotest.NewAccount("alice")
	require.NoError(t, repo.CreateAccount(ctx, account))
	object := repotest.NewObject(t, account.ID)
	require.NoError(t, repo.InsertObject(ctx, object))
	require.NoError(t, repo.AppendOwnedFile(ctx, account.ID, object.ID))
	require.NoError(t, repo.Close())

	repo, err = bolt.Open(path)
	require.NoError(t, err)
	defer repo.Close()

	owner, err := repo.FindOwner(ctx, object.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, owner.ID)
	assert.Equal(t, []string{object.ID}, owner.Files)

	got, err := repo.GetObject(ctx, object.ID)
	require.NoError(t, err)
	assert.Equal(t, object.DeleteCapability, got.DeleteCapability)
	assert.True(t, object.CreatedAt.Equal(got.CreatedAt))
}
