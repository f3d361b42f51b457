package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
	"github.com/tendant/sealed-content/pkg/sealedcontent/repo/memory"
	"github.com/tendant/sealed-content/pkg/sealedcontent/repo/repotest"
)

func TestMemoryRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) sealedcontent.Repository {
		return memory.New()
	})
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	account := repotest.NewAccount("alice")
	require.NoError(t, repo.CreateAccount(ctx, account))
	object := repotest.NewObject(t, account.ID)
	require.NoError(t, repo.InsertObject(ctx, object))
	require.NoError(t, repo.AppendOwnedFile(ctx, account.ID, object.ID))

	object.OriginalName = "changed"
	got, err := repo.GetObject(ctx, object.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", got.OriginalName)

	owner, err := repo.FindOwner(ctx, object.ID)
	require.NoError(t, err)
	owner.Files[0] = "tampered"

	again, err := repo.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{object.ID}, again.Files)
}

func TestMemoryRepository_ConcurrentAppendSingleOwner(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	object := repotest.NewObject(t, uuid.Nil)
	require.NoError(t, repo.InsertObject(ctx, object))

	const n = 16
	accounts := make([]*sealedcontent.Account, n)
	for i := range accounts {
		accounts[i] = repotest.NewAccount(fmt.Sprintf("user%02d", i))
		require.NoError(t, repo.CreateAccount(ctx, accounts[i]))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, a := range accounts {
		wg.Add(1)
		go func(a *sealedcontent.Account) {
			defer wg.Done()
			if repo.AppendOwnedFile(ctx, a.ID, object.ID) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(a)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
