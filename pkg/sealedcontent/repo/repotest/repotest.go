// Package repotest holds a behavioural test suite shared by every
// sealedcontent.Repository implementation.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) sealedcontent.Repository

// Run exercises repo against the Repository contract.
func Run(t *testing.T, newRepo Factory) {
	t.Run("ObjectOperations", func(t *testing.T) { testObjectOperations(t, newRepo(t)) })
	t.Run("Ownership", func(t *testing.T) { testOwnership(t, newRepo(t)) })
	t.Run("DeleteObjectUnlinks", func(t *testing.T) { testDeleteObjectUnlinks(t, newRepo(t)) })
	t.Run("DeleteAccountOrphans", func(t *testing.T) { testDeleteAccountOrphans(t, newRepo(t)) })
	t.Run("AccountLookups", func(t *testing.T) { testAccountLookups(t, newRepo(t)) })
	t.Run("ListObjects", func(t *testing.T) { testListObjects(t, newRepo(t)) })
}

// NewObject returns an object record with a fresh id.
func NewObject(t *testing.T, ownerID uuid.UUID) *sealedcontent.Object {
	t.Helper()
	id, err := sealedcontent.NewObjectID()
	require.NoError(t, err)
	return &sealedcontent.Object{
		ID:               id,
		OwnerID:          ownerID,
		OriginalName:     "report.txt",
		ContentType:      "text/plain",
		SizeBytes:        11,
		Digest:           "00",
		DeleteCapability: "cap",
		BlobKey:          "uploads/" + id + ".sealed",
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewAccount returns an account record for username.
func NewAccount(username string) *sealedcontent.Account {
	return &sealedcontent.Account{
		ID:           uuid.New(),
		Username:     username,
		SafeUsername: sealedcontent.SafeUsername(username),
		PasswordHash: "hash",
		Token:        "token-" + uuid.NewString(),
		Privilege:    sealedcontent.PrivilegeUser,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func testObjectOperations(t *testing.T, repo sealedcontent.Repository) {
	ctx := context.Background()
	object := NewObject(t, uuid.New())

	require.NoError(t, repo.InsertObject(ctx, object))

	got, err := repo.GetObject(ctx, object.ID)
	require.NoError(t, err)
	assert.Equal(t, object.ID, got.ID)
	assert.Equal(t, object.OriginalName, got.OriginalName)
	assert.Equal(t, object.ContentType, got.ContentType)
	assert.Equal(t, object.SizeBytes, got.SizeBytes)
	assert.Equal(t, object.Digest, got.Digest)
	assert.Equal(t, object.DeleteCapability, got.DeleteCapability)
	assert.Equal(t, object.BlobKey, got.BlobKey)
	assert.True(t, object.CreatedAt.Equal(got.CreatedAt))

	// a second insert under the same id never replaces the first
	dup := *object
	dup.OriginalName = "other.txt"
	err = repo.InsertObject(ctx, &dup)
	assert.ErrorIs(t, err, sealedcontent.ErrDuplicateID)
	got, err = repo.GetObject(ctx, object.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", got.OriginalName)

	_, err = repo.GetObject(ctx, "missing")
	assert.ErrorIs(t, err, sealedcontent.ErrNotFound)

	existed, err := repo.DeleteObject(ctx, object.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = repo.DeleteObject(ctx, object.ID)
	require.NoError(t, err)
	assert.False(t, existed)
}

func testOwnership(t *testing.T, repo sealedcontent.Repository) {
	ctx := context.Background()
	alice := NewAccount("alice")
	bob := NewAccount("bob")
	require.NoError(t, repo.CreateAccount(ctx, alice))
	require.NoError(t, repo.CreateAccount(ctx, bob))

	object := NewObject(t, alice.ID)
	require.NoError(t, repo.InsertObject(ctx, object))

	_, err := repo.FindOwner(ctx, object.ID)
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)

	require.NoError(t, repo.AppendOwnedFile(ctx, alice.ID, object.ID))
	// linking again to the same owner is a no-op
	require.NoError(t, repo.AppendOwnedFile(ctx, alice.ID, object.ID))

	owner, err := repo.FindOwner(ctx, object.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, owner.ID)
	assert.Equal(t, []string{object.ID}, owner.Files)
	assert.True(t, owner.Owns(object.ID))

	err = repo.AppendOwnedFile(ctx, bob.ID, object.ID)
	assert.ErrorIs(t, err, sealedcontent.ErrDuplicateID)

	err = repo.AppendOwnedFile(ctx, uuid.New(), object.ID)
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)

	err = repo.AppendOwnedFile(ctx, bob.ID, "missing")
	assert.ErrorIs(t, err, sealedcontent.ErrNotFound)

	require.NoError(t, repo.RemoveOwnedFile(ctx, alice.ID, object.ID))
	_, err = repo.FindOwner(ctx, object.ID)
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)

	got, err := repo.GetAccount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Files)
}

func testDeleteObjectUnlinks(t *testing.T, repo sealedcontent.Repository) {
	ctx := context.Background()
	alice := NewAccount("alice")
	require.NoError(t, repo.CreateAccount(ctx, alice))

	keep := NewObject(t, alice.ID)
	drop := NewObject(t, alice.ID)
	for _, o := range []*sealedcontent.Object{keep, drop} {
		require.NoError(t, repo.InsertObject(ctx, o))
		require.NoError(t, repo.AppendOwnedFile(ctx, alice.ID, o.ID))
	}

	existed, err := repo.DeleteObject(ctx, drop.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	got, err := repo.GetAccount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, got.Files)

	_, err = repo.FindOwner(ctx, drop.ID)
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)
}

func testDeleteAccountOrphans(t *testing.T, repo sealedcontent.Repository) {
	ctx := context.Background()
	alice := NewAccount("alice")
	require.NoError(t, repo.CreateAccount(ctx, alice))

	object := NewObject(t, alice.ID)
	require.NoError(t, repo.InsertObject(ctx, object))
	require.NoError(t, repo.AppendOwnedFile(ctx, alice.ID, object.ID))

	require.NoError(t, repo.DeleteAccount(ctx, alice.ID))

	// metadata survives, ownership does not
	_, err := repo.GetObject(ctx, object.ID)
	require.NoError(t, err)
	_, err = repo.FindOwner(ctx, object.ID)
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)

	_, err = repo.GetAccount(ctx, alice.ID)
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)
	_, err = repo.GetAccountByToken(ctx, alice.Token)
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)

	err = repo.DeleteAccount(ctx, alice.ID)
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)

	// the username is free again
	again := NewAccount("Alice")
	require.NoError(t, repo.CreateAccount(ctx, again))
}

func testAccountLookups(t *testing.T, repo sealedcontent.Repository) {
	ctx := context.Background()
	carol := NewAccount("Carol")
	require.NoError(t, repo.CreateAccount(ctx, carol))

	byID, err := repo.GetAccount(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carol", byID.Username)
	assert.Equal(t, "carol", byID.SafeUsername)
	assert.Equal(t, carol.PasswordHash, byID.PasswordHash)
	assert.Equal(t, carol.Token, byID.Token)
	assert.Empty(t, byID.Files)

	byToken, err := repo.GetAccountByToken(ctx, carol.Token)
	require.NoError(t, err)
	assert.Equal(t, carol.ID, byToken.ID)

	byName, err := repo.GetAccountByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, carol.ID, byName.ID)

	_, err = repo.GetAccountByToken(ctx, "nope")
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)
	_, err = repo.GetAccountByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)
	_, err = repo.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, sealedcontent.ErrAccountNotFound)

	err = repo.CreateAccount(ctx, NewAccount("CAROL"))
	assert.ErrorIs(t, err, sealedcontent.ErrUsernameTaken)

	require.NoError(t, repo.CreateAccount(ctx, NewAccount("alice")))
	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].SafeUsername)
	assert.Equal(t, "carol", accounts[1].SafeUsername)
}

func testListObjects(t *testing.T, repo sealedcontent.Repository) {
	ctx := context.Background()
	alice := NewAccount("alice")
	require.NoError(t, repo.CreateAccount(ctx, alice))

	base := time.Now().UTC().Truncate(time.Second)
	var ids []string
	for i := 0; i < 5; i++ {
		o := NewObject(t, alice.ID)
		o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		switch i {
		case 0, 4:
			o.ContentType = "image/png"
		case 2:
			o.ContentType = "Image/PNG; name=scan"
		}
		require.NoError(t, repo.InsertObject(ctx, o))
		if i < 3 {
			require.NoError(t, repo.AppendOwnedFile(ctx, alice.ID, o.ID))
		}
		ids = append(ids, o.ID)
	}

	all, err := repo.ListObjects(ctx, sealedcontent.ObjectFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	// newest first
	assert.Equal(t, ids[4], all[0].ID)
	assert.Equal(t, ids[0], all[4].ID)

	ownerID := alice.ID
	owned, err := repo.ListObjects(ctx, sealedcontent.ObjectFilter{OwnerID: &ownerID})
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	png := "image/png"
	images, err := repo.ListObjects(ctx, sealedcontent.ObjectFilter{ContentType: &png})
	require.NoError(t, err)
	assert.Len(t, images, 3)

	both, err := repo.ListObjects(ctx, sealedcontent.ObjectFilter{OwnerID: &ownerID, ContentType: &png})
	require.NoError(t, err)
	assert.Len(t, both, 2)

	page, err := repo.ListObjects(ctx, sealedcontent.ObjectFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	past, err := repo.ListObjects(ctx, sealedcontent.ObjectFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}
