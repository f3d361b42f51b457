package sealedcontent

import (
	"context"

	"github.com/google/uuid"
)

// BlobStore defines the interface for encrypted payload storage.
// Writes are atomic per key and Delete is idempotent.
type BlobStore interface {
	// Write stores data under key
	Write(ctx context.Context, key string, data []byte) error

	// Read returns the bytes stored under key, or ErrBlobNotFound
	Read(ctx context.Context, key string) ([]byte, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// Repository defines the interface for object metadata and account persistence.
// Each method is atomic against its backend.
type Repository interface {
	// Object operations
	InsertObject(ctx context.Context, object *Object) error
	GetObject(ctx context.Context, id string) (*Object, error)
	// DeleteObject removes the metadata record and unlinks it from its
	// owner's file list in one step. It reports whether a record existed.
	DeleteObject(ctx context.Context, id string) (bool, error)
	ListObjects(ctx context.Context, filter ObjectFilter) ([]*Object, error)

	// Ownership operations
	AppendOwnedFile(ctx context.Context, accountID uuid.UUID, objectID string) error
	RemoveOwnedFile(ctx context.Context, accountID uuid.UUID, objectID string) error
	// FindOwner returns the account whose file list contains objectID, or
	// ErrAccountNotFound
	FindOwner(ctx context.Context, objectID string) (*Account, error)

	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByToken(ctx context.Context, token string) (*Account, error)
	GetAccountByUsername(ctx context.Context, safeUsername string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	// DeleteAccount removes the account and its file list. Objects it owned
	// stay in place and become orphaned.
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

// EventSink defines the interface for event handling
type EventSink interface {
	// AccountRegistered is fired when an account is created
	AccountRegistered(ctx context.Context, account *Account) error

	// ObjectUploaded is fired after an object is stored and linked to its owner
	ObjectUploaded(ctx context.Context, object *Object, owner *Account) error

	// ObjectViewed is fired after a successful decrypt and verify
	ObjectViewed(ctx context.Context, object *Object) error

	// ObjectDeleted is fired after an object is removed
	ObjectDeleted(ctx context.Context, object *Object) error
}
