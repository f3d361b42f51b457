package sealedcontent

import (
	"context"
)

// Service is the main interface for encrypted upload and retrieval
type Service interface {
	// Upload validates, encrypts and stores a payload for owner and returns
	// the one-time capabilities needed to read or delete it
	Upload(ctx context.Context, owner *Account, req UploadRequest) (*UploadResult, error)

	// Fetch runs the access-control protocol for one request: it either
	// returns verified plaintext, redeems a delete capability, or fails with
	// exactly one taxonomy error
	Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error)

	// DeleteOwned removes an object on behalf of its owner without a
	// delete capability
	DeleteOwned(ctx context.Context, owner *Account, objectID string) error

	// ListOwned returns metadata for every object in owner's file list
	ListOwned(ctx context.Context, owner *Account) ([]*Object, error)

	// Account operations
	Register(ctx context.Context, req RegisterRequest) (*Account, error)
	Authenticate(ctx context.Context, token string) (*Account, error)
	// Login returns the account, including its bearer token, for a
	// username and password pair
	Login(ctx context.Context, username, password string) (*Account, error)
}
