package sealedcontent

import (
	"errors"
	"fmt"
)

// Retrieval and upload error taxonomy
var (
	// ErrMissingKey indicates a fetch was attempted without a decryption key
	ErrMissingKey = errors.New("decryption key is required")

	// ErrInvalidKeyOrTampered indicates decryption failed: the key is wrong,
	// malformed, or the ciphertext was modified
	ErrInvalidKeyOrTampered = errors.New("invalid decryption key or tampered ciphertext")

	// ErrTamperedOrCorrupted indicates decryption succeeded but the plaintext
	// does not match the recorded digest
	ErrTamperedOrCorrupted = errors.New("content integrity check failed")

	// ErrNotFound indicates the object does not exist
	ErrNotFound = errors.New("object not found")

	// ErrOrphaned indicates the object exists but no account owns it
	ErrOrphaned = errors.New("object has no owner")

	// ErrInvalidCapability indicates a delete capability was supplied that does
	// not match the object
	ErrInvalidCapability = errors.New("invalid delete key")

	// ErrUnsupportedType indicates the content type is not on the allow-list
	ErrUnsupportedType = errors.New("unsupported content type")

	// ErrTooLarge indicates the payload exceeds the configured ceiling
	ErrTooLarge = errors.New("file too large")

	// ErrDuplicateID indicates an object id is already in use
	ErrDuplicateID = errors.New("object id already exists")
)

// Account and storage errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrBlobNotFound       = errors.New("blob not found")
)

// ObjectError represents an error related to object operations
type ObjectError struct {
	ObjectID string
	Op       string
	Err      error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("object operation %s failed for object %s: %v", e.Op, e.ObjectID, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
