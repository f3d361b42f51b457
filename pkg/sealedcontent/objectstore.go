package sealedcontent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// ObjectStore keeps an object's metadata record and its encrypted payload
// together. Metadata lives in a Repository, payload bytes in a BlobStore.
type ObjectStore struct {
	repository Repository
	blobs      BlobStore
	logger     *slog.Logger
}

// NewObjectStore returns an ObjectStore over repo and blobs.
func NewObjectStore(repo Repository, blobs BlobStore, logger *slog.Logger) *ObjectStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObjectStore{repository: repo, blobs: blobs, logger: logger}
}

// Put persists a new object. The metadata insert claims the id first, so an
// existing object is never overwritten; if the payload write then fails the
// claim is released.
func (s *ObjectStore) Put(ctx context.Context, object *Object, payload []byte) error {
	if err := s.repository.InsertObject(ctx, object); err != nil {
		return &ObjectError{ObjectID: object.ID, Op: "put", Err: err}
	}

	if err := s.blobs.Write(ctx, object.BlobKey, payload); err != nil {
		if _, derr := s.repository.DeleteObject(ctx, object.ID); derr != nil {
			s.logger.ErrorContext(ctx, "failed to release metadata after payload write failure",
				"object_id", object.ID, "error", derr)
		}
		return &ObjectError{ObjectID: object.ID, Op: "put", Err: err}
	}
	return nil
}

// GetMetadata returns the metadata record. found is false when no record exists.
func (s *ObjectStore) GetMetadata(ctx context.Context, id string) (*Object, bool, error) {
	object, err := s.repository.GetObject(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &ObjectError{ObjectID: id, Op: "get_metadata", Err: err}
	}
	return object, true, nil
}

// GetPayload returns the encrypted payload. found is false when the blob is gone.
func (s *ObjectStore) GetPayload(ctx context.Context, object *Object) ([]byte, bool, error) {
	data, err := s.blobs.Read(ctx, object.BlobKey)
	if errors.Is(err, ErrBlobNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &ObjectError{ObjectID: object.ID, Op: "get_payload", Err: err}
	}
	return data, true, nil
}

// Delete removes an object: metadata and owner link in one repository step,
// then the payload. Deleting a missing object is a no-op. A payload that
// cannot be removed after its metadata is gone is logged and left behind;
// it is unreachable without a metadata record.
func (s *ObjectStore) Delete(ctx context.Context, id string) (*Object, error) {
	object, found, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	existed, err := s.repository.DeleteObject(ctx, id)
	if err != nil {
		return nil, &ObjectError{ObjectID: id, Op: "delete", Err: err}
	}
	if !existed {
		return nil, nil
	}

	if err := s.blobs.Delete(ctx, object.BlobKey); err != nil {
		s.logger.WarnContext(ctx, "payload delete failed after metadata removal",
			"object_id", id, "blob_key", object.BlobKey, "error", err)
	}
	return object, nil
}

// AppendOwnedFile links an object to an account.
func (s *ObjectStore) AppendOwnedFile(ctx context.Context, accountID uuid.UUID, objectID string) error {
	return s.repository.AppendOwnedFile(ctx, accountID, objectID)
}

// RemoveOwnedFile unlinks an object from an account.
func (s *ObjectStore) RemoveOwnedFile(ctx context.Context, accountID uuid.UUID, objectID string) error {
	return s.repository.RemoveOwnedFile(ctx, accountID, objectID)
}
