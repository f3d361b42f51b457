package sealedcontent

import (
	"context"
	"errors"

	"github.com/tendant/sealed-content/pkg/sealedcontent/integrity"
	"github.com/tendant/sealed-content/pkg/sealedcontent/sealer"
)

// Fetch evaluates one retrieval request. Checks run in a fixed order and the
// first failing check decides the outcome:
//
// 1. a key must be presented (ErrMissingKey), before any lookup
// 2. the metadata record must exist (ErrNotFound)
// 3. some account must own the object (ErrOrphaned)
// 4. a supplied delete capability must match (ErrInvalidCapability);
//    a match deletes the object and ends the request
// 5. the payload must decrypt under the key (ErrInvalidKeyOrTampered)
// 6. the plaintext must match the recorded digest (ErrTamperedOrCorrupted)
func (s *service) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	if req.Key == "" {
		return nil, &ObjectError{ObjectID: req.ObjectID, Op: "fetch", Err: ErrMissingKey}
	}

	object, found, err := s.store.GetMetadata(ctx, req.ObjectID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &ObjectError{ObjectID: req.ObjectID, Op: "fetch", Err: ErrNotFound}
	}

	if err := s.resolveOwner(ctx, object.ID); err != nil {
		return nil, err
	}

	if req.HasDeleteKey || req.DeleteKey != "" {
		return s.redeemDeleteCapability(ctx, object, req.DeleteKey)
	}

	payload, found, err := s.store.GetPayload(ctx, object)
	if err != nil {
		return nil, err
	}
	if !found {
		// deleted between the metadata read and now
		return nil, &ObjectError{ObjectID: object.ID, Op: "fetch", Err: ErrNotFound}
	}

	plaintext, err := sealer.DecryptString(payload, req.Key)
	if err != nil {
		return nil, &ObjectError{ObjectID: object.ID, Op: "decrypt", Err: ErrInvalidKeyOrTampered}
	}

	expected, err := integrity.Parse(object.Digest)
	if err != nil || !integrity.Verify(plaintext, expected) {
		return nil, &ObjectError{ObjectID: object.ID, Op: "verify", Err: ErrTamperedOrCorrupted}
	}

	if err := s.eventSink.ObjectViewed(ctx, object); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "object_viewed", "error", err)
	}

	return &FetchResult{Object: object, Data: plaintext}, nil
}

// resolveOwner fails with ErrOrphaned when no account lists the object. An
// object that disappeared while being resolved reports ErrNotFound instead.
func (s *service) resolveOwner(ctx context.Context, objectID string) error {
	_, err := s.repository.FindOwner(ctx, objectID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return &ObjectError{ObjectID: objectID, Op: "resolve_owner", Err: err}
	}

	_, stillThere, gerr := s.store.GetMetadata(ctx, objectID)
	if gerr != nil {
		return gerr
	}
	if !stillThere {
		return &ObjectError{ObjectID: objectID, Op: "fetch", Err: ErrNotFound}
	}
	return &ObjectError{ObjectID: objectID, Op: "fetch", Err: ErrOrphaned}
}

func (s *service) redeemDeleteCapability(ctx context.Context, object *Object, supplied string) (*FetchResult, error) {
	if !capabilityMatches(supplied, object.DeleteCapability) {
		return nil, &ObjectError{ObjectID: object.ID, Op: "delete", Err: ErrInvalidCapability}
	}

	deleted, err := s.store.Delete(ctx, object.ID)
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		// a concurrent request redeemed it first
		return nil, &ObjectError{ObjectID: object.ID, Op: "delete", Err: ErrNotFound}
	}
	s.fireDeleted(ctx, deleted)

	return &FetchResult{Object: deleted, Deleted: true}, nil
}
