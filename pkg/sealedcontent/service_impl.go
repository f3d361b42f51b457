package sealedcontent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/sealed-content/pkg/sealedcontent/integrity"
	"github.com/tendant/sealed-content/pkg/sealedcontent/objectkey"
	"github.com/tendant/sealed-content/pkg/sealedcontent/sealer"
	"golang.org/x/crypto/bcrypt"
)

// service implements the Service interface
type service struct {
	repository   Repository
	blobStore    BlobStore
	store        *ObjectStore
	eventSink    EventSink
	keyGenerator objectkey.Generator
	links        LinkBuilder
	contentTypes *ContentTypePolicy
	maxFileSize  int64
	passwordCost int
	logger       *slog.Logger
	now          func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the payload storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithKeyGenerator sets the blob key layout
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = gen
	}
}

// WithBaseURL sets the public URL prefix used in returned links
func WithBaseURL(baseURL string) Option {
	return func(s *service) {
		s.links = NewLinkBuilder(baseURL)
	}
}

// WithMaxFileSize sets the plaintext size ceiling in bytes
func WithMaxFileSize(n int64) Option {
	return func(s *service) {
		s.maxFileSize = n
	}
}

// WithAllowedContentTypes replaces the upload allow-list
func WithAllowedContentTypes(types ...string) Option {
	return func(s *service) {
		s.contentTypes = NewContentTypePolicy(types)
	}
}

// WithPasswordCost sets the bcrypt cost for new accounts
func WithPasswordCost(cost int) Option {
	return func(s *service) {
		s.passwordCost = cost
	}
}

// WithLogger sets the logger used for non-fatal failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		links:        NewLinkBuilder("/"),
		contentTypes: NewContentTypePolicy(DefaultAllowedContentTypes),
		maxFileSize:  DefaultMaxFileSize,
		passwordCost: bcrypt.DefaultCost,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.maxFileSize <= 0 {
		return nil, fmt.Errorf("max file size must be positive, got %d", s.maxFileSize)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.keyGenerator == nil {
		s.keyGenerator = objectkey.NewLegacyGenerator()
	}
	s.store = NewObjectStore(s.repository, s.blobStore, s.logger)

	return s, nil
}

// Upload operations

func (s *service) Upload(ctx context.Context, owner *Account, req UploadRequest) (*UploadResult, error) {
	if owner == nil {
		return nil, ErrUnauthorized
	}
	if !s.contentTypes.Allows(req.ContentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, req.ContentType)
	}
	if int64(len(req.Data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, len(req.Data), s.maxFileSize)
	}

	digest := integrity.Sum(req.Data)
	key, err := sealer.GenerateKey()
	if err != nil {
		return nil, err
	}
	ciphertext, err := sealer.Encrypt(req.Data, key)
	if err != nil {
		return nil, err
	}

	objectID, err := NewObjectID()
	if err != nil {
		return nil, err
	}
	var deleteCapability string
	if !req.WithoutDeleteKey {
		if deleteCapability, err = newDeleteCapability(); err != nil {
			return nil, err
		}
	}

	object := &Object{
		ID:               objectID,
		OwnerID:          owner.ID,
		OriginalName:     req.FileName,
		ContentType:      strings.TrimSpace(req.ContentType),
		SizeBytes:        int64(len(req.Data)),
		Digest:           digest.String(),
		DeleteCapability: deleteCapability,
		BlobKey:          s.keyGenerator.GenerateKey(objectID, &objectkey.KeyMetadata{OwnerName: owner.SafeUsername}),
		CreatedAt:        s.now(),
	}

	if err := s.store.Put(ctx, object, ciphertext); err != nil {
		return nil, err
	}

	if err := s.store.AppendOwnedFile(ctx, owner.ID, object.ID); err != nil {
		if _, derr := s.store.Delete(ctx, object.ID); derr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back unlinked upload", "object_id", object.ID, "error", derr)
		}
		return nil, &ObjectError{ObjectID: object.ID, Op: "link_owner", Err: err}
	}

	if err := s.eventSink.ObjectUploaded(ctx, object, owner); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "object_uploaded", "error", err)
	}

	result := &UploadResult{
		ObjectID:         object.ID,
		Key:              key.String(),
		DeleteCapability: deleteCapability,
		FileURL:          s.links.FileURL(object.ID, key.String()),
	}
	if deleteCapability != "" {
		result.DeleteURL = s.links.DeleteURL(object.ID, key.String(), deleteCapability)
	}
	return result, nil
}

// Owner operations

func (s *service) DeleteOwned(ctx context.Context, owner *Account, objectID string) error {
	if owner == nil {
		return ErrUnauthorized
	}
	current, err := s.repository.FindOwner(ctx, objectID)
	if errors.Is(err, ErrAccountNotFound) {
		return &ObjectError{ObjectID: objectID, Op: "delete_owned", Err: ErrNotFound}
	}
	if err != nil {
		return &ObjectError{ObjectID: objectID, Op: "delete_owned", Err: err}
	}
	if current.ID != owner.ID {
		return &ObjectError{ObjectID: objectID, Op: "delete_owned", Err: ErrNotFound}
	}

	object, err := s.store.Delete(ctx, objectID)
	if err != nil {
		return err
	}
	if object == nil {
		return &ObjectError{ObjectID: objectID, Op: "delete_owned", Err: ErrNotFound}
	}
	s.fireDeleted(ctx, object)
	return nil
}

func (s *service) ListOwned(ctx context.Context, owner *Account) ([]*Object, error) {
	if owner == nil {
		return nil, ErrUnauthorized
	}
	ownerID := owner.ID
	objects, err := s.repository.ListObjects(ctx, ObjectFilter{OwnerID: &ownerID})
	if err != nil {
		return nil, fmt.Errorf("list owned objects: %w", err)
	}
	return objects, nil
}

func (s *service) fireDeleted(ctx context.Context, object *Object) {
	if err := s.eventSink.ObjectDeleted(ctx, object); err != nil {
		s.logger.WarnContext(ctx, "event sink failed", "event", "object_deleted", "error", err)
	}
}
