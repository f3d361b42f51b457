package sealedcontent

import (
	"context"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for testing or when event handling is not needed
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// AccountRegistered does nothing and returns nil
func (n *NoopEventSink) AccountRegistered(ctx context.Context, account *Account) error {
	return nil
}

// ObjectUploaded does nothing and returns nil
func (n *NoopEventSink) ObjectUploaded(ctx context.Context, object *Object, owner *Account) error {
	return nil
}

// ObjectViewed does nothing and returns nil
func (n *NoopEventSink) ObjectViewed(ctx context.Context, object *Object) error {
	return nil
}

// ObjectDeleted does nothing and returns nil
func (n *NoopEventSink) ObjectDeleted(ctx context.Context, object *Object) error {
	return nil
}
