package sealedcontent

import (
	"context"
	"errors"
	"log/slog"
)

// LogEventSink writes one structured log line per event.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink returns an EventSink that logs to logger, or to
// slog.Default when logger is nil.
func NewLogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) AccountRegistered(ctx context.Context, account *Account) error {
	s.logger.InfoContext(ctx, "account registered", "username", account.Username, "account_id", account.ID)
	return nil
}

func (s *LogEventSink) ObjectUploaded(ctx context.Context, object *Object, owner *Account) error {
	s.logger.InfoContext(ctx, "object uploaded",
		"username", owner.Username,
		"object_id", object.ID,
		"content_type", object.ContentType,
		"size_mb", bytesToMB(object.SizeBytes),
	)
	return nil
}

func (s *LogEventSink) ObjectViewed(ctx context.Context, object *Object) error {
	s.logger.InfoContext(ctx, "object viewed", "object_id", object.ID, "size_mb", bytesToMB(object.SizeBytes))
	return nil
}

func (s *LogEventSink) ObjectDeleted(ctx context.Context, object *Object) error {
	s.logger.InfoContext(ctx, "object deleted", "object_id", object.ID, "owner_id", object.OwnerID)
	return nil
}

func bytesToMB(n int64) float64 {
	return float64(int64(float64(n)/(1024*1024)*100)) / 100
}

// MultiEventSink fans every event out to each sink in order.
type MultiEventSink []EventSink

func (m MultiEventSink) AccountRegistered(ctx context.Context, account *Account) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.AccountRegistered(ctx, account))
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) ObjectUploaded(ctx context.Context, object *Object, owner *Account) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.ObjectUploaded(ctx, object, owner))
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) ObjectViewed(ctx context.Context, object *Object) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.ObjectViewed(ctx, object))
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) ObjectDeleted(ctx context.Context, object *Object) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.ObjectDeleted(ctx, object))
	}
	return errors.Join(errs...)
}
