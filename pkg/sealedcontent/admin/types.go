package admin

import (
	"time"

	"github.com/google/uuid"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// DefaultListLimit is used when a list request has no limit.
const DefaultListLimit = 100

// ObjectFilters narrows admin listings
type ObjectFilters struct {
	OwnerID     *uuid.UUID `json:"owner_id,omitempty"`
	ContentType *string    `json:"content_type,omitempty"`
	Limit       *int       `json:"limit,omitempty"`
	Offset      *int       `json:"offset,omitempty"`
}

// ListObjectsRequest contains parameters for admin object listing
type ListObjectsRequest struct {
	Filters ObjectFilters `json:"filters"`
}

// ListObjectsResponse contains one page of objects
type ListObjectsResponse struct {
	Objects []*sealedcontent.Object `json:"objects"`
	Limit   int                     `json:"limit"`
	Offset  int                     `json:"offset"`
	HasMore bool                    `json:"has_more"`
}

// ListObjectsOption provides functional options for listing objects
type ListObjectsOption func(*ObjectFilters)

// WithOwnerID filters by owner ID
func WithOwnerID(ownerID uuid.UUID) ListObjectsOption {
	return func(f *ObjectFilters) {
		f.OwnerID = &ownerID
	}
}

// WithContentType filters by content type
func WithContentType(contentType string) ListObjectsOption {
	return func(f *ObjectFilters) {
		f.ContentType = &contentType
	}
}

// WithPagination sets limit and offset
func WithPagination(limit, offset int) ListObjectsOption {
	return func(f *ObjectFilters) {
		f.Limit = &limit
		f.Offset = &offset
	}
}

// NewListObjectsRequest builds a request from options
func NewListObjectsRequest(opts ...ListObjectsOption) ListObjectsRequest {
	var req ListObjectsRequest
	for _, opt := range opts {
		opt(&req.Filters)
	}
	return req
}

// Statistics aggregates the whole store
type Statistics struct {
	ObjectCount   int64            `json:"object_count"`
	TotalBytes    int64            `json:"total_bytes"`
	ByContentType map[string]int64 `json:"by_content_type"`
	OrphanCount   int64            `json:"orphan_count"`
	OrphanBytes   int64            `json:"orphan_bytes"`
	AccountCount  int64            `json:"account_count"`
	OldestObject  *time.Time       `json:"oldest_object,omitempty"`
	NewestObject  *time.Time       `json:"newest_object,omitempty"`
}

// StatisticsResponse contains the statistics result
type StatisticsResponse struct {
	Statistics Statistics `json:"statistics"`
	ComputedAt time.Time  `json:"computed_at"`
}

// PurgeRequest contains parameters for an orphan purge
type PurgeRequest struct {
	DryRun bool `json:"dry_run"`
}

// PurgeResponse lists the orphans found and what was removed
type PurgeResponse struct {
	Orphans    []*sealedcontent.Object `json:"orphans"`
	Purged     int                     `json:"purged"`
	FreedBytes int64                   `json:"freed_bytes"`
	DryRun     bool                    `json:"dry_run"`
}

// DeleteAccountRequest names the account to remove
type DeleteAccountRequest struct {
	Username string `json:"username"`
	Cascade  bool   `json:"cascade"`
}

// DeleteAccountResponse reports what happened to the account's objects
type DeleteAccountResponse struct {
	AccountID       uuid.UUID `json:"account_id"`
	DeletedObjects  int       `json:"deleted_objects"`
	OrphanedObjects int       `json:"orphaned_objects"`
}

// AccountSummary is an account without its password hash or token
type AccountSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Privilege int       `json:"privilege"`
	FileCount int       `json:"file_count"`
	CreatedAt time.Time `json:"created_at"`
}
