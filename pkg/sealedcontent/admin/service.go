package admin

import (
	"context"
	"log/slog"

	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// AdminService defines the interface for operator-level operations.
// These operations bypass ownership checks and never touch decryption keys;
// nothing here can read plaintext.
//
// IMPORTANT: Callers exposing this service must restrict it to operators.
type AdminService interface {
	// ListObjects returns a page of object metadata across all accounts.
	ListObjects(ctx context.Context, req ListObjectsRequest) (*ListObjectsResponse, error)

	// GetStatistics returns counts and sizes across the whole store.
	GetStatistics(ctx context.Context) (*StatisticsResponse, error)

	// PurgeOrphans deletes every object that no account owns. With DryRun
	// set it only reports what would be removed.
	PurgeOrphans(ctx context.Context, req PurgeRequest) (*PurgeResponse, error)

	// DeleteAccount removes an account. With Cascade set its objects are
	// deleted too; otherwise they are left orphaned.
	DeleteAccount(ctx context.Context, req DeleteAccountRequest) (*DeleteAccountResponse, error)

	// ListAccounts returns every account without credentials.
	ListAccounts(ctx context.Context) ([]AccountSummary, error)
}

// New creates a new AdminService over the given stores.
func New(repo sealedcontent.Repository, blobs sealedcontent.BlobStore, logger *slog.Logger) AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &adminService{
		repo:   repo,
		store:  sealedcontent.NewObjectStore(repo, blobs, logger),
		logger: logger,
	}
}
