package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// adminService implements the AdminService interface
type adminService struct {
	repo   sealedcontent.Repository
	store  *sealedcontent.ObjectStore
	logger *slog.Logger
}

// Ensure adminService implements AdminService
var _ AdminService = (*adminService)(nil)

// ListObjects returns a page of objects, newest first
func (s *adminService) ListObjects(ctx context.Context, req ListObjectsRequest) (*ListObjectsResponse, error) {
	limit := DefaultListLimit
	if req.Filters.Limit != nil && *req.Filters.Limit > 0 {
		limit = *req.Filters.Limit
	}
	offset := 0
	if req.Filters.Offset != nil && *req.Filters.Offset > 0 {
		offset = *req.Filters.Offset
	}

	// One extra row tells us whether another page exists.
	objects, err := s.repo.ListObjects(ctx, sealedcontent.ObjectFilter{
		OwnerID:     req.Filters.OwnerID,
		ContentType: req.Filters.ContentType,
		Limit:       limit + 1,
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}

	hasMore := len(objects) > limit
	if hasMore {
		objects = objects[:limit]
	}

	return &ListObjectsResponse{
		Objects: objects,
		Limit:   limit,
		Offset:  offset,
		HasMore: hasMore,
	}, nil
}

// GetStatistics walks every object once and marks those absent from all
// file lists as orphans
func (s *adminService) GetStatistics(ctx context.Context) (*StatisticsResponse, error) {
	objects, accounts, owned, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	stats := Statistics{
		ByContentType: make(map[string]int64),
		AccountCount:  int64(len(accounts)),
	}
	for _, o := range objects {
		stats.ObjectCount++
		stats.TotalBytes += o.SizeBytes
		stats.ByContentType[sealedcontent.NormalizeContentType(o.ContentType)]++
		if !owned[o.ID] {
			stats.OrphanCount++
			stats.OrphanBytes += o.SizeBytes
		}

		created := o.CreatedAt
		if stats.OldestObject == nil || created.Before(*stats.OldestObject) {
			stats.OldestObject = &created
		}
		if stats.NewestObject == nil || created.After(*stats.NewestObject) {
			stats.NewestObject = &created
		}
	}

	return &StatisticsResponse{
		Statistics: stats,
		ComputedAt: time.Now().UTC(),
	}, nil
}

// PurgeOrphans removes objects that no account owns
func (s *adminService) PurgeOrphans(ctx context.Context, req PurgeRequest) (*PurgeResponse, error) {
	orphans, err := s.findOrphans(ctx)
	if err != nil {
		return nil, err
	}

	resp := &PurgeResponse{
		Orphans: orphans,
		DryRun:  req.DryRun,
	}
	if req.DryRun {
		return resp, nil
	}

	for _, o := range orphans {
		deleted, err := s.store.Delete(ctx, o.ID)
		if err != nil {
			return resp, fmt.Errorf("failed to purge object %s: %w", o.ID, err)
		}
		if deleted == nil {
			continue
		}
		resp.Purged++
		resp.FreedBytes += deleted.SizeBytes
	}

	s.logger.Info("Purged orphaned objects", "count", resp.Purged, "freed_bytes", resp.FreedBytes)
	return resp, nil
}

// snapshot loads every object and account. owned holds the ids present in
// any file list.
func (s *adminService) snapshot(ctx context.Context) ([]*sealedcontent.Object, []*sealedcontent.Account, map[string]bool, error) {
	objects, err := s.repo.ListObjects(ctx, sealedcontent.ObjectFilter{})
	if err != nil {
		return nil, nil, nil, err
	}
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return objects, accounts, ownedSet(accounts), nil
}

func (s *adminService) findOrphans(ctx context.Context) ([]*sealedcontent.Object, error) {
	objects, _, owned, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	orphans := make([]*sealedcontent.Object, 0)
	for _, o := range objects {
		if !owned[o.ID] {
			orphans = append(orphans, o)
		}
	}
	return orphans, nil
}

// DeleteAccount removes an account and optionally its objects
func (s *adminService) DeleteAccount(ctx context.Context, req DeleteAccountRequest) (*DeleteAccountResponse, error) {
	if req.Username == "" {
		return nil, &sealedcontent.ValidationError{Field: "username", Message: "is required"}
	}

	account, err := s.repo.GetAccountByUsername(ctx, sealedcontent.SafeUsername(req.Username))
	if err != nil {
		return nil, err
	}

	resp := &DeleteAccountResponse{AccountID: account.ID}
	if req.Cascade {
		for _, id := range account.Files {
			deleted, err := s.store.Delete(ctx, id)
			if err != nil {
				return resp, fmt.Errorf("failed to delete object %s: %w", id, err)
			}
			if deleted != nil {
				resp.DeletedObjects++
			}
		}
	}

	if err := s.repo.DeleteAccount(ctx, account.ID); err != nil {
		return resp, err
	}
	if !req.Cascade {
		resp.OrphanedObjects = len(account.Files)
	}

	s.logger.Info("Deleted account",
		"account_id", account.ID,
		"cascade", req.Cascade,
		"deleted_objects", resp.DeletedObjects,
		"orphaned_objects", resp.OrphanedObjects)
	return resp, nil
}

// ListAccounts returns account summaries ordered by username
func (s *adminService) ListAccounts(ctx context.Context) ([]AccountSummary, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		summaries = append(summaries, AccountSummary{
			ID:        a.ID,
			Username:  a.Username,
			Privilege: a.Privilege,
			FileCount: len(a.Files),
			CreatedAt: a.CreatedAt,
		})
	}
	return summaries, nil
}

func ownedSet(accounts []*sealedcontent.Account) map[string]bool {
	owned := make(map[string]bool)
	for _, a := range accounts {
		for _, id := range a.Files {
			owned[id] = true
		}
	}
	return owned
}
