package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// Repository implements sealedcontent.Repository using in-memory storage
type Repository struct {
	mu         sync.RWMutex
	objects    map[string]*sealedcontent.Object
	accounts   map[uuid.UUID]*sealedcontent.Account
	byToken    map[string]uuid.UUID
	byUsername map[string]uuid.UUID
	ownerOf    map[string]uuid.UUID // object_id -> account_id
}

var _ sealedcontent.Repository = (*Repository)(nil)

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		objects:    make(map[string]*sealedcontent.Object),
		accounts:   make(map[uuid.UUID]*sealedcontent.Account),
		byToken:    make(map[string]uuid.UUID),
		byUsername: make(map[string]uuid.UUID),
		ownerOf:    make(map[string]uuid.UUID),
	}
}

// Object operations

func (r *Repository) InsertObject(ctx context.Context, object *sealedcontent.Object) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objects[object.ID]; exists {
		return sealedcontent.ErrDuplicateID
	}

	// Create a copy to avoid external modifications
	objectCopy := *object
	r.objects[object.ID] = &objectCopy
	return nil
}

func (r *Repository) GetObject(ctx context.Context, id string) (*sealedcontent.Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	object, exists := r.objects[id]
	if !exists {
		return nil, sealedcontent.ErrNotFound
	}
	objectCopy := *object
	return &objectCopy, nil
}

func (r *Repository) DeleteObject(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objects[id]; !exists {
		return false, nil
	}
	delete(r.objects, id)

	if accountID, owned := r.ownerOf[id]; owned {
		delete(r.ownerOf, id)
		if account, ok := r.accounts[accountID]; ok {
			account.Files = removeString(account.Files, id)
		}
	}
	return true, nil
}

func (r *Repository) ListObjects(ctx context.Context, filter sealedcontent.ObjectFilter) ([]*sealedcontent.Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*sealedcontent.Object
	for id, object := range r.objects {
		if filter.OwnerID != nil {
			if owner, owned := r.ownerOf[id]; !owned || owner != *filter.OwnerID {
				continue
			}
		}
		if filter.ContentType != nil && sealedcontent.NormalizeContentType(object.ContentType) != sealedcontent.NormalizeContentType(*filter.ContentType) {
			continue
		}
		objectCopy := *object
		result = append(result, &objectCopy)
	}

	// Sort by created_at descending, id for stable pagination
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, filter.Offset, filter.Limit), nil
}

// Ownership operations

func (r *Repository) AppendOwnedFile(ctx context.Context, accountID uuid.UUID, objectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[accountID]
	if !exists {
		return sealedcontent.ErrAccountNotFound
	}
	if _, exists := r.objects[objectID]; !exists {
		return sealedcontent.ErrNotFound
	}
	if current, owned := r.ownerOf[objectID]; owned {
		if current == accountID {
			return nil
		}
		return fmt.Errorf("%w: object is owned by another account", sealedcontent.ErrDuplicateID)
	}

	r.ownerOf[objectID] = accountID
	account.Files = append(account.Files, objectID)
	return nil
}

func (r *Repository) RemoveOwnedFile(ctx context.Context, accountID uuid.UUID, objectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[accountID]
	if !exists {
		return sealedcontent.ErrAccountNotFound
	}
	if current, owned := r.ownerOf[objectID]; owned && current == accountID {
		delete(r.ownerOf, objectID)
	}
	account.Files = removeString(account.Files, objectID)
	return nil
}

func (r *Repository) FindOwner(ctx context.Context, objectID string) (*sealedcontent.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accountID, owned := r.ownerOf[objectID]
	if !owned {
		return nil, sealedcontent.ErrAccountNotFound
	}
	account, exists := r.accounts[accountID]
	if !exists {
		return nil, sealedcontent.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

// Account operations

// CreateAccount stores a new account with an empty file list
func (r *Repository) CreateAccount(ctx context.Context, account *sealedcontent.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[account.SafeUsername]; exists {
		return sealedcontent.ErrUsernameTaken
	}
	if _, exists := r.accounts[account.ID]; exists {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	if _, exists := r.byToken[account.Token]; exists {
		return fmt.Errorf("token already in use")
	}

	stored := copyAccount(account)
	stored.Files = nil
	r.accounts[account.ID] = stored
	r.byToken[account.Token] = account.ID
	r.byUsername[account.SafeUsername] = account.ID
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*sealedcontent.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, sealedcontent.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (r *Repository) GetAccountByToken(ctx context.Context, token string) (*sealedcontent.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byToken[token]
	if !exists {
		return nil, sealedcontent.ErrAccountNotFound
	}
	return copyAccount(r.accounts[id]), nil
}

func (r *Repository) GetAccountByUsername(ctx context.Context, safeUsername string) (*sealedcontent.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byUsername[safeUsername]
	if !exists {
		return nil, sealedcontent.ErrAccountNotFound
	}
	return copyAccount(r.accounts[id]), nil
}

func (r *Repository) ListAccounts(ctx context.Context) ([]*sealedcontent.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*sealedcontent.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		result = append(result, copyAccount(account))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SafeUsername < result[j].SafeUsername
	})
	return result, nil
}

func (r *Repository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return sealedcontent.ErrAccountNotFound
	}
	for _, objectID := range account.Files {
		delete(r.ownerOf, objectID)
	}
	delete(r.byToken, account.Token)
	delete(r.byUsername, account.SafeUsername)
	delete(r.accounts, id)
	return nil
}

func copyAccount(account *sealedcontent.Account) *sealedcontent.Account {
	accountCopy := *account
	accountCopy.Files = append([]string{}, account.Files...)
	return &accountCopy
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func paginate(objects []*sealedcontent.Object, offset, limit int) []*sealedcontent.Object {
	if offset > 0 {
		if offset >= len(objects) {
			return []*sealedcontent.Object{}
		}
		objects = objects[offset:]
	}
	if limit > 0 && limit < len(objects) {
		objects = objects[:limit]
	}
	return objects
}
