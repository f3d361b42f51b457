// Package bolt provides a single-file sealedcontent.Repository backed by bbolt.
package bolt

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
	"go.etcd.io/bbolt"
)

var (
	bucketObjects   = []byte("objects")
	bucketAccounts  = []byte("accounts")
	bucketTokens    = []byte("tokens")
	bucketUsernames = []byte("usernames")
	bucketOwners    = []byte("owners")
)

// Repository persists object metadata and accounts in one bbolt file.
// Every method runs in a single bbolt transaction.
type Repository struct {
	db *bbolt.DB
}

var _ sealedcontent.Repository = (*Repository)(nil)

// Open opens or creates the database at path. The parent directory is
// created if it does not exist.
func Open(path string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketObjects, bucketAccounts, bucketTokens, bucketUsernames, bucketOwners} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create buckets: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error { return r.db.Close() }

// Object operations

func (r *Repository) InsertObject(ctx context.Context, object *sealedcontent.Object) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		key := []byte(object.ID)
		if b.Get(key) != nil {
			return sealedcontent.ErrDuplicateID
		}
		return putGob(b, key, object)
	})
}

func (r *Repository) GetObject(ctx context.Context, id string) (*sealedcontent.Object, error) {
	var object *sealedcontent.Object
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		object, err = getObject(tx, id)
		return err
	})
	return object, err
}

func (r *Repository) DeleteObject(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := r.db.Update(func(tx *bbolt.Tx) error {
		objects := tx.Bucket(bucketObjects)
		key := []byte(id)
		if objects.Get(key) == nil {
			return nil
		}
		existed = true
		if err := objects.Delete(key); err != nil {
			return err
		}

		owners := tx.Bucket(bucketOwners)
		raw := owners.Get(key)
		if raw == nil {
			return nil
		}
		accountID, err := uuid.FromBytes(raw)
		if err != nil {
			return fmt.Errorf("decode owner of %s: %w", id, err)
		}
		if err := owners.Delete(key); err != nil {
			return err
		}
		return updateAccount(tx, accountID, func(a *sealedcontent.Account) {
			a.Files = removeString(a.Files, id)
		})
	})
	return existed, err
}

func (r *Repository) ListObjects(ctx context.Context, filter sealedcontent.ObjectFilter) ([]*sealedcontent.Object, error) {
	var result []*sealedcontent.Object
	err := r.db.View(func(tx *bbolt.Tx) error {
		owners := tx.Bucket(bucketOwners)
		return tx.Bucket(bucketObjects).ForEach(func(k, v []byte) error {
			if filter.OwnerID != nil {
				raw := owners.Get(k)
				if raw == nil || !bytes.Equal(raw, filter.OwnerID[:]) {
					return nil
				}
			}
			var object sealedcontent.Object
			if err := decodeGob(v, &object); err != nil {
				return fmt.Errorf("decode object %s: %w", k, err)
			}
			if filter.ContentType != nil && sealedcontent.NormalizeContentType(object.ContentType) != sealedcontent.NormalizeContentType(*filter.ContentType) {
				return nil
			}
			result = append(result, &object)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

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
	return r.db.Update(func(tx *bbolt.Tx) error {
		account, err := getAccount(tx, accountID)
		if err != nil {
			return err
		}
		key := []byte(objectID)
		if tx.Bucket(bucketObjects).Get(key) == nil {
			return sealedcontent.ErrNotFound
		}
		owners := tx.Bucket(bucketOwners)
		if raw := owners.Get(key); raw != nil {
			if bytes.Equal(raw, accountID[:]) {
				return nil
			}
			return fmt.Errorf("%w: object is owned by another account", sealedcontent.ErrDuplicateID)
		}
		if err := owners.Put(key, accountID[:]); err != nil {
			return err
		}
		account.Files = append(account.Files, objectID)
		return putGob(tx.Bucket(bucketAccounts), accountID[:], account)
	})
}

func (r *Repository) RemoveOwnedFile(ctx context.Context, accountID uuid.UUID, objectID string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		if _, err := getAccount(tx, accountID); err != nil {
			return err
		}
		owners := tx.Bucket(bucketOwners)
		key := []byte(objectID)
		if raw := owners.Get(key); raw != nil && bytes.Equal(raw, accountID[:]) {
			if err := owners.Delete(key); err != nil {
				return err
			}
		}
		return updateAccount(tx, accountID, func(a *sealedcontent.Account) {
			a.Files = removeString(a.Files, objectID)
		})
	})
}

func (r *Repository) FindOwner(ctx context.Context, objectID string) (*sealedcontent.Account, error) {
	var account *sealedcontent.Account
	err := r.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketOwners).Get([]byte(objectID))
		if raw == nil {
			return sealedcontent.ErrAccountNotFound
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return fmt.Errorf("decode owner of %s: %w", objectID, err)
		}
		account, err = getAccount(tx, id)
		return err
	})
	return account, err
}

// Account operations

// CreateAccount stores a new account with an empty file list
func (r *Repository) CreateAccount(ctx context.Context, account *sealedcontent.Account) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		usernames := tx.Bucket(bucketUsernames)
		tokens := tx.Bucket(bucketTokens)
		accounts := tx.Bucket(bucketAccounts)

		if usernames.Get([]byte(account.SafeUsername)) != nil {
			return sealedcontent.ErrUsernameTaken
		}
		if accounts.Get(account.ID[:]) != nil {
			return fmt.Errorf("account %s already exists", account.ID)
		}
		if tokens.Get([]byte(account.Token)) != nil {
			return fmt.Errorf("token already in use")
		}

		stored := *account
		stored.Files = nil
		if err := putGob(accounts, account.ID[:], &stored); err != nil {
			return err
		}
		if err := tokens.Put([]byte(account.Token), account.ID[:]); err != nil {
			return err
		}
		return usernames.Put([]byte(account.SafeUsername), account.ID[:])
	})
}

func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*sealedcontent.Account, error) {
	var account *sealedcontent.Account
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		account, err = getAccount(tx, id)
		return err
	})
	return account, err
}

func (r *Repository) GetAccountByToken(ctx context.Context, token string) (*sealedcontent.Account, error) {
	return r.accountByIndex(bucketTokens, token)
}

func (r *Repository) GetAccountByUsername(ctx context.Context, safeUsername string) (*sealedcontent.Account, error) {
	return r.accountByIndex(bucketUsernames, safeUsername)
}

func (r *Repository) accountByIndex(bucket []byte, value string) (*sealedcontent.Account, error) {
	var account *sealedcontent.Account
	err := r.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucket).Get([]byte(value))
		if raw == nil {
			return sealedcontent.ErrAccountNotFound
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return fmt.Errorf("decode account id: %w", err)
		}
		account, err = getAccount(tx, id)
		return err
	})
	return account, err
}

func (r *Repository) ListAccounts(ctx context.Context) ([]*sealedcontent.Account, error) {
	var result []*sealedcontent.Account
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			var account sealedcontent.Account
			if err := decodeGob(v, &account); err != nil {
				return fmt.Errorf("decode account: %w", err)
			}
			result = append(result, &account)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SafeUsername < result[j].SafeUsername
	})
	return result, nil
}

func (r *Repository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		account, err := getAccount(tx, id)
		if err != nil {
			return err
		}
		owners := tx.Bucket(bucketOwners)
		for _, objectID := range account.Files {
			if err := owners.Delete([]byte(objectID)); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketTokens).Delete([]byte(account.Token)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketUsernames).Delete([]byte(account.SafeUsername)); err != nil {
			return err
		}
		return tx.Bucket(bucketAccounts).Delete(id[:])
	})
}

func getObject(tx *bbolt.Tx, id string) (*sealedcontent.Object, error) {
	v := tx.Bucket(bucketObjects).Get([]byte(id))
	if v == nil {
		return nil, sealedcontent.ErrNotFound
	}
	var object sealedcontent.Object
	if err := decodeGob(v, &object); err != nil {
		return nil, fmt.Errorf("decode object %s: %w", id, err)
	}
	return &object, nil
}

func getAccount(tx *bbolt.Tx, id uuid.UUID) (*sealedcontent.Account, error) {
	v := tx.Bucket(bucketAccounts).Get(id[:])
	if v == nil {
		return nil, sealedcontent.ErrAccountNotFound
	}
	var account sealedcontent.Account
	if err := decodeGob(v, &account); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", id, err)
	}
	if account.Files == nil {
		account.Files = []string{}
	}
	return &account, nil
}

func updateAccount(tx *bbolt.Tx, id uuid.UUID, fn func(*sealedcontent.Account)) error {
	account, err := getAccount(tx, id)
	if err != nil {
		return err
	}
	fn(account)
	return putGob(tx.Bucket(bucketAccounts), id[:], account)
}

// putGob stores v gob-encoded under key.
func putGob(b *bbolt.Bucket, key []byte, v interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return b.Put(key, buf.Bytes())
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
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
