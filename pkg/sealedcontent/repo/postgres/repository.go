package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements sealedcontent.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

var _ sealedcontent.Repository = (*Repository)(nil)

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch {
			case strings.Contains(pgErr.ConstraintName, "username"):
				return sealedcontent.ErrUsernameTaken
			case strings.Contains(pgErr.ConstraintName, "token"):
				return fmt.Errorf("token already in use")
			case strings.Contains(pgErr.ConstraintName, "object"):
				return sealedcontent.ErrDuplicateID
			case strings.Contains(pgErr.ConstraintName, "accounts_pkey"):
				return fmt.Errorf("account already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			if strings.Contains(pgErr.ConstraintName, "account") {
				return sealedcontent.ErrAccountNotFound
			}
			return sealedcontent.ErrNotFound
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Object operations

const objectColumns = `id, owner_id, original_name, content_type, size_bytes,
	digest, delete_capability, blob_key, created_at`

func scanObject(row pgx.Row) (*sealedcontent.Object, error) {
	var o sealedcontent.Object
	err := row.Scan(&o.ID, &o.OwnerID, &o.OriginalName, &o.ContentType, &o.SizeBytes,
		&o.Digest, &o.DeleteCapability, &o.BlobKey, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) InsertObject(ctx context.Context, object *sealedcontent.Object) error {
	query := `
		INSERT INTO objects (` + objectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		object.ID, object.OwnerID, object.OriginalName, object.ContentType, object.SizeBytes,
		object.Digest, object.DeleteCapability, object.BlobKey, object.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sealedcontent.ErrDuplicateID
		}
		return r.handlePostgresError("insert object", err)
	}
	return nil
}

func (r *Repository) GetObject(ctx context.Context, id string) (*sealedcontent.Object, error) {
	query := `SELECT ` + objectColumns + ` FROM objects WHERE id = $1`

	object, err := scanObject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sealedcontent.ErrNotFound
		}
		return nil, r.handlePostgresError("get object", err)
	}
	return object, nil
}

// DeleteObject removes the row; the owned_files link goes with it through
// ON DELETE CASCADE in the same statement.
func (r *Repository) DeleteObject(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM objects WHERE id = $1`, id)
	if err != nil {
		return false, r.handlePostgresError("delete object", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListObjects(ctx context.Context, filter sealedcontent.ObjectFilter) ([]*sealedcontent.Object, error) {
	var (
		conditions []string
		args       []interface{}
	)
	from := "objects o"
	if filter.OwnerID != nil {
		from += " JOIN owned_files f ON f.object_id = o.id"
		args = append(args, *filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("f.account_id = $%d", len(args)))
	}
	if filter.ContentType != nil {
		args = append(args, sealedcontent.NormalizeContentType(*filter.ContentType))
		conditions = append(conditions, fmt.Sprintf("lower(trim(split_part(o.content_type, ';', 1))) = $%d", len(args)))
	}

	query := `SELECT o.id, o.owner_id, o.original_name, o.content_type, o.size_bytes,
		o.digest, o.delete_capability, o.blob_key, o.created_at FROM ` + from
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY o.created_at DESC, o.id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list objects", err)
	}
	defer rows.Close()

	result := []*sealedcontent.Object{}
	for rows.Next() {
		object, err := scanObject(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan object", err)
		}
		result = append(result, object)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list objects", err)
	}
	return result, nil
}

// Ownership operations

func (r *Repository) AppendOwnedFile(ctx context.Context, accountID uuid.UUID, objectID string) error {
	query := `
		INSERT INTO owned_files (account_id, object_id) VALUES ($1, $2)
		ON CONFLICT (object_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, accountID, objectID)
	if err != nil {
		return r.handlePostgresError("append owned file", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current uuid.UUID
	err = r.db.QueryRow(ctx, `SELECT account_id FROM owned_files WHERE object_id = $1`, objectID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		// unlinked again between the insert and this read
		return r.AppendOwnedFile(ctx, accountID, objectID)
	}
	if err != nil {
		return r.handlePostgresError("append owned file", err)
	}
	if current == accountID {
		return nil
	}
	if _, err := r.GetAccount(ctx, accountID); err != nil {
		return err
	}
	return fmt.Errorf("%w: object is owned by another account", sealedcontent.ErrDuplicateID)
}

func (r *Repository) RemoveOwnedFile(ctx context.Context, accountID uuid.UUID, objectID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM owned_files WHERE account_id = $1 AND object_id = $2`, accountID, objectID)
	if err != nil {
		return r.handlePostgresError("remove owned file", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetAccount(ctx, accountID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) FindOwner(ctx context.Context, objectID string) (*sealedcontent.Account, error) {
	var accountID uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT account_id FROM owned_files WHERE object_id = $1`, objectID).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sealedcontent.ErrAccountNotFound
		}
		return nil, r.handlePostgresError("find owner", err)
	}
	return r.GetAccount(ctx, accountID)
}

// Account operations

const accountColumns = `id, username, safe_username, password_hash, token, privilege, created_at`

// CreateAccount stores a new account with an empty file list
func (r *Repository) CreateAccount(ctx context.Context, account *sealedcontent.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		account.ID, account.Username, account.SafeUsername, account.PasswordHash,
		account.Token, account.Privilege, account.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create account", err)
	}
	return nil
}

func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*sealedcontent.Account, error) {
	return r.getAccountWhere(ctx, "id = $1", id)
}

func (r *Repository) GetAccountByToken(ctx context.Context, token string) (*sealedcontent.Account, error) {
	return r.getAccountWhere(ctx, "token = $1", token)
}

func (r *Repository) GetAccountByUsername(ctx context.Context, safeUsername string) (*sealedcontent.Account, error) {
	return r.getAccountWhere(ctx, "safe_username = $1", safeUsername)
}

func (r *Repository) getAccountWhere(ctx context.Context, where string, arg interface{}) (*sealedcontent.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where

	var a sealedcontent.Account
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Username, &a.SafeUsername, &a.PasswordHash, &a.Token, &a.Privilege, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sealedcontent.ErrAccountNotFound
		}
		return nil, r.handlePostgresError("get account", err)
	}

	files, err := r.ownedFiles(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Files = files
	return &a, nil
}

func (r *Repository) ownedFiles(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT object_id FROM owned_files WHERE account_id = $1 ORDER BY position`, accountID)
	if err != nil {
		return nil, r.handlePostgresError("list owned files", err)
	}
	defer rows.Close()

	files := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.handlePostgresError("scan owned file", err)
		}
		files = append(files, id)
	}
	return files, rows.Err()
}

func (r *Repository) ListAccounts(ctx context.Context) ([]*sealedcontent.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY safe_username`)
	if err != nil {
		return nil, r.handlePostgresError("list accounts", err)
	}

	var result []*sealedcontent.Account
	for rows.Next() {
		var a sealedcontent.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.SafeUsername, &a.PasswordHash, &a.Token, &a.Privilege, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, r.handlePostgresError("scan account", err)
		}
		result = append(result, &a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list accounts", err)
	}

	for _, a := range result {
		if a.Files, err = r.ownedFiles(ctx, a.ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// DeleteAccount removes the account row; its owned_files rows cascade and
// the objects themselves remain, orphaned.
func (r *Repository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete account", err)
	}
	if tag.RowsAffected() == 0 {
		return sealedcontent.ErrAccountNotFound
	}
	return nil
}
