package sealedcontent

import (
	"time"

	"github.com/google/uuid"
)

// Object is the metadata record of one encrypted upload. The decryption key
// is never part of it.
type Object struct {
	ID               string    `json:"object_id"`
	OwnerID          uuid.UUID `json:"owner_id"`
	OriginalName     string    `json:"original_name"`
	ContentType      string    `json:"content_type"`
	SizeBytes        int64     `json:"size_bytes"`
	Digest           string    `json:"digest"`
	DeleteCapability string    `json:"-"`
	BlobKey          string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// Privilege levels
const (
	PrivilegeUser  = 0
	PrivilegeAdmin = 1
)

// Account is an uploading identity. Files lists the ids of the objects it
// owns; an object id appears in at most one account's list.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	SafeUsername string    `json:"-"`
	PasswordHash string    `json:"-"`
	Token        string    `json:"-"`
	Privilege    int       `json:"privilege"`
	Files        []string  `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Owns reports whether objectID is in the account's file list.
func (a *Account) Owns(objectID string) bool {
	for _, id := range a.Files {
		if id == objectID {
			return true
		}
	}
	return false
}

// ObjectFilter narrows ListObjects results. Zero values mean no filter.
type ObjectFilter struct {
	OwnerID *uuid.UUID
	// ContentType matches the media type, ignoring case and parameters
	ContentType *string
	Limit       int
	Offset      int
}
