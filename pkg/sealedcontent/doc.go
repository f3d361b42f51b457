// Package sealedcontent provides a reusable library for encrypted file
// uploads with pluggable metadata repositories and blob storage backends.
//
// Every upload is encrypted under a fresh key that is returned to the
// uploader inside the object's URL and never persisted. Reading an object
// requires that key; an optional delete key in the same URL lets anyone who
// holds it remove the object once. A SHA-512 digest of the plaintext is kept
// with the metadata and checked after every successful decryption.
//
// # Access Control
//
// Fetch evaluates a fixed sequence of checks and reports the first failure as
// one of the taxonomy errors in errors.go (ErrMissingKey, ErrNotFound,
// ErrOrphaned, ErrInvalidCapability, ErrInvalidKeyOrTampered,
// ErrTamperedOrCorrupted). An object whose owning account no longer lists it
// is orphaned and is refused even with a valid key.
//
// Repositories (memory, Postgres, bbolt) and blob stores (memory,
// filesystem, S3) are provided under subpackages.
package sealedcontent
