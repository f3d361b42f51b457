package objectkey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Generator defines the interface for blob key generation strategies
type Generator interface {
	// GenerateKey derives the blob store key for an object
	GenerateKey(objectID string, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	// OwnerName is the normalized username of the uploader
	OwnerName string
}

// PayloadExt is appended to keys by generators that produce file-like names.
const PayloadExt = ".sealed"

// LegacyGenerator keeps one directory per owner:
// uploads/{owner}/{object_id}.sealed
type LegacyGenerator struct{}

func NewLegacyGenerator() *LegacyGenerator {
	return &LegacyGenerator{}
}

func (g *LegacyGenerator) GenerateKey(objectID string, metadata *KeyMetadata) string {
	if metadata != nil && metadata.OwnerName != "" {
		return fmt.Sprintf("uploads/%s/%s%s", sanitizePathComponent(metadata.OwnerName), objectID, PayloadExt)
	}
	return fmt.Sprintf("uploads/%s%s", objectID, PayloadExt)
}

// GitLikeGenerator provides Git-style sharded storage:
// objects/{first N chars}/{remaining chars}
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *GitLikeGenerator) GenerateKey(objectID string, metadata *KeyMetadata) string {
	shard, rest := split(objectID, g.ShardLength)
	return fmt.Sprintf("objects/%s/%s", shard, rest)
}

// OwnerAwareGitLikeGenerator adds an owner prefix to Git-like sharding:
// owners/{owner}/objects/ab/cd1234...
type OwnerAwareGitLikeGenerator struct {
	BaseGenerator Generator
	DefaultOwner  string
}

func NewOwnerAwareGitLikeGenerator() *OwnerAwareGitLikeGenerator {
	return &OwnerAwareGitLikeGenerator{
		BaseGenerator: NewGitLikeGenerator(),
		DefaultOwner:  "_",
	}
}

func (g *OwnerAwareGitLikeGenerator) GenerateKey(objectID string, metadata *KeyMetadata) string {
	owner := g.DefaultOwner
	if metadata != nil && metadata.OwnerName != "" {
		owner = sanitizePathComponent(metadata.OwnerName)
	}
	return fmt.Sprintf("owners/%s/%s", owner, g.BaseGenerator.GenerateKey(objectID, metadata))
}

// HashedGitLikeGenerator shards on a hex hash of the object id so directory
// names are safe on case-insensitive filesystems.
type HashedGitLikeGenerator struct {
	ShardLength int
}

func NewHashedGitLikeGenerator() *HashedGitLikeGenerator {
	return &HashedGitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *HashedGitLikeGenerator) GenerateKey(objectID string, metadata *KeyMetadata) string {
	sum := sha256.Sum256([]byte(objectID))
	hashStr := hex.EncodeToString(sum[:])
	shard, rest := split(hashStr, g.ShardLength)
	return fmt.Sprintf("objects/%s/%s", shard, rest)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(objectID string, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(objectID string, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(objectID string, metadata *KeyMetadata) string {
	return g.GenerateFunc(objectID, metadata)
}

// Layout names accepted by FromName
const (
	LayoutLegacy       = "legacy"
	LayoutSharded      = "sharded"
	LayoutOwnerSharded = "owner-sharded"
	LayoutHashed       = "hashed"
)

// FromName returns the generator registered under a layout name.
func FromName(name string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LayoutLegacy:
		return NewLegacyGenerator(), nil
	case LayoutSharded:
		return NewGitLikeGenerator(), nil
	case LayoutOwnerSharded:
		return NewOwnerAwareGitLikeGenerator(), nil
	case LayoutHashed:
		return NewHashedGitLikeGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown key layout %q", name)
	}
}

func split(s string, n int) (string, string) {
	if n <= 0 {
		n = 2
	}
	if len(s) <= n {
		return s, s
	}
	return s[:n], s[n:]
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"..", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
