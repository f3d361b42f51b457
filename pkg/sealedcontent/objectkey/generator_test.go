package objectkey

import (
	"strings"
	"testing"
)

const testObjectID = "Zm9vYmFyYmF6cXV4LXNlYWxlZC1jb250ZW50LWlkLTA"

func TestLegacyGenerator(t *testing.T) {
	gen := NewLegacyGenerator()

	tests := []struct {
		name     string
		metadata *KeyMetadata
		expected string
	}{
		{
			name:     "without owner",
			metadata: nil,
			expected: "uploads/" + testObjectID + ".sealed",
		},
		{
			name:     "with owner",
			metadata: &KeyMetadata{OwnerName: "alice"},
			expected: "uploads/alice/" + testObjectID + ".sealed",
		},
		{
			name:     "owner is sanitized",
			metadata: &KeyMetadata{OwnerName: "../Evil Owner"},
			expected: "uploads/__evil_owner/" + testObjectID + ".sealed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gen.GenerateKey(testObjectID, tt.metadata)
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestGitLikeGenerator(t *testing.T) {
	gen := NewGitLikeGenerator()

	result := gen.GenerateKey(testObjectID, nil)
	expected := "objects/Zm/" + testObjectID[2:]
	if result != expected {
		t.Errorf("expected %s, got %s", expected, result)
	}

	wide := &GitLikeGenerator{ShardLength: 3}
	if got := wide.GenerateKey(testObjectID, nil); !strings.HasPrefix(got, "objects/Zm9/") {
		t.Errorf("expected 3-char shard, got %s", got)
	}
}

func TestOwnerAwareGitLikeGenerator(t *testing.T) {
	gen := NewOwnerAwareGitLikeGenerator()

	tests := []struct {
		name     string
		metadata *KeyMetadata
		prefix   string
	}{
		{"default owner", nil, "owners/_/objects/Zm/"},
		{"named owner", &KeyMetadata{OwnerName: "Bob"}, "owners/bob/objects/Zm/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gen.GenerateKey(testObjectID, tt.metadata)
			if !strings.HasPrefix(result, tt.prefix) {
				t.Errorf("expected prefix %s, got %s", tt.prefix, result)
			}
		})
	}
}

func TestHashedGitLikeGenerator(t *testing.T) {
	gen := NewHashedGitLikeGenerator()

	result1 := gen.GenerateKey(testObjectID, nil)
	result2 := gen.GenerateKey(testObjectID, nil)
	if result1 != result2 {
		t.Errorf("hashed generator should be deterministic, got %s vs %s", result1, result2)
	}

	parts := strings.Split(result1, "/")
	if len(parts) != 3 || len(parts[1]) != 2 {
		t.Errorf("expected objects/{2 hex}/{rest}, got %s", result1)
	}
	if strings.ToLower(result1) != result1 {
		t.Errorf("expected lowercase key, got %s", result1)
	}
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := NewCustomFuncGenerator(func(objectID string, metadata *KeyMetadata) string {
		return "custom/" + objectID + ".dat"
	})

	result := gen.GenerateKey("abc", nil)
	if result != "custom/abc.dat" {
		t.Errorf("expected custom/abc.dat, got %s", result)
	}
}

func TestFromName(t *testing.T) {
	for _, name := range []string{"", LayoutLegacy, LayoutSharded, LayoutOwnerSharded, LayoutHashed, " Sharded "} {
		if _, err := FromName(name); err != nil {
			t.Errorf("FromName(%q): unexpected error %v", name, err)
		}
	}
	if _, err := FromName("flat"); err == nil {
		t.Error("expected error for unknown layout")
	}
}
