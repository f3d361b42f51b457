package config

import (
	"testing"
)

func TestWithPort(t *testing.T) {
	cfg, err := Load(WithPort("9090"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got: %s", cfg.Port)
	}
}

func TestWithPortEmpty(t *testing.T) {
	_, err := Load(WithPort(""))
	if err == nil {
		t.Error("expected error for empty port, got nil")
	}
}

func TestWithEnvironment(t *testing.T) {
	cfg, err := Load(WithEnvironment("production"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected environment production, got: %s", cfg.Environment)
	}
}

func TestWithDatabase(t *testing.T) {
	tests := []struct {
		name      string
		dbType    string
		location  string
		wantError bool
	}{
		{"memory valid", "memory", "", false},
		{"postgres valid", "postgres", "postgresql://localhost/test", false},
		{"postgres missing url", "postgres", "", true},
		{"bolt valid", "bolt", "/tmp/meta.db", false},
		{"bolt missing path", "bolt", "", true},
		{"invalid type", "mysql", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(WithDatabase(tt.dbType, tt.location))
			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if cfg.DatabaseType != tt.dbType {
				t.Errorf("expected database type %s, got: %s", tt.dbType, cfg.DatabaseType)
			}
			if tt.dbType == "bolt" && cfg.BoltPath != tt.location {
				t.Errorf("expected bolt path %s, got: %s", tt.location, cfg.BoltPath)
			}
		})
	}
}

func TestWithFilesystemStorage(t *testing.T) {
	cfg, err := Load(WithFilesystemStorage("/var/sealed"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Storage.Type != "fs" {
		t.Errorf("expected fs storage, got: %s", cfg.Storage.Type)
	}
	if cfg.Storage.Config["base_dir"] != "/var/sealed" {
		t.Errorf("expected base_dir /var/sealed, got: %v", cfg.Storage.Config["base_dir"])
	}

	if _, err := Load(WithFilesystemStorage("")); err == nil {
		t.Error("expected error for empty base dir, got nil")
	}
}

func TestWithS3Storage(t *testing.T) {
	cfg, err := Load(
		WithS3Storage("uploads", ""),
		WithS3Credentials("key", "secret"),
		WithS3Endpoint("http://localhost:9000", true),
		WithS3KeyPrefix("tenant-a"),
		WithS3ServerSideEncryption("aws:kms", "kms-key"),
		WithS3CreateBucket(true),
	)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	want := map[string]interface{}{
		"bucket":                     "uploads",
		"region":                     "us-east-1",
		"access_key_id":              "key",
		"secret_access_key":          "secret",
		"endpoint":                   "http://localhost:9000",
		"use_path_style":             true,
		"key_prefix":                 "tenant-a",
		"enable_sse":                 true,
		"sse_algorithm":              "aws:kms",
		"sse_kms_key_id":             "kms-key",
		"create_bucket_if_not_exist": true,
	}
	for k, v := range want {
		if got := cfg.Storage.Config[k]; got != v {
			t.Errorf("expected %s=%v, got: %v", k, v, got)
		}
	}
}

func TestWithS3SettingsRequireS3(t *testing.T) {
	_, err := Load(WithS3Credentials("key", "secret"))
	if err == nil {
		t.Error("expected error when S3 storage is not configured, got nil")
	}
}

func TestWithKeyLayout(t *testing.T) {
	for _, layout := range []string{"legacy", "sharded", "owner-sharded", "hashed"} {
		cfg, err := Load(WithKeyLayout(layout))
		if err != nil {
			t.Fatalf("expected no error for %s, got: %v", layout, err)
		}
		if cfg.KeyLayout != layout {
			t.Errorf("expected layout %s, got: %s", layout, cfg.KeyLayout)
		}
	}

	if _, err := Load(WithKeyLayout("spiral")); err == nil {
		t.Error("expected error for unknown layout, got nil")
	}
}

func TestWithUploadPolicy(t *testing.T) {
	cfg, err := Load(
		WithMaxFileSize(1024),
		WithAllowedContentTypes("text/plain"),
	)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.MaxFileSize != 1024 {
		t.Errorf("expected max file size 1024, got: %d", cfg.MaxFileSize)
	}
	if len(cfg.AllowedContentTypes) != 1 || cfg.AllowedContentTypes[0] != "text/plain" {
		t.Errorf("unexpected content types: %v", cfg.AllowedContentTypes)
	}

	if _, err := Load(WithMaxFileSize(0)); err == nil {
		t.Error("expected error for zero max file size, got nil")
	}
	if _, err := Load(WithAllowedContentTypes()); err == nil {
		t.Error("expected error for empty allow-list, got nil")
	}
}

func TestWithDefaultsResets(t *testing.T) {
	cfg, err := Load(WithPort("9999"), WithEventLogging(false), WithDefaults())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port, got: %s", cfg.Port)
	}
	if !cfg.EnableEventLogging {
		t.Error("expected event logging enabled by default")
	}
}

func TestNilOptionIgnored(t *testing.T) {
	if _, err := Load(nil, WithPort("8081")); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}
