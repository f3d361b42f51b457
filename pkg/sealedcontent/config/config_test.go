package config

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
	"golang.org/x/crypto/bcrypt"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.DatabaseType)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "legacy", cfg.KeyLayout)
	assert.Equal(t, sealedcontent.DefaultMaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, sealedcontent.DefaultAllowedContentTypes, cfg.AllowedContentTypes)
	assert.True(t, cfg.EnableEventLogging)
	assert.False(t, cfg.RunMigrations)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServerConfig)
		wantErr string
	}{
		{"defaults", func(c *ServerConfig) {}, ""},
		{"missing port", func(c *ServerConfig) { c.Port = "" }, "port is required"},
		{"relative base url", func(c *ServerConfig) { c.BaseURL = "/files" }, "base_url"},
		{"ftp base url", func(c *ServerConfig) { c.BaseURL = "ftp://files.example.com" }, "base_url"},
		{"unknown database", func(c *ServerConfig) { c.DatabaseType = "sqlite" }, "database_type"},
		{"postgres without url", func(c *ServerConfig) { c.DatabaseType = "postgres" }, "database_url"},
		{"bolt without path", func(c *ServerConfig) { c.DatabaseType = "bolt" }, "bolt path"},
		{"unknown storage", func(c *ServerConfig) { c.Storage.Type = "gcs" }, "unsupported storage"},
		{"fs without dir", func(c *ServerConfig) {
			c.Storage = StorageBackendConfig{Type: "fs", Config: map[string]interface{}{}}
		}, "base_dir"},
		{"s3 without bucket", func(c *ServerConfig) {
			c.Storage = StorageBackendConfig{Type: "s3", Config: map[string]interface{}{}}
		}, "bucket"},
		{"unknown layout", func(c *ServerConfig) { c.KeyLayout = "spiral" }, "unknown key layout"},
		{"negative size", func(c *ServerConfig) { c.MaxFileSize = -1 }, "max_file_size"},
		{"empty allow-list", func(c *ServerConfig) { c.AllowedContentTypes = nil }, "content type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// fileCapabilities splits a returned file URL into object id and key.
func fileCapabilities(t *testing.T, fileURL string) (string, string) {
	t.Helper()
	u, err := url.Parse(fileURL)
	require.NoError(t, err)
	return path.Base(u.Path), u.Query().Get("key")
}

func roundTrip(t *testing.T, svc sealedcontent.Service) (string, string) {
	t.Helper()
	ctx := context.Background()

	account, err := svc.Register(ctx, sealedcontent.RegisterRequest{Username: "alice", Password: "Passw0rdX"})
	require.NoError(t, err)

	result, err := svc.Upload(ctx, account, sealedcontent.UploadRequest{
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Data:        []byte("sealed with config"),
	})
	require.NoError(t, err)
	assert.Contains(t, result.FileURL, "https://files.example.com/api/v1/uploads/")

	id, key := fileCapabilities(t, result.FileURL)
	fetched, err := svc.Fetch(ctx, sealedcontent.FetchRequest{ObjectID: id, Key: key})
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed with config"), fetched.Data)

	return id, key
}

func TestBuildMemory(t *testing.T) {
	cfg, err := Load(
		WithBaseURL("https://files.example.com"),
		WithPasswordCost(bcrypt.MinCost),
		WithEventLogging(false),
	)
	require.NoError(t, err)

	rt, err := cfg.Build(context.Background())
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Repository)
	require.NotNil(t, rt.BlobStore)
	roundTrip(t, rt.Service)
}

type countingSink struct {
	sealedcontent.EventSink
	uploads int
}

func (s *countingSink) ObjectUploaded(ctx context.Context, object *sealedcontent.Object, owner *sealedcontent.Account) error {
	s.uploads++
	return nil
}

func TestBuildForwardsExtraSinks(t *testing.T) {
	cfg, err := Load(
		WithBaseURL("https://files.example.com"),
		WithPasswordCost(bcrypt.MinCost),
	)
	require.NoError(t, err)

	sink := &countingSink{EventSink: sealedcontent.NewNoopEventSink()}
	rt, err := cfg.Build(context.Background(), sink, nil)
	require.NoError(t, err)
	defer rt.Close()

	roundTrip(t, rt.Service)
	assert.Equal(t, 1, sink.uploads)
}

func TestBuildBoltAndFilesystemSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(
		WithBaseURL("https://files.example.com"),
		WithDatabase("bolt", filepath.Join(dir, "meta.db")),
		WithFilesystemStorage(filepath.Join(dir, "blobs")),
		WithKeyLayout("sharded"),
		WithPasswordCost(bcrypt.MinCost),
	)
	require.NoError(t, err)

	rt, err := cfg.Build(context.Background())
	require.NoError(t, err)
	id, key := roundTrip(t, rt.Service)
	rt.Close()

	rt, err = cfg.Build(context.Background())
	require.NoError(t, err)
	defer rt.Close()

	fetched, err := rt.Service.Fetch(context.Background(), sealedcontent.FetchRequest{ObjectID: id, Key: key})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", fetched.Object.OriginalName)
	assert.Equal(t, []byte("sealed with config"), fetched.Data)
}

func TestBuildUnreachablePostgres(t *testing.T) {
	cfg, err := Load(WithDatabase("postgres", "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"))
	require.NoError(t, err)

	_, err = cfg.Build(context.Background())
	assert.Error(t, err)
}
