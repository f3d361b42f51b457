package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
	"github.com/tendant/sealed-content/pkg/sealedcontent/objectkey"
	"github.com/tendant/sealed-content/pkg/sealedcontent/repo/bolt"
	"github.com/tendant/sealed-content/pkg/sealedcontent/repo/memory"
	repopg "github.com/tendant/sealed-content/pkg/sealedcontent/repo/postgres"
	fsstorage "github.com/tendant/sealed-content/pkg/sealedcontent/storage/fs"
	memorystorage "github.com/tendant/sealed-content/pkg/sealedcontent/storage/memory"
	s3storage "github.com/tendant/sealed-content/pkg/sealedcontent/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		BaseURL:      "http://localhost:8080",
		DatabaseType: "memory",
		DBSchema:     "sealed",
		Storage: StorageBackendConfig{
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		KeyLayout:           objectkey.LayoutLegacy,
		MaxFileSize:         sealedcontent.DefaultMaxFileSize,
		AllowedContentTypes: append([]string(nil), sealedcontent.DefaultAllowedContentTypes...),
		EnableEventLogging:  true,
	}
}

// ServerConfig represents server configuration for the sealed content service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing
	BaseURL     string // public prefix of returned file and delete URLs

	// Database configuration
	DatabaseURL   string
	DatabaseType  string // "memory", "postgres", "bolt"
	DBSchema      string // Postgres schema to use (default: sealed)
	BoltPath      string
	RunMigrations bool // apply embedded Postgres migrations on Build

	// Payload storage configuration
	Storage StorageBackendConfig

	// Upload policy
	KeyLayout           string
	MaxFileSize         int64
	AllowedContentTypes []string

	// Server options
	EnableEventLogging bool
	PasswordCost       int // bcrypt cost; zero keeps the service default
	Logger             *slog.Logger
}

// StorageBackendConfig represents configuration for the payload backend
type StorageBackendConfig struct {
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", c.BaseURL)
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "bolt":
		if c.BoltPath == "" {
			return errors.New("bolt path is required when using bolt")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'bolt'")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if getString(c.Storage.Config, "base_dir", "") == "" {
			return errors.New("filesystem storage requires base_dir")
		}
	case "s3":
		if getString(c.Storage.Config, "bucket", "") == "" {
			return errors.New("s3 storage requires bucket")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	if _, err := objectkey.FromName(c.KeyLayout); err != nil {
		return err
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	}

	if len(c.AllowedContentTypes) == 0 {
		return errors.New("at least one allowed content type is required")
	}

	return nil
}

// Runtime holds a built service together with the stores behind it
type Runtime struct {
	Service    sealedcontent.Service
	Repository sealedcontent.Repository
	BlobStore  sealedcontent.BlobStore

	closers []func()
}

// Close releases database handles opened by Build
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// Build creates the repository, blob store and Service described by the
// configuration. Extra sinks receive service events alongside the log sink.
func (c *ServerConfig) Build(ctx context.Context, sinks ...sealedcontent.EventSink) (*Runtime, error) {
	rt := &Runtime{}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	rt.Repository = repo
	if closeRepo != nil {
		rt.closers = append(rt.closers, closeRepo)
	}

	store, err := c.buildStorageBackend(c.Storage)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}
	rt.BlobStore = store

	keyGen, err := objectkey.FromName(c.KeyLayout)
	if err != nil {
		rt.Close()
		return nil, err
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	options := []sealedcontent.Option{
		sealedcontent.WithRepository(repo),
		sealedcontent.WithBlobStore(store),
		sealedcontent.WithKeyGenerator(keyGen),
		sealedcontent.WithBaseURL(c.BaseURL),
		sealedcontent.WithMaxFileSize(c.MaxFileSize),
		sealedcontent.WithAllowedContentTypes(c.AllowedContentTypes...),
		sealedcontent.WithLogger(logger),
	}
	if c.PasswordCost > 0 {
		options = append(options, sealedcontent.WithPasswordCost(c.PasswordCost))
	}

	var eventSinks sealedcontent.MultiEventSink
	if c.EnableEventLogging {
		eventSinks = append(eventSinks, sealedcontent.NewLogEventSink(logger))
	}
	for _, sink := range sinks {
		if sink != nil {
			eventSinks = append(eventSinks, sink)
		}
	}
	if len(eventSinks) > 0 {
		options = append(options, sealedcontent.WithEventSink(eventSinks))
	}

	svc, err := sealedcontent.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc

	return rt, nil
}

// buildRepository creates a Repository based on the configuration. The
// returned func, when non-nil, releases the underlying handle.
func (c *ServerConfig) buildRepository(ctx context.Context) (sealedcontent.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "bolt":
		repo, err := bolt.Open(c.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case "postgres":
		if c.RunMigrations {
			if err := repopg.Migrate(ctx, c.DatabaseURL, c.DBSchema); err != nil {
				return nil, nil, err
			}
		}
		pool, err := c.openPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return repopg.NewWithPool(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// openPool connects to Postgres with search_path pinned to DBSchema and
// verifies the connection.
func (c *ServerConfig) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if c.DatabaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	schema := c.DBSchema
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (sealedcontent.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/storage"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			KeyPrefix:              getString(config.Config, "key_prefix", ""),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
