package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//   - PORT: server port (default "8080")
//   - ENVIRONMENT: runtime environment (default "development")
//   - BASE_URL: public prefix of returned links (default "http://localhost:8080")
//
// Database:
//   - DATABASE_URL: empty or "memory" for in-memory metadata (default),
//     "postgres://..." or "postgresql://..." for Postgres,
//     or "bolt:///path/to/meta.db" for an embedded bolt file
//   - DATABASE_SCHEMA: Postgres schema (default "sealed")
//   - RUN_MIGRATIONS: apply embedded migrations on start (default false)
//
// Storage:
//   - STORAGE_URL: "memory://" for in-memory storage (default),
//     "file:///path/to/data" for filesystem storage,
//     or "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//   - AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_REGION: honoured for s3
//
// Uploads:
//   - MAX_FILE_SIZE: plaintext ceiling in bytes (default 52428800)
//   - ALLOWED_CONTENT_TYPES: comma separated allow-list
//   - KEY_LAYOUT: legacy, sharded, owner-sharded or hashed
//   - EVENT_LOGGING: log service events (default true)
//   - PASSWORD_COST: bcrypt cost for new accounts
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "BASE_URL"); ok && v != "" {
			c.BaseURL = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}

		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}

		return applyUploadEnv(prefix, c)
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "DATABASE_SCHEMA"); ok && v != "" {
		c.DBSchema = v
	}
	migrate, ok, err := parseBoolEnv(prefix, "RUN_MIGRATIONS")
	if err != nil {
		return err
	}
	if ok {
		c.RunMigrations = migrate
	}

	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")
	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
		return nil
	}

	u, err := url.Parse(dbURL)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	case "bolt":
		path := u.Host + u.Path
		if path == "" {
			return fmt.Errorf("bolt path cannot be empty in DATABASE_URL")
		}
		c.DatabaseType = "bolt"
		c.BoltPath = path
		c.DatabaseURL = ""
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory', 'postgresql://...' or 'bolt://...')", dbURL)
	}

	return nil
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")

	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.Storage = StorageBackendConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}

	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		return applyFilesystemStorage(u, c)
	case "s3":
		return applyS3Storage(u, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from URL
// Format: file:///path/to/data
func applyFilesystemStorage(u *url.URL, c *ServerConfig) error {
	path := u.Host + u.Path
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	c.Storage = StorageBackendConfig{
		Type: "fs",
		Config: map[string]interface{}{
			"base_dir": path,
		},
	}
	return nil
}

// applyS3Storage configures S3 storage from URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000
func applyS3Storage(u *url.URL, c *ServerConfig) error {
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	q := u.Query()
	backend := StorageBackendConfig{
		Type: "s3",
		Config: map[string]interface{}{
			"bucket": u.Host,
			"region": "us-east-1",
		},
	}
	if region := q.Get("region"); region != "" {
		backend.Config["region"] = region
	}
	if endpoint := q.Get("endpoint"); endpoint != "" {
		backend.Config["endpoint"] = endpoint
	}
	if prefix := strings.Trim(u.Path, "/"); prefix != "" {
		backend.Config["key_prefix"] = prefix
	}
	for param, key := range map[string]string{
		"path_style":    "use_path_style",
		"create_bucket": "create_bucket_if_not_exist",
		"sse":           "enable_sse",
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean for STORAGE_URL parameter %s: %w", param, err)
		}
		backend.Config[key] = b
	}

	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		backend.Config["access_key_id"] = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		backend.Config["secret_access_key"] = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" && q.Get("region") == "" {
		backend.Config["region"] = region
	}

	c.Storage = backend
	return nil
}

// applyUploadEnv applies upload policy from environment
func applyUploadEnv(prefix string, c *ServerConfig) error {
	if raw, ok := lookupEnv(prefix, "MAX_FILE_SIZE"); ok && raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer for %sMAX_FILE_SIZE: %w", prefix, err)
		}
		c.MaxFileSize = n
	}

	if raw, ok := lookupEnv(prefix, "ALLOWED_CONTENT_TYPES"); ok && raw != "" {
		var types []string
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		c.AllowedContentTypes = types
	}

	if v, ok := lookupEnv(prefix, "KEY_LAYOUT"); ok && v != "" {
		c.KeyLayout = v
	}

	enabled, ok, err := parseBoolEnv(prefix, "EVENT_LOGGING")
	if err != nil {
		return err
	}
	if ok {
		c.EnableEventLogging = enabled
	}

	cost, ok, err := parseIntEnv(prefix, "PASSWORD_COST")
	if err != nil {
		return err
	}
	if ok {
		c.PasswordCost = cost
	}

	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
