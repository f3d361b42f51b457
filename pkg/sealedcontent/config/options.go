package config

import (
	"fmt"
	"log/slog"

	"github.com/tendant/sealed-content/pkg/sealedcontent/objectkey"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithBaseURL sets the public prefix of returned file and delete URLs
func WithBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		if baseURL == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		c.BaseURL = baseURL
		return nil
	}
}

// WithDatabase configures the database backend. For bolt the location is a
// file path.
func WithDatabase(dbType, location string) Option {
	return func(c *ServerConfig) error {
		switch dbType {
		case "memory":
			c.DatabaseURL = ""
		case "postgres":
			if location == "" {
				return fmt.Errorf("database URL is required for postgres")
			}
			c.DatabaseURL = location
		case "bolt":
			if location == "" {
				return fmt.Errorf("file path is required for bolt")
			}
			c.BoltPath = location
			c.DatabaseURL = ""
		default:
			return fmt.Errorf("database type must be 'memory', 'postgres' or 'bolt', got: %s", dbType)
		}
		c.DatabaseType = dbType
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMigrations enables applying the embedded Postgres migrations on Build
func WithMigrations(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.RunMigrations = enabled
		return nil
	}
}

// WithMemoryStorage keeps payloads in memory (for testing)
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageBackendConfig{Type: "memory", Config: map[string]interface{}{}}
		return nil
	}
}

// WithFilesystemStorage stores payloads under baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Type: "fs",
			Config: map[string]interface{}{
				"base_dir": baseDir,
			},
		}
		return nil
	}
}

// WithS3Storage stores payloads in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.Storage = StorageBackendConfig{
			Type: "s3",
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		}
		return nil
	}
}

// WithS3Credentials sets static AWS credentials. Apply after WithS3Storage.
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return withS3Settings(map[string]interface{}{
		"access_key_id":     accessKeyID,
		"secret_access_key": secretAccessKey,
	})
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return withS3Settings(map[string]interface{}{
		"endpoint":       endpoint,
		"use_path_style": usePathStyle,
	})
}

// WithS3KeyPrefix prepends prefix to every payload key in the bucket
func WithS3KeyPrefix(prefix string) Option {
	return withS3Settings(map[string]interface{}{
		"key_prefix": prefix,
	})
}

// WithS3ServerSideEncryption enables SSE on stored payloads. kmsKeyID is
// only used with aws:kms.
func WithS3ServerSideEncryption(algorithm, kmsKeyID string) Option {
	return withS3Settings(map[string]interface{}{
		"enable_sse":     true,
		"sse_algorithm":  algorithm,
		"sse_kms_key_id": kmsKeyID,
	})
}

// WithS3CreateBucket creates the bucket on startup when it is missing
func WithS3CreateBucket(enabled bool) Option {
	return withS3Settings(map[string]interface{}{
		"create_bucket_if_not_exist": enabled,
	})
}

func withS3Settings(settings map[string]interface{}) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Type != "s3" {
			return fmt.Errorf("S3 storage must be configured first, current storage is %q", c.Storage.Type)
		}
		if c.Storage.Config == nil {
			c.Storage.Config = map[string]interface{}{}
		}
		for k, v := range settings {
			c.Storage.Config[k] = v
		}
		return nil
	}
}

// WithKeyLayout sets the blob key layout
// Valid values: "legacy", "sharded", "owner-sharded", "hashed"
func WithKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		if _, err := objectkey.FromName(layout); err != nil {
			return err
		}
		c.KeyLayout = layout
		return nil
	}
}

// WithMaxFileSize sets the plaintext size ceiling in bytes
func WithMaxFileSize(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max file size must be positive, got: %d", n)
		}
		c.MaxFileSize = n
		return nil
	}
}

// WithAllowedContentTypes replaces the upload allow-list
func WithAllowedContentTypes(types ...string) Option {
	return func(c *ServerConfig) error {
		if len(types) == 0 {
			return fmt.Errorf("at least one content type is required")
		}
		c.AllowedContentTypes = append([]string(nil), types...)
		return nil
	}
}

// WithEventLogging enables or disables event logging
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithPasswordCost sets the bcrypt cost for new accounts
func WithPasswordCost(cost int) Option {
	return func(c *ServerConfig) error {
		c.PasswordCost = cost
		return nil
	}
}

// WithLogger sets the logger handed to the service
func WithLogger(logger *slog.Logger) Option {
	return func(c *ServerConfig) error {
		c.Logger = logger
		return nil
	}
}

// WithDefaults is a convenience option that applies sensible defaults
// This is useful as a base before applying more specific options
func WithDefaults() Option {
	return func(c *ServerConfig) error {
		*c = defaults()
		return nil
	}
}
