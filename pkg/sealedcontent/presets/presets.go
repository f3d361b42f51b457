// Package presets builds ready-to-use runtimes for common deployments.
// Each preset is a thin layer over the config package.
package presets

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/sealed-content/pkg/sealedcontent/config"
	"golang.org/x/crypto/bcrypt"
)

// NewDevelopment creates a runtime for local development.
//
// Features:
//   - Bolt metadata file and filesystem payloads under ./dev-data/
//     (persistent across restarts)
//   - Links rooted at http://localhost:{port}
//   - Event logging enabled
//
// The returned cleanup closes the runtime and removes the data directory.
//
// Example:
//
//	rt, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (*config.Runtime, func(), error) {
	cfg := &devConfig{
		dataDir: "./dev-data",
		port:    "8080",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	serverConfig, err := config.Load(
		config.WithPort(cfg.port),
		config.WithEnvironment("development"),
		config.WithBaseURL("http://localhost:"+cfg.port),
		config.WithDatabase("bolt", filepath.Join(cfg.dataDir, "meta.db")),
		config.WithFilesystemStorage(filepath.Join(cfg.dataDir, "blobs")),
	)
	if err != nil {
		return nil, nil, err
	}

	rt, err := serverConfig.Build(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create development runtime: %w", err)
	}

	cleanup := func() {
		rt.Close()
		os.RemoveAll(cfg.dataDir)
	}
	return rt, cleanup, nil
}

// NewTesting creates an isolated in-memory runtime for tests.
//
// Features:
//   - In-memory metadata and payloads
//   - Minimum bcrypt cost
//   - No event logging
//   - Closed automatically via t.Cleanup()
func NewTesting(t testing.TB, opts ...config.Option) *config.Runtime {
	t.Helper()

	base := []config.Option{
		config.WithEnvironment("testing"),
		config.WithBaseURL("https://files.example.com"),
		config.WithPasswordCost(bcrypt.MinCost),
		config.WithEventLogging(false),
	}
	serverConfig, err := config.Load(append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}

	rt, err := serverConfig.Build(context.Background())
	if err != nil {
		t.Fatalf("failed to create test runtime: %v", err)
	}
	t.Cleanup(rt.Close)

	return rt
}

// NewProduction creates a runtime from the environment and refuses
// configurations that would lose data or leak capabilities.
//
// Required:
//   - DATABASE_URL: postgres:// or bolt:// (memory is rejected)
//   - STORAGE_URL: file:// or s3:// (memory is rejected)
//   - BASE_URL: an https URL
//
// Extra options are applied after the environment.
func NewProduction(ctx context.Context, opts ...config.Option) (*config.Runtime, error) {
	base := []config.Option{
		config.WithEnv(""),
		config.WithEnvironment("production"),
	}
	serverConfig, err := config.Load(append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	if err := checkProduction(serverConfig); err != nil {
		return nil, err
	}

	return serverConfig.Build(ctx)
}

func checkProduction(c *config.ServerConfig) error {
	if c.DatabaseType == "memory" {
		return fmt.Errorf("production preset requires a persistent DATABASE_URL (memory not allowed in production)")
	}
	if c.Storage.Type == "memory" {
		return fmt.Errorf("production preset requires persistent storage (s3 or fs, not memory)")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme != "https" {
		return fmt.Errorf("production preset requires an https BASE_URL, got %q", c.BaseURL)
	}
	return nil
}

// devConfig holds development preset configuration
type devConfig struct {
	dataDir string
	port    string
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevDataDir sets the development data directory
func WithDevDataDir(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.dataDir = dir
	}
}

// WithDevPort sets the port used in development links
func WithDevPort(port string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.port = port
	}
}
