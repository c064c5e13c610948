package service

import (
	"github.com/wkalt/dapd/storage"
)

// DapdOption is a functional option for the dapd service.
type DapdOption func(*DapdOptions)

// DapdOptions contains options for the dapd service.
type DapdOptions struct {
	Port            int
	CacheSize       int64
	LogLevel        string
	LogFormat       string
	CatalogPath     string
	SeedDir         string
	AllowedOrigins  []string
	StorageProvider storage.Provider
}

// WithPort sets the port to listen on.
func WithPort(port int) DapdOption {
	return func(opts *DapdOptions) {
		opts.Port = port
	}
}

// WithCacheSize sets the number of opened dataset versions held in memory.
func WithCacheSize(size int64) DapdOption {
	return func(opts *DapdOptions) {
		opts.CacheSize = size
	}
}

// WithLogLevel sets the log level (debug, info, warn or error).
func WithLogLevel(level string) DapdOption {
	return func(opts *DapdOptions) {
		opts.LogLevel = level
	}
}

// WithLogFormat sets the log format (text or json).
func WithLogFormat(format string) DapdOption {
	return func(opts *DapdOptions) {
		opts.LogFormat = format
	}
}

// WithCatalogPath sets the location of the catalog database.
func WithCatalogPath(path string) DapdOption {
	return func(opts *DapdOptions) {
		opts.CatalogPath = path
	}
}

// WithSeedDir sets a directory of datasets to import at startup.
func WithSeedDir(dir string) DapdOption {
	return func(opts *DapdOptions) {
		opts.SeedDir = dir
	}
}

// WithAllowedOrigins sets the allowed CORS origins.
func WithAllowedOrigins(origins []string) DapdOption {
	return func(opts *DapdOptions) {
		opts.AllowedOrigins = origins
	}
}

// WithStorageProvider sets the storage provider.
func WithStorageProvider(store storage.Provider) DapdOption {
	return func(opts *DapdOptions) {
		opts.StorageProvider = store
	}
}
