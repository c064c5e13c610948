package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

/*
Package config loads server configuration. Values are merged from, in
increasing precedence: built-in defaults, a YAML file, environment variables
prefixed with DAPD_, and explicitly set command line flags. Keys are snake
case; flags use the kebab-case form of the same key, and environment
variables the upper-case form, so cache_size may be given as --cache-size or
DAPD_CACHE_SIZE.
*/

////////////////////////////////////////////////////////////////////////////////

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "DAPD_"

// DefaultFile is read when present and no file is named explicitly.
const DefaultFile = "dapd.yaml"

// Config is the server configuration.
type Config struct {
	Port           int      `koanf:"port"`
	LogLevel       string   `koanf:"log_level"`
	LogFormat      string   `koanf:"log_format"`
	CacheSize      int64    `koanf:"cache_size"`
	CatalogPath    string   `koanf:"catalog_path"`
	DataDir        string   `koanf:"data_dir"`
	SeedDir        string   `koanf:"seed_dir"`
	AllowedOrigins []string `koanf:"allowed_origins"`

	S3Endpoint  string `koanf:"s3_endpoint"`
	S3AccessKey string `koanf:"s3_access_key_id"`
	S3SecretKey string `koanf:"s3_secret_key"`
	S3Bucket    string `koanf:"s3_bucket"`
	S3Region    string `koanf:"s3_region"`
	S3UseTLS    bool   `koanf:"s3_tls"`
}

// nolint:gochecknoglobals
var defaults = map[string]any{
	"port":         8089,
	"log_level":    "info",
	"log_format":   "text",
	"cache_size":   64,
	"catalog_path": "dapd.db",
	"allowed_origins": []string{
		"http://localhost:5173",
		"http://localhost:8080",
	},
}

// nolint:gochecknoglobals
var listKeys = map[string]struct{}{
	"allowed_origins": {},
}

// S3Requested reports whether any S3 storage option is set.
func (c *Config) S3Requested() bool {
	return c.S3Endpoint != "" || c.S3AccessKey != "" || c.S3SecretKey != "" || c.S3Bucket != ""
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	}
	if c.DataDir != "" && c.S3Requested() {
		return errors.New("cannot specify both data_dir and S3 options")
	}
	if c.DataDir == "" && !c.S3Requested() {
		return errors.New("must specify either data_dir or S3 options")
	}
	if c.S3Requested() && (c.S3Endpoint == "" || c.S3Bucket == "") {
		return errors.New("S3 storage requires s3_endpoint and s3_bucket")
	}
	return nil
}

// Load reads configuration from cfgFile, the environment and flags. If cfgFile
// is empty, DefaultFile is read if it exists. Flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			cfgFile = DefaultFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// DAPD_CACHE_SIZE -> cache_size. Lists are comma separated.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if _, ok := listKeys[key]; ok {
			return key, strings.Split(value, ",")
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return cfg, nil
}
