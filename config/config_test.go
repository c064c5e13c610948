package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/dapd/config"
)

func serverFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags.IntP("port", "p", 0, "")
	flags.Int64("cache-size", 0, "")
	flags.String("data-dir", "", "")
	flags.String("log-level", "", "")
	flags.StringSlice("allowed-origins", nil, "")
	flags.String("s3-endpoint", "", "")
	flags.String("s3-bucket", "", "")
	flags.Bool("s3-tls", false, "")
	return flags
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "dapd.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, 8089, cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, int64(64), cfg.CacheSize)
	require.Equal(t, "dapd.db", cfg.CatalogPath)
	require.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.AllowedOrigins)
	require.Empty(t, cfg.DataDir)
}

func TestLoadPrecedence(t *testing.T) {
	file := writeConfig(t, `
port: 9000
cache_size: 16
data_dir: /var/lib/dapd
log_level: debug
allowed_origins:
  - https://example.com
`)
	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := config.Load(file, nil)
		require.NoError(t, err)
		require.Equal(t, 9000, cfg.Port)
		require.Equal(t, int64(16), cfg.CacheSize)
		require.Equal(t, "/var/lib/dapd", cfg.DataDir)
		require.Equal(t, "debug", cfg.LogLevel)
		require.Equal(t, "text", cfg.LogFormat)
		require.Equal(t, []string{"https://example.com"}, cfg.AllowedOrigins)
	})
	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("DAPD_PORT", "9100")
		t.Setenv("DAPD_ALLOWED_ORIGINS", "https://a.com,https://b.com")
		cfg, err := config.Load(file, nil)
		require.NoError(t, err)
		require.Equal(t, 9100, cfg.Port)
		require.Equal(t, int64(16), cfg.CacheSize)
		require.Equal(t, []string{"https://a.com", "https://b.com"}, cfg.AllowedOrigins)
	})
	t.Run("changed flags override env", func(t *testing.T) {
		t.Setenv("DAPD_PORT", "9100")
		t.Setenv("DAPD_CACHE_SIZE", "32")
		flags := serverFlags()
		require.NoError(t, flags.Parse([]string{"--port", "9200", "--data-dir", "/tmp/data"}))
		cfg, err := config.Load(file, flags)
		require.NoError(t, err)
		require.Equal(t, 9200, cfg.Port)
		require.Equal(t, int64(32), cfg.CacheSize)
		require.Equal(t, "/tmp/data", cfg.DataDir)
	})
	t.Run("unchanged flags are ignored", func(t *testing.T) {
		flags := serverFlags()
		require.NoError(t, flags.Parse(nil))
		cfg, err := config.Load(file, flags)
		require.NoError(t, err)
		require.Equal(t, 9000, cfg.Port)
		require.Equal(t, "/var/lib/dapd", cfg.DataDir)
	})
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.ErrorContains(t, err, "error reading config file")
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Port:      8089,
			LogLevel:  "info",
			LogFormat: "text",
			CacheSize: 64,
			DataDir:   "data",
		}
	}
	cases := []struct {
		assertion string
		modify    func(*config.Config)
		errSubstr string
	}{
		{
			"directory storage",
			func(*config.Config) {},
			"",
		},
		{
			"s3 storage",
			func(c *config.Config) {
				c.DataDir = ""
				c.S3Endpoint = "localhost:9000"
				c.S3Bucket = "dapd"
			},
			"",
		},
		{
			"both storage options",
			func(c *config.Config) { c.S3Endpoint = "localhost:9000" },
			"cannot specify both",
		},
		{
			"no storage options",
			func(c *config.Config) { c.DataDir = "" },
			"must specify either",
		},
		{
			"s3 without bucket",
			func(c *config.Config) {
				c.DataDir = ""
				c.S3Endpoint = "localhost:9000"
			},
			"requires s3_endpoint and s3_bucket",
		},
		{
			"bad log level",
			func(c *config.Config) { c.LogLevel = "verbose" },
			"invalid log level",
		},
		{
			"bad log format",
			func(c *config.Config) { c.LogFormat = "xml" },
			"invalid log format",
		},
		{
			"bad port",
			func(c *config.Config) { c.Port = 70000 },
			"invalid port",
		},
		{
			"zero cache",
			func(c *config.Config) { c.CacheSize = 0 },
			"cache size must be positive",
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			cfg := valid()
			c.modify(&cfg)
			err := cfg.Validate()
			if c.errSubstr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, c.errSubstr)
		})
	}
}
