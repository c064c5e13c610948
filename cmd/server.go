package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/wkalt/dapd/config"
	"github.com/wkalt/dapd/service"
	"github.com/wkalt/dapd/storage"
)

var serverConfigFile string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the dapd server",
	Long: `Start the dapd server.

Options are read from a YAML config file (dapd.yaml in the working directory
if --config is not supplied), then from DAPD_ environment variables, then from
flags. Each flag has a matching config key and variable, so --cache-size may
also be set as cache_size or DAPD_CACHE_SIZE.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, err := config.Load(serverConfigFile, cmd.Flags())
		if err != nil {
			bailf("error loading config: %s", err)
		}
		if err := cfg.Validate(); err != nil {
			bailf("invalid config: %s", err)
		}

		var store storage.Provider
		if cfg.DataDir == "" {
			mc, err := storage.NewMinioClient(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Region, cfg.S3UseTLS)
			if err != nil {
				bailf("error creating S3 client: %s", err)
			}
			if err := storage.EnsureBucket(ctx, mc, cfg.S3Bucket); err != nil {
				bailf("error preparing bucket %s: %s", cfg.S3Bucket, err)
			}
			store = storage.NewS3Store(mc, cfg.S3Bucket)
		} else {
			store = storage.NewDirectoryStore(cfg.DataDir)
		}

		opts := []service.DapdOption{
			service.WithPort(cfg.Port),
			service.WithCacheSize(cfg.CacheSize),
			service.WithLogLevel(cfg.LogLevel),
			service.WithLogFormat(cfg.LogFormat),
			service.WithCatalogPath(cfg.CatalogPath),
			service.WithSeedDir(cfg.SeedDir),
			service.WithStorageProvider(store),
		}
		if len(cfg.AllowedOrigins) > 0 {
			opts = append(opts, service.WithAllowedOrigins(cfg.AllowedOrigins))
		}
		if err := service.NewDapdService().Start(ctx, opts...); err != nil {
			bailf("Shutdown error: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Flag defaults are for help text only. Unset flags fall through to the
	// config file, the environment and the built-in defaults.
	flags := serverCmd.PersistentFlags()
	flags.StringVarP(&serverConfigFile, "config", "", "", "Config file")
	flags.IntP("port", "p", 8089, "Port to listen on")
	flags.Int64P("cache-size", "c", 64, "Number of dataset versions held in memory")
	flags.StringP("data-dir", "d", "", "Data directory (for directory storage)")
	flags.StringP("catalog-path", "", "dapd.db", "Catalog database location")
	flags.StringP("seed-dir", "", "", "Directory of datasets to import at startup")
	flags.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	flags.StringP("log-format", "", "text", "Log format (text, json)")
	flags.StringSliceP("allowed-origins", "o", []string{}, "Allowed origins")

	flags.String("s3-endpoint", "", "S3 endpoint (for S3 storage)")
	flags.String("s3-access-key-id", "", "S3 access key ID (for S3 storage)")
	flags.String("s3-secret-key", "", "S3 secret key (for S3 storage)")
	flags.String("s3-bucket", "", "S3 bucket (for S3 storage)")
	flags.BoolP("s3-tls", "t", false, "Use TLS (for S3 storage)")
	flags.String("s3-region", "", "S3 region")
}
