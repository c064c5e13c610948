package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/dsmgr"
	"github.com/wkalt/dapd/routes"
	"github.com/wkalt/dapd/util/log"
	"golang.org/x/sync/errgroup"
)

/*
This file is the main entrypoint for dapd server startup.
*/

////////////////////////////////////////////////////////////////////////////////

const shutdownGracePeriod = 10 * time.Second

type Dapd struct{}

// NewDapdService creates a new dapd service.
func NewDapdService() *Dapd {
	return &Dapd{}
}

// Start runs the service until ctx is canceled or the process receives
// SIGINT or SIGTERM, then shuts the server down gracefully.
func (d *Dapd) Start(ctx context.Context, options ...DapdOption) error {
	opts, err := readOpts(options...)
	if err != nil {
		return fmt.Errorf("failed to read options: %w", err)
	}
	if err := log.Configure(os.Stderr, opts.LogLevel, opts.LogFormat); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	log.Debugf(ctx, "Debug logging enabled")

	dbpath := opts.CatalogPath
	if dbpath != ":memory:" {
		dbpath += "?_journal=WAL&mode=rwc"
	}
	log.Infof(ctx, "Opening catalog at %s", dbpath)
	db, err := sql.Open("sqlite3", dbpath)
	if err != nil {
		return fmt.Errorf("failed to open catalog database: %w", err)
	}
	defer db.Close()
	if opts.CatalogPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err = db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database at %s: %w", dbpath, err)
	}
	cat, err := catalog.NewSQLCatalog(db)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}

	mgr := dsmgr.NewManager(cat, opts.StorageProvider, dsmgr.WithCacheSize(opts.CacheSize))
	if opts.SeedDir != "" {
		n, err := Seed(ctx, mgr, opts.SeedDir)
		if err != nil {
			return fmt.Errorf("failed to seed from %s: %w", opts.SeedDir, err)
		}
		log.Infow(ctx, "Seeded catalog", "dir", opts.SeedDir, "datasets", n)
	}

	log.Infof(ctx, "Building routes with allowed origins %+v", opts.AllowedOrigins)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           routes.MakeRoutes(mgr, opts.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow(ctx, "Starting server",
			"port", opts.Port, "cache", opts.CacheSize, "storage", opts.StorageProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infof(ctx, "Allowing %s for existing connections to close", shutdownGracePeriod)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Infof(ctx, "Server stopped")
		return nil
	})
	return g.Wait()
}

func readOpts(opts ...DapdOption) (*DapdOptions, error) {
	options := DapdOptions{
		Port:        8089,
		CacheSize:   64,
		LogLevel:    "info",
		LogFormat:   "text",
		CatalogPath: "dapd.db",
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
		},
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.StorageProvider == nil {
		return nil, errors.New("storage provider is required")
	}
	if options.CacheSize <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", options.CacheSize)
	}
	return &options, nil
}
