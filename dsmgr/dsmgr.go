package dsmgr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/dataset"
	"github.com/wkalt/dapd/source"
	"github.com/wkalt/dapd/storage"
	"github.com/wkalt/dapd/util"
	"github.com/wkalt/dapd/util/log"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

/*
The dataset manager connects the catalog, object storage, and the sources that
turn stored objects into datasets. Imports validate content by loading it,
write it under a fresh version's prefix, and publish the version. Opens resolve
the latest version and serve it from a cache of frozen datasets, loading it
from storage on a miss. Frozen datasets are shared read-only by concurrent
requests; callers that need to modify one must Clone it.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	objectDDS    = "dataset.dds"
	objectDAS    = "dataset.das"
	objectDODS   = "dataset.dods"
	objectJSON   = "dataset.json"
	objectNetCDF = "dataset.nc"
)

// nolint:gochecknoglobals
var formatObjects = map[catalog.Format][]string{
	catalog.FormatDODS:   {objectDDS, objectDAS, objectDODS},
	catalog.FormatJSON:   {objectDDS, objectDAS, objectJSON},
	catalog.FormatNetCDF: {objectNetCDF},
}

// ImportRequest is the content of a DDS-described dataset. Data is the binary
// value stream and Values a JSON values document; at most one may be set.
type ImportRequest struct {
	DDS    []byte
	DAS    []byte
	Data   []byte
	Values []byte
}

type cacheKey struct {
	name    string
	version uint64
}

// Manager is the main interface to the dsmgr package.
type Manager struct {
	catalog catalog.Catalog
	store   storage.Provider
	cache   *util.LRU[cacheKey, *dataset.Dataset]
	loads   *singleflight.Group
}

// NewManager returns a new Manager.
func NewManager(cat catalog.Catalog, store storage.Provider, opts ...Option) *Manager {
	conf := config{
		cacheSize: 64,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	cache := util.NewLRU[cacheKey, *dataset.Dataset](conf.cacheSize)
	cache.OnEvict(func(key cacheKey, _ *dataset.Dataset) {
		log.Debugw(context.Background(), "evicted dataset", "name", key.name, "version", key.version)
	})
	return &Manager{
		catalog: cat,
		store:   store,
		cache:   cache,
		loads:   &singleflight.Group{},
	}
}

// Import validates and stores a DDS-described dataset as a new version of
// name.
func (m *Manager) Import(ctx context.Context, name string, req ImportRequest) (catalog.Entry, error) {
	if err := catalog.ValidateName(name); err != nil {
		return catalog.Entry{}, err
	}
	if len(req.Data) > 0 && len(req.Values) > 0 {
		return catalog.Entry{}, ErrConflictingValues
	}
	var src source.Source
	objects := map[string][]byte{objectDDS: req.DDS, objectDAS: req.DAS}
	format := catalog.FormatDODS
	if len(req.Values) > 0 {
		format = catalog.FormatJSON
		objects[objectJSON] = req.Values
		src = source.JSON{DDS: req.DDS, DAS: req.DAS, Values: req.Values}
	} else {
		objects[objectDODS] = req.Data
		src = source.DODS{DDS: req.DDS, DAS: req.DAS, Data: req.Data}
	}
	return m.importSource(ctx, name, format, src, objects)
}

// ImportNetCDF validates and stores a classic netCDF file as a new version of
// name.
func (m *Manager) ImportNetCDF(ctx context.Context, name string, data []byte) (catalog.Entry, error) {
	if err := catalog.ValidateName(name); err != nil {
		return catalog.Entry{}, err
	}
	src := source.NetCDF{Name: name, Data: data}
	objects := map[string][]byte{objectNetCDF: data}
	return m.importSource(ctx, name, catalog.FormatNetCDF, src, objects)
}

func (m *Manager) importSource(
	ctx context.Context,
	name string,
	format catalog.Format,
	src source.Source,
	objects map[string][]byte,
) (catalog.Entry, error) {
	ds, err := src.Load(ctx)
	if err != nil {
		return catalog.Entry{}, InvalidDatasetError{Name: name, Err: err}
	}
	version, err := m.catalog.NextVersion(ctx, name)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("failed to reserve version: %w", err)
	}
	prefix := name + "/" + strconv.FormatUint(version, 10)
	var size uint64
	g, gctx := errgroup.WithContext(ctx)
	for _, object := range maps.Keys(objects) {
		data := objects[object]
		size += uint64(len(data))
		g.Go(func() error {
			if err := m.store.Put(gctx, prefix+"/"+object, data); err != nil {
				return fmt.Errorf("failed to store %s: %w", object, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return catalog.Entry{}, err
	}
	entry := catalog.Entry{
		Name:    name,
		Version: version,
		Format:  format,
		Prefix:  prefix,
		Size:    size,
	}
	if err := m.catalog.Put(ctx, entry); err != nil {
		return catalog.Entry{}, fmt.Errorf("failed to publish version: %w", err)
	}
	published, err := m.catalog.GetVersion(ctx, name, version)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("failed to read published version: %w", err)
	}
	ds.Freeze()
	m.cache.Put(cacheKey{name, version}, ds)
	log.Infow(ctx, "imported dataset",
		"name", name,
		"version", version,
		"format", format,
		"size", util.HumanBytes(size),
	)
	return published, nil
}

// Open returns the latest version of a dataset. The result is frozen.
func (m *Manager) Open(ctx context.Context, name string) (*dataset.Dataset, catalog.Entry, error) {
	entry, err := m.catalog.Get(ctx, name)
	if err != nil {
		return nil, catalog.Entry{}, err
	}
	ds, err := m.open(ctx, entry)
	if err != nil {
		return nil, catalog.Entry{}, err
	}
	return ds, entry, nil
}

// OpenVersion returns a specific version of a dataset. The result is frozen.
func (m *Manager) OpenVersion(ctx context.Context, name string, version uint64) (*dataset.Dataset, catalog.Entry, error) {
	entry, err := m.catalog.GetVersion(ctx, name, version)
	if err != nil {
		return nil, catalog.Entry{}, err
	}
	ds, err := m.open(ctx, entry)
	if err != nil {
		return nil, catalog.Entry{}, err
	}
	return ds, entry, nil
}

func (m *Manager) open(ctx context.Context, entry catalog.Entry) (*dataset.Dataset, error) {
	key := cacheKey{entry.Name, entry.Version}
	if ds, ok := m.cache.Get(key); ok {
		util.SetContextData(ctx, "cache", "hit")
		return ds, nil
	}
	util.SetContextData(ctx, "cache", "miss")
	result, err, _ := m.loads.Do(entry.Prefix, func() (any, error) {
		if ds, ok := m.cache.Get(key); ok {
			return ds, nil
		}
		ds, err := m.load(ctx, entry)
		if err != nil {
			return nil, err
		}
		ds.Freeze()
		m.cache.Put(key, ds)
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*dataset.Dataset), nil
}

func (m *Manager) load(ctx context.Context, entry catalog.Entry) (*dataset.Dataset, error) {
	ctx, _ = util.WithChildContext(ctx, "load")
	names, ok := formatObjects[entry.Format]
	if !ok {
		return nil, fmt.Errorf("unknown format %q for %s", entry.Format, entry.Prefix)
	}
	objects := make(map[string][]byte, len(names))
	mtx := &sync.Mutex{}
	g, gctx := errgroup.WithContext(ctx)
	for _, object := range names {
		g.Go(func() error {
			data, err := m.store.Get(gctx, entry.Prefix+"/"+object)
			if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				return fmt.Errorf("failed to fetch %s: %w", object, err)
			}
			util.IncContextValue(ctx, "bytes_fetched", float64(len(data)))
			mtx.Lock()
			objects[object] = data
			mtx.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var src source.Source
	switch entry.Format {
	case catalog.FormatDODS:
		src = source.DODS{DDS: objects[objectDDS], DAS: objects[objectDAS], Data: objects[objectDODS]}
	case catalog.FormatJSON:
		src = source.JSON{DDS: objects[objectDDS], DAS: objects[objectDAS], Values: objects[objectJSON]}
	case catalog.FormatNetCDF:
		src = source.NetCDF{Name: entry.Name, Data: objects[objectNetCDF]}
	}
	ds, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", entry.Prefix, err)
	}
	if unreachable := ds.Unreachable(); len(unreachable) > 0 {
		log.Debugw(ctx, "attribute containers name no variable",
			"name", entry.Name,
			"version", entry.Version,
			"containers", unreachable,
		)
	}
	log.Debugw(ctx, "loaded dataset", "name", entry.Name, "version", entry.Version)
	return ds, nil
}

// List returns the latest version of every dataset.
func (m *Manager) List(ctx context.Context) ([]catalog.Entry, error) {
	entries, err := m.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return entries, nil
}

// Entry returns the catalog entry for the latest version of name.
func (m *Manager) Entry(ctx context.Context, name string) (catalog.Entry, error) {
	return m.catalog.Get(ctx, name)
}

// Cached returns the number of opened versions held in memory.
func (m *Manager) Cached() int {
	return m.cache.Len()
}
