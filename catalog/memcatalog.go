package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

/*
memCatalog is an in-memory implementation of the catalog interface. Entries
are lost on restart, so it suits tests and servers seeded from a directory at
startup.
*/

////////////////////////////////////////////////////////////////////////////////

type memCatalog struct {
	reserved map[string]uint64
	versions map[string][]Entry
	mtx      *sync.RWMutex
}

// NewMemCatalog returns an empty in-memory catalog.
func NewMemCatalog() Catalog {
	return &memCatalog{
		reserved: make(map[string]uint64),
		versions: make(map[string][]Entry),
		mtx:      &sync.RWMutex{},
	}
}

func (c *memCatalog) NextVersion(_ context.Context, name string) (uint64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.reserved[name]++
	return c.reserved[name], nil
}

func (c *memCatalog) Put(_ context.Context, entry Entry) error {
	if err := ValidateName(entry.Name); err != nil {
		return err
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	versions := c.versions[entry.Name]
	for _, existing := range versions {
		if existing.Version == entry.Version {
			return fmt.Errorf("%s version %d: %w", entry.Name, entry.Version, ErrVersionExists)
		}
	}
	if entry.Created == "" {
		entry.Created = time.Now().UTC().Format(time.RFC3339)
	}
	versions = append(versions, entry)
	slices.SortFunc(versions, func(a, b Entry) int {
		return cmp.Compare(a.Version, b.Version)
	})
	c.versions[entry.Name] = versions
	return nil
}

func (c *memCatalog) Get(_ context.Context, name string) (Entry, error) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	versions := c.versions[name]
	if len(versions) == 0 {
		return Entry{}, DatasetNotFoundError{Name: name}
	}
	return versions[len(versions)-1], nil
}

func (c *memCatalog) GetVersion(_ context.Context, name string, version uint64) (Entry, error) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	for _, entry := range c.versions[name] {
		if entry.Version == version {
			return entry, nil
		}
	}
	return Entry{}, DatasetNotFoundError{Name: name, Version: version}
}

func (c *memCatalog) List(_ context.Context) ([]Entry, error) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	names := maps.Keys(c.versions)
	slices.Sort(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		versions := c.versions[name]
		entries = append(entries, versions[len(versions)-1])
	}
	return entries, nil
}
