package catalog_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/dapd/catalog"
)

func TestCatalogs(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		f         func(*testing.T) catalog.Catalog
	}{
		{
			"mem",
			func(t *testing.T) catalog.Catalog {
				t.Helper()
				return catalog.NewMemCatalog()
			},
		},
		{
			"sql",
			func(t *testing.T) catalog.Catalog {
				t.Helper()
				db, err := sql.Open("sqlite3", ":memory:")
				require.NoError(t, err)
				db.SetMaxOpenConns(1)
				t.Cleanup(func() { db.Close() })
				c, err := catalog.NewSQLCatalog(db)
				require.NoError(t, err)
				return c
			},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			cat := c.f(t)
			publish := func(t *testing.T, name string, format catalog.Format) catalog.Entry {
				t.Helper()
				version, err := cat.NextVersion(ctx, name)
				require.NoError(t, err)
				entry := catalog.Entry{
					Name:    name,
					Version: version,
					Format:  format,
					Prefix:  name + "/v",
					Size:    100,
				}
				require.NoError(t, cat.Put(ctx, entry))
				return entry
			}

			t.Run("versions increase per name", func(t *testing.T) {
				v1, err := cat.NextVersion(ctx, "reserve")
				require.NoError(t, err)
				v2, err := cat.NextVersion(ctx, "reserve")
				require.NoError(t, err)
				other, err := cat.NextVersion(ctx, "reserve-other")
				require.NoError(t, err)
				require.Equal(t, uint64(1), v1)
				require.Equal(t, uint64(2), v2)
				require.Equal(t, uint64(1), other)
			})
			t.Run("put and get", func(t *testing.T) {
				expected := publish(t, "sst", catalog.FormatDODS)
				entry, err := cat.Get(ctx, "sst")
				require.NoError(t, err)
				require.Equal(t, expected.Version, entry.Version)
				require.Equal(t, catalog.FormatDODS, entry.Format)
				require.Equal(t, "sst/v", entry.Prefix)
				require.Equal(t, uint64(100), entry.Size)
				require.NotEmpty(t, entry.Created)
			})
			t.Run("get latest", func(t *testing.T) {
				publish(t, "wind", catalog.FormatJSON)
				latest := publish(t, "wind", catalog.FormatNetCDF)
				entry, err := cat.Get(ctx, "wind")
				require.NoError(t, err)
				require.Equal(t, latest.Version, entry.Version)
				require.Equal(t, catalog.FormatNetCDF, entry.Format)

				first, err := cat.GetVersion(ctx, "wind", 1)
				require.NoError(t, err)
				require.Equal(t, catalog.FormatJSON, first.Format)
			})
			t.Run("duplicate version", func(t *testing.T) {
				entry, err := cat.Get(ctx, "sst")
				require.NoError(t, err)
				require.ErrorIs(t, cat.Put(ctx, entry), catalog.ErrVersionExists)
			})
			t.Run("missing datasets", func(t *testing.T) {
				_, err := cat.Get(ctx, "nope")
				require.ErrorIs(t, err, catalog.DatasetNotFoundError{})
				_, err = cat.GetVersion(ctx, "sst", 99)
				require.ErrorIs(t, err, catalog.DatasetNotFoundError{})
			})
			t.Run("invalid names", func(t *testing.T) {
				_, err := cat.NextVersion(ctx, "sst.dds")
				require.ErrorIs(t, err, catalog.InvalidNameError{})
				err = cat.Put(ctx, catalog.Entry{Name: "a/b", Version: 1})
				require.ErrorIs(t, err, catalog.InvalidNameError{})
				_, err = cat.NextVersion(ctx, "2024obs")
				require.ErrorIs(t, err, catalog.InvalidNameError{})
				_, err = cat.NextVersion(ctx, "_obs-2024")
				require.NoError(t, err)
			})
			t.Run("list", func(t *testing.T) {
				entries, err := cat.List(ctx)
				require.NoError(t, err)
				names := []string{}
				for _, entry := range entries {
					names = append(names, entry.Name)
				}
				require.Equal(t, []string{"sst", "wind"}, names)
				require.Equal(t, uint64(2), entries[1].Version)
			})
		})
	}
}

func TestConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemCatalog()
	wg := &sync.WaitGroup{}
	versions := make(chan uint64, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cat.NextVersion(ctx, "busy")
			if err == nil {
				versions <- v
			}
		}()
	}
	wg.Wait()
	close(versions)
	seen := map[uint64]bool{}
	for v := range versions {
		require.False(t, seen[v])
		seen[v] = true
	}
	require.Len(t, seen, 50)
}
