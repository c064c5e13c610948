package catalog

import (
	"context"
	"errors"
	"regexp"
)

/*
The catalog associates dataset names with immutable versions of their stored
objects. Importing a dataset reserves the next version for its name, writes the
objects under the version's storage prefix, and then publishes the version by
putting its entry. Readers only ever see published versions, so a version's
objects never change once visible.

If you lose the catalog the stored objects are still intact, but the format of
each version must be inferred from the object names.
*/

////////////////////////////////////////////////////////////////////////////////

// Format identifies how a version's objects encode its values.
type Format string

const (
	// FormatDODS stores DDS and DAS text plus the binary value stream.
	FormatDODS Format = "dods"
	// FormatJSON stores DDS and DAS text plus a JSON values document.
	FormatJSON Format = "json"
	// FormatNetCDF stores a classic netCDF file.
	FormatNetCDF Format = "netcdf"
)

// ErrVersionExists is returned when publishing a version twice.
var ErrVersionExists = errors.New("version already exists")

// Dataset names double as the DDS dataset name, so they follow the same
// leading-character rule as DDS words.
// nolint:gochecknoglobals
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Entry describes one published version of a dataset.
type Entry struct {
	Name    string `json:"name"`
	Version uint64 `json:"version"`
	Format  Format `json:"format"`
	Prefix  string `json:"prefix"`
	Size    uint64 `json:"size"`
	Created string `json:"created"`
}

// Catalog stores dataset versions. Implementations are safe for concurrent
// use.
type Catalog interface {
	// NextVersion reserves a new version for name. Versions increase
	// monotonically per name, and a reserved version is never reissued even
	// if it is not published.
	NextVersion(ctx context.Context, name string) (uint64, error)

	// Put publishes an entry.
	Put(ctx context.Context, entry Entry) error

	// Get returns the latest published version of name.
	Get(ctx context.Context, name string) (Entry, error)

	// GetVersion returns a specific published version.
	GetVersion(ctx context.Context, name string, version uint64) (Entry, error)

	// List returns the latest version of every dataset, sorted by name.
	List(ctx context.Context) ([]Entry, error)
}

// ValidateName reports whether name can identify a dataset. Names appear in
// URL paths and storage prefixes, so they are limited to letters, digits,
// underscores and hyphens.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return InvalidNameError{Name: name}
	}
	return nil
}
