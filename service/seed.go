package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/dsmgr"
	"github.com/wkalt/dapd/util"
	"github.com/wkalt/dapd/util/log"
)

/*
Seeding imports every dataset found under a directory. Files are grouped by
their path without extension, and the group's base name becomes the dataset
name. A group with a .nc file is imported as netCDF. A group with a .dds file
is imported with its sibling .das, and with its values from the sibling .dods
or .json file if present. Groups that cannot be imported are logged and
skipped.
*/

////////////////////////////////////////////////////////////////////////////////

const seedPattern = "**/*.{dds,das,dods,json,nc}"

// Seed imports the datasets under dir, returning the number imported.
func Seed(ctx context.Context, mgr *dsmgr.Manager, dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", dir)
	}
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, seedPattern)
	if err != nil {
		return 0, fmt.Errorf("failed to glob %s: %w", dir, err)
	}
	groups := util.GroupBy(matches, func(p string) string {
		return strings.TrimSuffix(p, path.Ext(p))
	})
	imported := 0
	for _, stem := range util.Okeys(groups) {
		files, err := readGroup(fsys, groups[stem])
		if err != nil {
			return imported, err
		}
		name := path.Base(stem)
		entry, err := seedGroup(ctx, mgr, name, files)
		if err != nil {
			if errors.Is(err, dsmgr.InvalidDatasetError{}) ||
				errors.Is(err, catalog.InvalidNameError{}) ||
				errors.Is(err, dsmgr.ErrConflictingValues) ||
				errors.Is(err, errIncompleteGroup) {
				log.Warnw(ctx, "skipping seed dataset", "path", stem, "error", err)
				continue
			}
			return imported, fmt.Errorf("failed to import %s: %w", stem, err)
		}
		log.Debugw(ctx, "seeded dataset", "path", stem, "name", entry.Name, "version", entry.Version)
		imported++
	}
	return imported, nil
}

var errIncompleteGroup = errors.New("no .dds or .nc file")

func readGroup(fsys fs.FS, paths []string) (map[string][]byte, error) {
	files := make(map[string][]byte, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files[path.Ext(p)] = data
	}
	return files, nil
}

func seedGroup(ctx context.Context, mgr *dsmgr.Manager, name string, files map[string][]byte) (catalog.Entry, error) {
	if data, ok := files[".nc"]; ok {
		return mgr.ImportNetCDF(ctx, name, data)
	}
	ddsText, ok := files[".dds"]
	if !ok {
		return catalog.Entry{}, errIncompleteGroup
	}
	return mgr.Import(ctx, name, dsmgr.ImportRequest{
		DDS:    ddsText,
		DAS:    files[".das"],
		Data:   files[".dods"],
		Values: files[".json"],
	})
}
