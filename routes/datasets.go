package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spaolacci/murmur3"
	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/dap"
	"github.com/wkalt/dapd/das"
	"github.com/wkalt/dapd/dataset"
	"github.com/wkalt/dapd/dds"
	"github.com/wkalt/dapd/dsmgr"
	"github.com/wkalt/dapd/render"
	"github.com/wkalt/dapd/util"
	"github.com/wkalt/dapd/util/httputil"
	"github.com/wkalt/dapd/util/log"
)

// DataSeparator divides the DDS preamble of a .dods response from the binary
// values.
const DataSeparator = "Data:\n"

type responseWriter func(w io.Writer, ds *dataset.Dataset, r *http.Request) error

type representation struct {
	contentType string
	description string
	write       responseWriter
}

// nolint:gochecknoglobals
var representations = map[string]representation{
	"dds":  {"text/plain; charset=utf-8", "dods-dds", writeDDS},
	"das":  {"text/plain; charset=utf-8", "dods-das", writeDAS},
	"dods": {"application/octet-stream", "dods-data", writeData},
	"asc":  {"text/plain; charset=utf-8", "dods-ascii", writeASCII},
	"json": {"application/json", "dods-json", writeJSON},
}

func writeDDS(w io.Writer, ds *dataset.Dataset, _ *http.Request) error {
	return dds.Format(w, ds.DDS())
}

func writeDAS(w io.Writer, ds *dataset.Dataset, _ *http.Request) error {
	return das.Format(w, ds.Attributes())
}

func writeASCII(w io.Writer, ds *dataset.Dataset, _ *http.Request) error {
	return render.WriteASCII(w, ds)
}

func writeJSON(w io.Writer, ds *dataset.Dataset, _ *http.Request) error {
	return render.WriteJSON(w, ds)
}

func writeData(w io.Writer, ds *dataset.Dataset, r *http.Request) error {
	if err := dds.Format(w, ds.DDS()); err != nil {
		return err
	}
	if _, err := io.WriteString(w, DataSeparator); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}
	ctx := r.Context()
	counter := util.NewCountingWriter(w)
	err := ds.Encode(ctx, counter)
	util.IncContextValue(ctx, "bytes_encoded", float64(counter.Count()))
	return err
}

// parseProjection splits a raw query string into variable paths.
func parseProjection(raw string) ([]string, error) {
	query, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed query: %w", err)
	}
	if strings.Contains(query, "&") {
		return nil, errors.New("selection clauses are not supported")
	}
	paths := []string{}
	for _, p := range strings.Split(query, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// etag identifies a representation of one version of a dataset. Versions are
// immutable so the tag only changes when a new version is published.
func etag(entry catalog.Entry, ext string, projection []string) string {
	h := murmur3.New64()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s", entry.Name, entry.Version, ext, strings.Join(projection, ","))
	return fmt.Sprintf(`"%016x"`, h.Sum64())
}

func newDatasetHandler(mgr *dsmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		vars := mux.Vars(r)
		name, ext := vars["name"], vars["ext"]
		ctx = log.AddTags(ctx, "dataset", name)
		projection, err := parseProjection(r.URL.RawQuery)
		if err != nil {
			httputil.BadRequest(ctx, w, "invalid projection: %w", err)
			return
		}

		var ds *dataset.Dataset
		var entry catalog.Entry
		if v, ok := vars["version"]; ok {
			version, perr := strconv.ParseUint(v, 10, 64)
			if perr != nil {
				httputil.BadRequest(ctx, w, "invalid version: %s", v)
				return
			}
			ds, entry, err = mgr.OpenVersion(ctx, name, version)
		} else {
			ds, entry, err = mgr.Open(ctx, name)
		}
		if err != nil {
			if errors.Is(err, catalog.DatasetNotFoundError{}) || errors.Is(err, catalog.InvalidNameError{}) {
				httputil.NotFound(ctx, w, "%w", err)
				return
			}
			httputil.InternalServerError(ctx, w, "failed to open dataset: %s", err)
			return
		}
		util.SetContextData(ctx, "version", strconv.FormatUint(entry.Version, 10))

		tag := etag(entry, ext, projection)
		w.Header().Set("ETag", tag)
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		if len(projection) > 0 {
			ds, err = ds.Project(projection...)
			if err != nil {
				if errors.Is(err, dap.NotFoundError{}) {
					httputil.BadRequest(ctx, w, "invalid projection: %w", err)
					return
				}
				httputil.InternalServerError(ctx, w, "failed to project dataset: %s", err)
				return
			}
		}
		util.SetContextValue(ctx, "variables", float64(len(ds.Variables())))

		rep := representations[ext]
		w.Header().Set("Content-Type", rep.contentType)
		w.Header().Set("Content-Description", rep.description)
		w.Header().Set("XDODS-Server", Version)
		log.Debugw(ctx, "dataset request", "version", entry.Version, "ext", ext, "projection", projection)
		if err := rep.write(w, ds, r.WithContext(ctx)); err != nil {
			if cerr := clientError(err); cerr != nil {
				log.Infof(ctx, "Client closed connection: %s", cerr)
				return
			}
			// The status line has been sent, so the failure can only be
			// logged.
			log.Errorw(ctx, "failed to write response", "ext", ext, "error", err)
		}
	}
}

func newListHandler(mgr *dsmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		entries, err := mgr.List(ctx)
		if err != nil {
			httputil.InternalServerError(ctx, w, "failed to list datasets: %s", err)
			return
		}
		if entries == nil {
			entries = []catalog.Entry{}
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, entries)
	}
}
