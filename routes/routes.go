package routes

import (
	"context"
	"errors"
	"net/http"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/wkalt/dapd/codec"
	"github.com/wkalt/dapd/dsmgr"
	"github.com/wkalt/dapd/util/mw"
)

/*
The routes package serves datasets over HTTP in the DAP2 style. A dataset is
addressed as /datasets/{name} and its representations by extension: .dds and
.das for the structure and attributes, .dods for the binary data response,
and .asc and .json for display. A specific version is addressed as
/datasets/{name}/{version}.{ext}. The raw query string is a comma-separated
projection, as in /datasets/sample.dods?site.lat,obs.
*/

////////////////////////////////////////////////////////////////////////////////

// Version is reported in the XDODS-Server header.
const Version = "dapd/0.1.0"

const extensions = "dds|das|dods|asc|json"

// MakeRoutes builds the HTTP handler for a dataset manager.
func MakeRoutes(mgr *dsmgr.Manager, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/datasets", newListHandler(mgr)).Methods(http.MethodGet)
	r.HandleFunc("/datasets/{name}.{ext:"+extensions+"}", newDatasetHandler(mgr)).Methods(http.MethodGet)
	r.HandleFunc("/datasets/{name}/{version:[0-9]+}.{ext:"+extensions+"}", newDatasetHandler(mgr)).Methods(http.MethodGet)
	r.HandleFunc("/datasets/{name}", newImportHandler(mgr)).Methods(http.MethodPost)
	r.HandleFunc("/datasets/{name}/netcdf", newNetCDFHandler(mgr)).Methods(http.MethodPut)

	var handler http.Handler = r
	handler = mw.WithRequestStats(handler)
	handler = mw.WithCORSAllowedOrigins(allowedOrigins)(handler)
	handler = mw.WithRequestID(handler)
	return handler
}

// clientError returns the underlying error if err was caused by the client
// going away during a response, and nil otherwise.
func clientError(err error) error {
	if !errors.Is(err, codec.ErrSinkClosed) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, syscall.EPIPE) &&
		!errors.Is(err, syscall.ECONNRESET) {
		return nil
	}
	return err
}
