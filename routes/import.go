package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/dsmgr"
	"github.com/wkalt/dapd/util"
	"github.com/wkalt/dapd/util/httputil"
	"github.com/wkalt/dapd/util/log"
)

// maxImportSize bounds request bodies of the import endpoints.
const maxImportSize = 1 << 30

// ImportRequest is the request body for the import endpoint. Data is the
// binary value stream, base64 encoded in JSON. Values is a JSON values
// document keyed by variable path. At most one of them may be supplied.
type ImportRequest struct {
	DDS    string          `json:"dds"`
	DAS    string          `json:"das,omitempty"`
	Data   []byte          `json:"data,omitempty"`
	Values json.RawMessage `json:"values,omitempty"`
}

func (req ImportRequest) validate() error {
	if req.DDS == "" {
		return errors.New("missing dds")
	}
	return nil
}

func importError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, dsmgr.InvalidDatasetError{}),
		errors.Is(err, catalog.InvalidNameError{}),
		errors.Is(err, dsmgr.ErrConflictingValues):
		httputil.BadRequest(ctx, w, "%w", err)
	default:
		httputil.InternalServerError(ctx, w, "failed to import dataset: %s", err)
	}
}

func newImportHandler(mgr *dsmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := mux.Vars(r)["name"]
		ctx = log.AddTags(ctx, "dataset", name)
		req := ImportRequest{}
		defer r.Body.Close()
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportSize)).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		log.Infow(ctx, "import request",
			"dds", util.HumanBytes(uint64(len(req.DDS))),
			"data", util.HumanBytes(uint64(len(req.Data))),
			"values", util.HumanBytes(uint64(len(req.Values))),
		)
		entry, err := mgr.Import(ctx, name, dsmgr.ImportRequest{
			DDS:    []byte(req.DDS),
			DAS:    []byte(req.DAS),
			Data:   req.Data,
			Values: req.Values,
		})
		if err != nil {
			importError(w, r.WithContext(ctx), err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusCreated, entry)
	}
}

func newNetCDFHandler(mgr *dsmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := mux.Vars(r)["name"]
		ctx = log.AddTags(ctx, "dataset", name)
		defer r.Body.Close()
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportSize))
		if err != nil {
			httputil.BadRequest(ctx, w, "error reading request: %s", err)
			return
		}
		if len(data) == 0 {
			httputil.BadRequest(ctx, w, "invalid request: empty body")
			return
		}
		log.Infow(ctx, "netCDF import request", "size", util.HumanBytes(uint64(len(data))))
		entry, err := mgr.ImportNetCDF(ctx, name, data)
		if err != nil {
			importError(w, r.WithContext(ctx), err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusCreated, entry)
	}
}
