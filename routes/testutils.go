package routes

import (
	"net/http/httptest"
	"testing"

	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/dsmgr"
	"github.com/wkalt/dapd/storage"
)

// MakeTestRoutes starts a test server over an in-memory manager. It returns
// the server URL, the manager, and a function to stop the server.
func MakeTestRoutes(t *testing.T) (string, *dsmgr.Manager, func()) {
	t.Helper()
	mgr := dsmgr.NewManager(catalog.NewMemCatalog(), storage.NewMemStore())
	handler := MakeRoutes(mgr, []string{"*"})
	srv := httptest.NewServer(handler)
	return srv.URL, mgr, srv.Close
}
