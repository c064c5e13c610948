package client_test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/client"
	"github.com/wkalt/dapd/routes"
)

const ddsText = `Dataset {
    Int32 n;
    Float64 x[3];
    Structure {
        Float64 lat;
        Float64 lon;
    } site;
} sample;
`

const dasText = `Attributes {
    n {
        String long_name "count";
    }
    NC_GLOBAL {
        String title "sample data";
    }
}
`

const values = `{"n": 3, "x": [1, 2, 3], "site": {"lat": 1.5, "lon": 2.5}}`

func setup(t *testing.T) (*client.Client, func()) {
	t.Helper()
	url, _, done := routes.MakeTestRoutes(t)
	c := client.New(url + "/")
	_, err := c.Import(context.Background(), "sample", routes.ImportRequest{
		DDS:    ddsText,
		DAS:    dasText,
		Values: json.RawMessage(values),
	})
	require.NoError(t, err)
	return c, done
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	c, done := setup(t)
	defer done()

	cases := []struct {
		assertion      string
		name           string
		req            routes.ImportRequest
		expectedStatus int
		expectedError  string
	}{
		{
			"new version",
			"sample",
			routes.ImportRequest{DDS: ddsText},
			0,
			"",
		},
		{
			"invalid name",
			"bad.name",
			routes.ImportRequest{DDS: ddsText},
			http.StatusBadRequest,
			"invalid dataset name",
		},
		{
			"missing dds",
			"other",
			routes.ImportRequest{DAS: dasText},
			http.StatusBadRequest,
			"missing dds",
		},
		{
			"malformed dds",
			"other",
			routes.ImportRequest{DDS: "Dataset { Int32 }"},
			http.StatusBadRequest,
			"",
		},
	}
	for _, c2 := range cases {
		t.Run(c2.assertion, func(t *testing.T) {
			entry, err := c.Import(ctx, c2.name, c2.req)
			if c2.expectedStatus == 0 {
				require.NoError(t, err)
				require.Equal(t, c2.name, entry.Name)
				require.Equal(t, uint64(2), entry.Version)
				require.Equal(t, catalog.FormatDODS, entry.Format)
				return
			}
			var apiErr client.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, c2.expectedStatus, apiErr.StatusCode())
			require.Contains(t, apiErr.Error(), c2.expectedError)
		})
	}
}

func TestDataset(t *testing.T) {
	ctx := context.Background()
	c, done := setup(t)
	defer done()

	t.Run("whole dataset", func(t *testing.T) {
		ds, err := c.Dataset(ctx, "sample")
		require.NoError(t, err)
		require.Equal(t, "sample", ds.Name())
		require.Len(t, ds.Variables(), 3)
		attr, err := ds.Attributes().Lookup("n.long_name")
		require.NoError(t, err)
		require.Equal(t, []any{"count"}, attr.Values)
		n, err := ds.Variable("n")
		require.NoError(t, err)
		_, ok := n.Value()
		require.False(t, ok)
	})
	t.Run("projection", func(t *testing.T) {
		d, err := c.DDS(ctx, "sample", "site.lat")
		require.NoError(t, err)
		require.Len(t, d.Variables, 1)
		site, err := d.Variable("site")
		require.NoError(t, err)
		require.Equal(t, 1, site.NumChildren())
	})
	t.Run("global attributes", func(t *testing.T) {
		table, err := c.DAS(ctx, "sample")
		require.NoError(t, err)
		attr, err := table.Lookup("NC_GLOBAL.title")
		require.NoError(t, err)
		require.Equal(t, []any{"sample data"}, attr.Values)
	})
}

func TestData(t *testing.T) {
	ctx := context.Background()
	c, done := setup(t)
	defer done()

	ds, err := c.Data(ctx, "sample")
	require.NoError(t, err)
	n, err := ds.Variable("n")
	require.NoError(t, err)
	value, ok := n.Value()
	require.True(t, ok)
	require.Equal(t, int32(3), value)
	x, err := ds.Variable("x")
	require.NoError(t, err)
	require.Equal(t, []any{1.0, 2.0, 3.0}, x.Data())
	lat, err := ds.Variable("site.lat")
	require.NoError(t, err)
	value, ok = lat.Value()
	require.True(t, ok)
	require.InEpsilon(t, 1.5, value, 1e-9)

	t.Run("projected", func(t *testing.T) {
		ds, err := c.Data(ctx, "sample", "x")
		require.NoError(t, err)
		require.Len(t, ds.Variables(), 1)
		require.Equal(t, "x", ds.Variables()[0].Name())
	})
	t.Run("specific version", func(t *testing.T) {
		ds, err := c.Data(ctx, "sample/1", "n")
		require.NoError(t, err)
		require.Len(t, ds.Variables(), 1)
	})
	t.Run("unknown variable", func(t *testing.T) {
		_, err := c.Data(ctx, "sample", "missing")
		var apiErr client.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode())
	})
	t.Run("unknown dataset", func(t *testing.T) {
		_, err := c.Data(ctx, "missing")
		var apiErr client.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusNotFound, apiErr.StatusCode())
		require.Equal(t, "dataset missing not found", apiErr.Error())
	})
}

func TestParseData(t *testing.T) {
	_, err := client.ParseData([]byte("Dataset { Int32 n; } d;\n"), nil)
	require.ErrorContains(t, err, "missing data separator")
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	c, done := setup(t)
	defer done()

	buf := &bytes.Buffer{}
	require.NoError(t, c.Get(ctx, buf, "sample", "asc", "n", "x"))
	require.Contains(t, buf.String(), "n, 3\n")
	require.Contains(t, buf.String(), "x, 1, 2, 3\n")
}

func TestList(t *testing.T) {
	ctx := context.Background()
	c, done := setup(t)
	defer done()

	_, err := c.ImportNetCDF(ctx, "broken", strings.NewReader("not a netcdf file"))
	var apiErr client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode())

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sample", entries[0].Name)
	require.Equal(t, catalog.FormatJSON, entries[0].Format)
}
