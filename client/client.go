package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/das"
	"github.com/wkalt/dapd/dataset"
	"github.com/wkalt/dapd/dds"
	"github.com/wkalt/dapd/routes"
	"golang.org/x/sync/errgroup"
)

/*
Package client is an HTTP client for dapd. Dataset arguments are a dataset
name, optionally qualified with a version as name/version. Projections are
lists of dot-qualified variable paths; an empty projection requests the whole
dataset.
*/

////////////////////////////////////////////////////////////////////////////////

// Client talks to a dapd server.
type Client struct {
	serverURL string
	httpc     *http.Client
}

// New returns a client for the server at serverURL.
func New(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		httpc:     &http.Client{},
	}
}

func (c *Client) datasetURL(name, ext string, projection []string) string {
	u := fmt.Sprintf("%s/datasets/%s.%s", c.serverURL, name, ext)
	if len(projection) > 0 {
		escaped := make([]string, len(projection))
		for i, p := range projection {
			escaped[i] = url.QueryEscape(p)
		}
		u += "?" + strings.Join(escaped, ",")
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling %s %s: %w", method, u, err)
	}
	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// Get copies the named representation (dds, das, dods, asc or json) of a
// dataset to w.
func (c *Client) Get(ctx context.Context, w io.Writer, name, ext string, projection ...string) error {
	resp, err := c.do(ctx, http.MethodGet, c.datasetURL(name, ext, projection), "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return nil
}

// DDS fetches and parses a dataset's structure.
func (c *Client) DDS(ctx context.Context, name string, projection ...string) (*dds.DDS, error) {
	buf := &bytes.Buffer{}
	if err := c.Get(ctx, buf, name, "dds", projection...); err != nil {
		return nil, err
	}
	d, err := dds.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DDS response: %w", err)
	}
	return d, nil
}

// DAS fetches and parses a dataset's attributes.
func (c *Client) DAS(ctx context.Context, name string) (*das.Table, error) {
	buf := &bytes.Buffer{}
	if err := c.Get(ctx, buf, name, "das"); err != nil {
		return nil, err
	}
	table, err := das.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DAS response: %w", err)
	}
	return table, nil
}

// Dataset fetches a dataset's structure and attributes, without values.
func (c *Client) Dataset(ctx context.Context, name string, projection ...string) (*dataset.Dataset, error) {
	var d *dds.DDS
	var table *das.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d, err = c.DDS(gctx, name, projection...)
		return err
	})
	g.Go(func() (err error) {
		table, err = c.DAS(gctx, name)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dataset.New(d, table), nil
}

// Data fetches a dataset with its values.
func (c *Client) Data(ctx context.Context, name string, projection ...string) (*dataset.Dataset, error) {
	var body []byte
	var table *das.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buf := &bytes.Buffer{}
		if err := c.Get(gctx, buf, name, "dods", projection...); err != nil {
			return err
		}
		body = buf.Bytes()
		return nil
	})
	g.Go(func() (err error) {
		table, err = c.DAS(gctx, name)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ParseData(body, table)
}

// ParseData parses a data response: DDS text, the data separator, then
// binary values. table may be nil.
func ParseData(body []byte, table *das.Table) (*dataset.Dataset, error) {
	idx := bytes.Index(body, []byte(routes.DataSeparator))
	if idx < 0 {
		return nil, errors.New("malformed data response: missing data separator")
	}
	d, err := dds.Parse(bytes.NewReader(body[:idx]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse data response DDS: %w", err)
	}
	ds := dataset.New(d, table)
	if err := ds.Decode(bytes.NewReader(body[idx+len(routes.DataSeparator):])); err != nil {
		return nil, err
	}
	return ds, nil
}

// List returns the latest version of every dataset.
func (c *Client) List(ctx context.Context) ([]catalog.Entry, error) {
	resp, err := c.do(ctx, http.MethodGet, c.serverURL+"/datasets", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	entries := []catalog.Entry{}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return entries, nil
}

// Import creates a new version of a dataset.
func (c *Client) Import(ctx context.Context, name string, req routes.ImportRequest) (catalog.Entry, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("failed to encode request: %w", err)
	}
	u := fmt.Sprintf("%s/datasets/%s", c.serverURL, name)
	resp, err := c.do(ctx, http.MethodPost, u, "application/json", bytes.NewReader(body))
	if err != nil {
		return catalog.Entry{}, err
	}
	defer resp.Body.Close()
	return decodeEntry(resp.Body)
}

// ImportNetCDF creates a new version of a dataset from a netCDF file.
func (c *Client) ImportNetCDF(ctx context.Context, name string, r io.Reader) (catalog.Entry, error) {
	u := fmt.Sprintf("%s/datasets/%s/netcdf", c.serverURL, name)
	resp, err := c.do(ctx, http.MethodPut, u, "application/x-netcdf", r)
	if err != nil {
		return catalog.Entry{}, err
	}
	defer resp.Body.Close()
	return decodeEntry(resp.Body)
}

func decodeEntry(r io.Reader) (catalog.Entry, error) {
	entry := catalog.Entry{}
	if err := json.NewDecoder(r).Decode(&entry); err != nil {
		return entry, fmt.Errorf("failed to decode response: %w", err)
	}
	return entry, nil
}
