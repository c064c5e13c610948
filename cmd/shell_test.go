package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/dapd/catalog"
	"github.com/wkalt/dapd/client"
	"github.com/wkalt/dapd/routes"
)

const testDDS = `Dataset {
    Int32 n;
    Float64 x[3];
} sample;
`

func TestSplitProjection(t *testing.T) {
	cases := []struct {
		assertion string
		args      []string
		expected  []string
	}{
		{"empty", nil, nil},
		{"separate arguments", []string{"a", "b.c"}, []string{"a", "b.c"}},
		{"comma separated", []string{"a,b.c"}, []string{"a", "b.c"}},
		{"mixed with blanks", []string{"a, b", ",", "c"}, []string{"a", "b", "c"}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			require.Equal(t, c.expected, splitProjection(c.args))
		})
	}
}

func TestRenderEntries(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		buf := &bytes.Buffer{}
		renderEntries(buf, nil)
		require.Equal(t, "(0 datasets)\n", buf.String())
	})
	t.Run("table", func(t *testing.T) {
		buf := &bytes.Buffer{}
		renderEntries(buf, []catalog.Entry{
			{Name: "sample", Version: 3, Format: catalog.FormatJSON, Size: 2048},
		})
		out := buf.String()
		require.Contains(t, out, "NAME")
		require.Contains(t, out, "sample")
		require.Contains(t, out, "json")
		require.Contains(t, out, "2 KB")
	})
}

func TestShell(t *testing.T) {
	ctx := context.Background()
	url, _, done := routes.MakeTestRoutes(t)
	defer done()
	c := client.New(url)
	_, err := c.Import(ctx, "sample", routes.ImportRequest{
		DDS:    testDDS,
		Values: []byte(`{"n": 3, "x": [1, 2, 3]}`),
	})
	require.NoError(t, err)
	s := &shell{c: c}

	cases := []struct {
		assertion string
		line      string
		contains  []string
		errSubstr string
	}{
		{"blank line", "", nil, ""},
		{"help", "\\h", []string{"\\dds name"}, ""},
		{"help topic", "\\h names", []string{"name/version"}, ""},
		{"unknown help topic", "\\h nothing", nil, "no help"},
		{"list", "\\l", []string{"sample"}, ""},
		{"dds", "\\dds sample x", []string{"Float64 x[3];"}, ""},
		{"get", "\\get sample", []string{"n, 3", "x, 1, 2, 3"}, ""},
		{"bare get", "sample/1 n", []string{"n, 3"}, ""},
		{"json", "\\json sample n", []string{`"n"`}, ""},
		{"das with variables", "\\das sample n", nil, "does not accept"},
		{"missing argument", "\\get", nil, "not enough arguments"},
		{"unknown dataset", "\\get missing", nil, "dataset missing not found"},
		{"unknown command", "\\x", nil, "unrecognized command"},
		{"quit", "\\q", nil, "quit"},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			buf := &bytes.Buffer{}
			err := s.execute(ctx, buf, c.line)
			if c.errSubstr != "" {
				require.ErrorContains(t, err, c.errSubstr)
				return
			}
			require.NoError(t, err)
			for _, s := range c.contains {
				require.Contains(t, buf.String(), s)
			}
		})
	}
}
