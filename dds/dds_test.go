package dds_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/dapd/dap"
	"github.com/wkalt/dapd/dds"
)

const sample = `
# sample dataset
Dataset {
    Byte b;
    Int32 counts[time = 4][3];
    Structure {
        Float64 lat;
        Float64 lon;
        Structure {
            String name;
        } inner;
    } site;
    Sequence {
        Int32 id;
        Float32 depth;
    } casts;
    Grid {
      Array:
        Float32 sst[lat = 2][lon = 3];
      Maps:
        Float64 lat[lat = 2];
        Float64 lon[lon = 3];
    } sst;
    Url link;
    Structure {
        Int16 x;
    } points[5];
} sample.nc;
`

func TestParseScenario(t *testing.T) {
	d, err := dds.ParseString("Dataset { Byte b; } test;")
	require.NoError(t, err)
	require.Equal(t, "test", d.Name)
	require.Len(t, d.Variables, 1)
	b := d.Variables[0]
	assert.Equal(t, "b", b.Name())
	assert.Equal(t, dap.Byte, b.Tag())
	_, ok := b.Value()
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	d, err := dds.ParseString(sample)
	require.NoError(t, err)
	require.Equal(t, "sample.nc", d.Name)
	require.Len(t, d.Variables, 7)

	t.Run("array dims", func(t *testing.T) {
		counts, err := d.Variable("counts")
		require.NoError(t, err)
		require.Equal(t, dap.Array, counts.Tag())
		require.Equal(t, dap.Int32, counts.Template().Tag())
		require.Equal(t, []dap.Dim{{Size: 4, Name: "time"}, {Size: 3}}, counts.Dims())
		require.Equal(t, 12, counts.Len())
	})
	t.Run("nested structure", func(t *testing.T) {
		site, err := d.Variable("site")
		require.NoError(t, err)
		inner, err := site.Child("inner")
		require.NoError(t, err)
		name, err := inner.Child("name")
		require.NoError(t, err)
		require.Equal(t, "site.inner.name", name.Path())
		require.Equal(t, dap.String, name.Tag())
	})
	t.Run("grid", func(t *testing.T) {
		sst, err := d.Variable("sst")
		require.NoError(t, err)
		require.Equal(t, dap.Grid, sst.Tag())
		require.Equal(t, "sst", sst.Array().Name())
		require.Len(t, sst.Maps(), 2)
		require.Equal(t, "lon", sst.Maps()[1].Name())
	})
	t.Run("array of structures", func(t *testing.T) {
		points, err := d.Variable("points")
		require.NoError(t, err)
		require.Equal(t, dap.Array, points.Tag())
		require.Equal(t, dap.Structure, points.Template().Tag())
		require.Equal(t, 5, points.Len())
	})
	t.Run("url", func(t *testing.T) {
		link, err := d.Variable("link")
		require.NoError(t, err)
		require.Equal(t, dap.URL, link.Tag())
	})
}

func TestCaseInsensitiveKeywords(t *testing.T) {
	d, err := dds.ParseString("DATASET { int32 a; structure { float64 x; } s; } t;")
	require.NoError(t, err)
	require.Equal(t, dap.Int32, d.Variables[0].Tag())
	require.Equal(t, dap.Structure, d.Variables[1].Tag())
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		assertion string
		input     string
	}{
		{"scalar", "Dataset { Byte b; } test;"},
		{"full sample", sample},
		{"empty dataset", "Dataset { } empty;"},
		{"empty structure", "Dataset { Structure { } s; } x;"},
		{"zero length array", "Dataset { Float64 a[0]; } x;"},
		{"sequence of structures", "Dataset { Sequence { Structure { Int32 a; } s; } q; } x;"},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			first, err := dds.ParseString(c.input)
			require.NoError(t, err)
			text := first.String()
			second, err := dds.ParseString(text)
			require.NoError(t, err, text)
			require.Equal(t, first.Name, second.Name)
			require.Len(t, second.Variables, len(first.Variables))
			for i := range first.Variables {
				require.True(t, dap.Equal(first.Variables[i], second.Variables[i]), text)
			}
			require.Equal(t, text, second.String())
		})
	}
}

func TestBuiltTreesRoundTrip(t *testing.T) {
	scalar := func(tag dap.TypeTag, name string) *dap.Variable {
		v, err := dap.NewScalar(tag, name)
		require.NoError(t, err)
		return v
	}
	array := func(tag dap.TypeTag, name string, dims ...dap.Dim) *dap.Variable {
		v, err := dap.NewArray(name, scalar(tag, ""), dims...)
		require.NoError(t, err)
		return v
	}
	structure := func(name string, members ...*dap.Variable) *dap.Variable {
		v, err := dap.NewStructure(name)
		require.NoError(t, err)
		for _, m := range members {
			require.NoError(t, v.AddChild(m))
		}
		return v
	}
	grid := func(name string) *dap.Variable {
		g, err := dap.NewGrid(name,
			array(dap.Float32, name, dap.Dim{Name: "lat", Size: 2}, dap.Dim{Name: "2nd", Size: 3}),
			array(dap.Float64, "lat", dap.Dim{Name: "lat", Size: 2}),
			array(dap.Float64, "2nd", dap.Dim{Name: "2nd", Size: 3}),
		)
		require.NoError(t, err)
		return g
	}
	cases := []struct {
		assertion string
		name      string
		variables func() []*dap.Variable
	}{
		{"grid with named dimensions", "gridded", func() []*dap.Variable {
			return []*dap.Variable{grid("sst")}
		}},
		{"leading digits", "2024obs", func() []*dap.Variable {
			return []*dap.Variable{scalar(dap.Float64, "2m_temp"), array(dap.Int16, "3d", dap.Dim{Name: "0", Size: 1})}
		}},
		{"punctuation in names", "obs(raw)", func() []*dap.Variable {
			return []*dap.Variable{
				scalar(dap.Float32, "temp(K)"),
				scalar(dap.String, "a/b@c"),
				scalar(dap.Int32, "100%"),
				scalar(dap.Byte, "-x+"),
				structure("wind/dir", scalar(dap.Float64, "u(m/s)")),
			}
		}},
		{"non-ascii names", "données", func() []*dap.Variable {
			return []*dap.Variable{scalar(dap.Float64, "température")}
		}},
		{"anonymous variables", "", func() []*dap.Variable {
			return []*dap.Variable{
				scalar(dap.Byte, ""),
				array(dap.Int32, "", dap.Dim{Size: 2}),
				structure("", scalar(dap.Int16, ""), scalar(dap.Int16, "")),
			}
		}},
		{"anonymous grid", "g", func() []*dap.Variable {
			return []*dap.Variable{grid("")}
		}},
		{"dotted dataset name", "sample.2.nc", func() []*dap.Variable {
			return []*dap.Variable{scalar(dap.URL, "link")}
		}},
		{"empty dataset name segment", "a..b.", func() []*dap.Variable {
			return []*dap.Variable{scalar(dap.URL, "link")}
		}},
		{"keywords as names", "Dataset", func() []*dap.Variable {
			return []*dap.Variable{
				scalar(dap.Int32, "Structure"),
				array(dap.Int32, "Maps", dap.Dim{Name: "Array", Size: 1}),
				structure("Grid", scalar(dap.Byte, "Dataset")),
			}
		}},
		{"array of structures", "points", func() []*dap.Variable {
			v, err := dap.NewArray("1st(points)", structure("", scalar(dap.Float64, "x(m)")), dap.Dim{Name: "n_pts", Size: 4})
			require.NoError(t, err)
			return []*dap.Variable{v}
		}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			built := &dds.DDS{Name: c.name, Variables: c.variables()}
			text := built.String()
			parsed, err := dds.ParseString(text)
			require.NoError(t, err, text)
			require.Equal(t, c.name, parsed.Name)
			require.Len(t, parsed.Variables, len(built.Variables))
			for i := range built.Variables {
				require.True(t, dap.Equal(built.Variables[i], parsed.Variables[i]), text)
			}
			require.Equal(t, text, parsed.String())
		})
	}
}

func TestEscapedNames(t *testing.T) {
	d, err := dds.ParseString("Dataset { Float64 %32m_temp; Int16 t%28K%29[%32d = 2]; Byte [3]; } %32024obs;")
	require.NoError(t, err)
	require.Equal(t, "2024obs", d.Name)
	require.Equal(t, "2m_temp", d.Variables[0].Name())
	require.Equal(t, "t(K)", d.Variables[1].Name())
	require.Equal(t, []dap.Dim{{Name: "2d", Size: 2}}, d.Variables[1].Dims())
	require.Equal(t, "", d.Variables[2].Name())
	require.Equal(t, 3, d.Variables[2].Len())
	require.Contains(t, d.String(), "    Float64 %32m_temp;\n")
	require.Contains(t, d.String(), "} %32024obs;\n")
}

func TestFormat(t *testing.T) {
	d, err := dds.ParseString("Dataset { Int32 a[x = 2]; Structure { Byte b; } s; } t;")
	require.NoError(t, err)
	expected := strings.Join([]string{
		"Dataset {",
		"    Int32 a[x = 2];",
		"    Structure {",
		"        Byte b;",
		"    } s;",
		"} t;",
		"",
	}, "\n")
	require.Equal(t, expected, d.String())
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		assertion string
		input     string
		line      int
		column    int
	}{
		{"missing semicolon", "Dataset { Byte b } test;", 1, 0},
		{"unknown type", "Dataset {\n  Int64 b;\n} test;", 2, 3},
		{"duplicate names", "Dataset {\n  Byte b;\n  Byte b;\n} test;", 3, 3},
		{"duplicate member", "Dataset { Structure { Byte a; Int32 a; } s; } t;", 1, 31},
		{"negative dimension", "Dataset { Byte b[-1]; } test;", 1, 17},
		{"element count overflow", "Dataset {\n  Byte a[4294967296][4294967296];\n} t;", 2, 21},
		{"escape of a reserved character", "Dataset { Byte a%2Eb; } test;", 1, 11},
		{"missing dataset keyword", "Data { Byte b; } test;", 1, 0},
		{"bad grid", "Dataset { Grid { Array: Byte a[2]; Maps: } g; } t;", 1, 11},
		{"trailing input", "Dataset { Byte b; } test; extra", 1, 0},
		{"unterminated", "Dataset {\n  Byte b;\n", 0, 0},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			_, err := dds.ParseString(c.input)
			require.ErrorIs(t, err, &dds.ParseError{})
			perr, ok := err.(*dds.ParseError)
			require.True(t, ok)
			if c.line > 0 {
				assert.Equal(t, c.line, perr.Line, perr.Error())
			}
			if c.column > 0 {
				assert.Equal(t, c.column, perr.Column, perr.Error())
			}
		})
	}
}
