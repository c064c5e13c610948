package das_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/dapd/dap"
	"github.com/wkalt/dapd/das"
)

const sample = `
Attributes {
    NC_GLOBAL {
        String title "Sea \"surface\" temperature";
        String history "created", "updated";
        Url source "http://example.com/data";
    }
    sst {
        String units "degC";
        Float32 _FillValue -9999.0;
        Float64 valid_range -5, 45.5;
        Float64 missing NaN, -Inf;
        Int16 scale 10;
    }
    site {
        Byte flag 1;
        inner {
            String units degrees_north;
        }
    }
}
`

func TestParse(t *testing.T) {
	table, err := das.ParseString(sample)
	require.NoError(t, err)
	require.Len(t, table.Containers(), 3)

	cases := []struct {
		assertion string
		path      string
		tag       dap.TypeTag
		values    []any
	}{
		{"escaped string", "NC_GLOBAL.title", dap.String, []any{`Sea "surface" temperature`}},
		{"multiple strings", "NC_GLOBAL.history", dap.String, []any{"created", "updated"}},
		{"url", "NC_GLOBAL.source", dap.URL, []any{"http://example.com/data"}},
		{"float32", "sst._FillValue", dap.Float32, []any{float32(-9999)}},
		{"float64 list", "sst.valid_range", dap.Float64, []any{float64(-5), 45.5}},
		{"int16", "sst.scale", dap.Int16, []any{int16(10)}},
		{"byte", "site.flag", dap.Byte, []any{uint8(1)}},
		{"nested bare word", "site.inner.units", dap.String, []any{"degrees_north"}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			attr, err := table.Lookup(c.path)
			require.NoError(t, err)
			assert.Equal(t, c.tag, attr.Type)
			assert.Equal(t, c.values, attr.Values)
		})
	}

	t.Run("special floats", func(t *testing.T) {
		attr, err := table.Lookup("sst.missing")
		require.NoError(t, err)
		require.True(t, math.IsNaN(attr.Values[0].(float64)))
		require.True(t, math.IsInf(attr.Values[1].(float64), -1))
	})
}

func TestLookupMissing(t *testing.T) {
	table, err := das.ParseString(sample)
	require.NoError(t, err)
	cases := []struct {
		assertion string
		path      string
	}{
		{"nonexistent path", "nonexistent.path"},
		{"missing attribute", "sst.long_name"},
		{"missing nested container", "site.outer.units"},
		{"container is not an attribute", "site.inner"},
		{"empty", ""},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			_, err := table.Lookup(c.path)
			require.ErrorIs(t, err, das.NotFoundError{})
		})
	}
}

func TestContainerPath(t *testing.T) {
	table, err := das.ParseString(sample)
	require.NoError(t, err)
	inner, err := table.Container("site.inner")
	require.NoError(t, err)
	require.Equal(t, "inner", inner.Name())
	_, err = table.Container("site.nope")
	require.ErrorIs(t, err, das.NotFoundError{})
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		assertion string
		input     string
	}{
		{"sample", sample},
		{"empty", "Attributes { }"},
		{"empty container", "Attributes { x { } }"},
		{"backslashes", `Attributes { x { String path "C:\\data\\file"; } }`},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			first, err := das.ParseString(c.input)
			require.NoError(t, err)
			text := first.String()
			second, err := das.ParseString(text)
			require.NoError(t, err, text)
			require.True(t, das.Equal(first, second), text)
			require.Equal(t, text, second.String())
		})
	}
}

func TestBuiltTablesRoundTrip(t *testing.T) {
	type attr struct {
		name   string
		tag    dap.TypeTag
		values []any
	}
	cases := []struct {
		assertion  string
		container  string
		attributes []attr
	}{
		{"float specials", "sst", []attr{
			{"missing", dap.Float64, []any{math.NaN(), math.Inf(1), math.Inf(-1)}},
			{"fill", dap.Float32, []any{float32(math.NaN()), float32(-9999)}},
		}},
		{"special names", "nan", []attr{
			{"nan", dap.Float64, []any{1.5}},
			{"NaN", dap.Int32, []any{1}},
			{"inf", dap.String, []any{"x"}},
			{"Inf-x", dap.Byte, []any{2}},
		}},
		{"leading digits", "2m_temp", []attr{
			{"3d", dap.Int16, []any{-3}},
		}},
		{"punctuation in names", "temp(K)", []attr{
			{"units/scale", dap.String, []any{"K"}},
			{"100%", dap.UInt32, []any{100}},
			{"-sign+", dap.UInt16, []any{7}},
		}},
		{"strings with quotes", "NC_GLOBAL", []attr{
			{"title", dap.String, []any{`say "hi" \ bye`, ""}},
			{"source", dap.URL, []any{"http://example.com/a b"}},
		}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			table := das.NewTable()
			container, err := table.AddContainer(c.container)
			require.NoError(t, err)
			nested, err := container.AddContainer("inner")
			require.NoError(t, err)
			for _, a := range c.attributes {
				_, err := container.AddAttribute(a.name, a.tag, a.values...)
				require.NoError(t, err)
				_, err = nested.AddAttribute(a.name, a.tag, a.values...)
				require.NoError(t, err)
			}
			text := table.String()
			parsed, err := das.ParseString(text)
			require.NoError(t, err, text)
			require.True(t, das.Equal(table, parsed), text)
			require.Equal(t, text, parsed.String())
		})
	}
}

func TestEscapedNames(t *testing.T) {
	table, err := das.ParseString("Attributes { %32m_temp { String units%28K%29 \"K\"; Float64 nan NaN, +Inf; } }")
	require.NoError(t, err)
	units, err := table.Lookup("2m_temp.units(K)")
	require.NoError(t, err)
	require.Equal(t, "K", units.String())
	nan, err := table.Lookup("2m_temp.nan")
	require.NoError(t, err)
	require.True(t, math.IsNaN(nan.Values[0].(float64)))
	require.Equal(t, math.Inf(1), nan.Values[1])
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		assertion string
		input     string
		line      int
		column    int
	}{
		{"byte out of range", "Attributes {\n  x {\n    Byte b 300;\n  }\n}", 3, 12},
		{"string for float", "Attributes {\n  x {\n    Float64 f \"abc\";\n  }\n}", 3, 15},
		{"unknown type", "Attributes {\n  x {\n    Int64 f 1;\n  }\n}", 3, 5},
		{"duplicate attribute", "Attributes {\n  x {\n    Byte a 1;\n    Byte a 2;\n  }\n}", 4, 5},
		{"missing semicolon", "Attributes { x { Byte a 1 } }", 1, 0},
		{"missing keyword", "Attribs { }", 1, 0},
		{"no values", "Attributes {\n  x {\n    Int32 empty ;\n  }\n}", 3, 0},
		{"escape of a reserved character", "Attributes {\n  x%2Ey {\n  }\n}", 2, 3},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			_, err := das.ParseString(c.input)
			require.ErrorIs(t, err, &das.ParseError{})
			perr, ok := err.(*das.ParseError)
			require.True(t, ok)
			assert.Equal(t, c.line, perr.Line, perr.Error())
			if c.column > 0 {
				assert.Equal(t, c.column, perr.Column, perr.Error())
			}
		})
	}
}

func TestBuilders(t *testing.T) {
	table := das.NewTable()
	c, err := table.AddContainer("temp")
	require.NoError(t, err)
	_, err = c.AddAttribute("units", dap.String, "K")
	require.NoError(t, err)
	_, err = c.AddAttribute("units", dap.String, "C")
	require.ErrorIs(t, err, dap.DuplicateNameError{})
	_, err = c.AddAttribute("scale", dap.Byte, 300)
	require.ErrorIs(t, err, dap.TypeMismatchError{})
	attr, err := c.AddAttribute("offset", dap.Int32, 273)
	require.NoError(t, err)
	f, ok := attr.Float64()
	require.True(t, ok)
	require.InDelta(t, 273.0, f, 0)
	require.Equal(t, "273", attr.String())

	_, err = table.AddContainer("temp")
	require.ErrorIs(t, err, dap.DuplicateNameError{})

	t.Run("attributes need values", func(t *testing.T) {
		_, err := c.AddAttribute("flags", dap.Int32)
		require.ErrorIs(t, err, das.ErrNoValues)
		_, err = c.Attribute("flags")
		require.ErrorIs(t, err, das.NotFoundError{})
	})
	t.Run("names are required", func(t *testing.T) {
		_, err := c.AddAttribute("", dap.Int32, 1)
		require.ErrorIs(t, err, dap.InvalidNameError{})
		_, err = table.AddContainer("")
		require.ErrorIs(t, err, dap.InvalidNameError{})
	})

	clone := table.Clone()
	require.True(t, das.Equal(table, clone))
}
