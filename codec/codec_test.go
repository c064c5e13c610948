package codec_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/dapd/codec"
	"github.com/wkalt/dapd/dap"
	"github.com/wkalt/dapd/dds"
	"github.com/wkalt/dapd/util/testutils"
)

func parseOne(t *testing.T, text string) *dap.Variable {
	t.Helper()
	d, err := dds.ParseString(text)
	require.NoError(t, err)
	require.Len(t, d.Variables, 1)
	return d.Variables[0]
}

func encode(t *testing.T, v *dap.Variable) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, codec.EncodeAll(context.Background(), buf, []*dap.Variable{v}))
	return buf.Bytes()
}

func TestByteScenario(t *testing.T) {
	b := parseOne(t, "Dataset { Byte b; } test;")
	require.NoError(t, b.SetValue(42))
	data := encode(t, b)
	require.Equal(t, []byte{0x2A}, data)

	template := b.Clone()
	require.NoError(t, template.Unset())
	require.NoError(t, codec.NewDecoder(bytes.NewReader(data)).Decode(template))
	value, ok := template.Value()
	require.True(t, ok)
	require.Equal(t, uint8(42), value)
}

func TestScalarEncodings(t *testing.T) {
	cases := []struct {
		assertion string
		tag       dap.TypeTag
		value     any
		expected  []byte
	}{
		{"int16", dap.Int16, -2, []byte{0xff, 0xfe}},
		{"uint16", dap.UInt16, 0x1234, []byte{0x12, 0x34}},
		{"int32", dap.Int32, -1, []byte{0xff, 0xff, 0xff, 0xff}},
		{"uint32", dap.UInt32, 0x01020304, []byte{0x01, 0x02, 0x03, 0x04}},
		{"float32", dap.Float32, float32(1), []byte{0x3f, 0x80, 0x00, 0x00}},
		{"float64", dap.Float64, 1.0, []byte{0x3f, 0xf0, 0, 0, 0, 0, 0, 0}},
		{"string", dap.String, "hi", []byte{0, 0, 0, 2, 'h', 'i'}},
		{"empty url", dap.URL, "", []byte{0, 0, 0, 0}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			v, err := dap.NewScalar(c.tag, "x")
			require.NoError(t, err)
			require.NoError(t, v.SetValue(c.value))
			data := encode(t, v)
			require.Equal(t, c.expected, data)

			out := v.Clone()
			require.NoError(t, codec.NewDecoder(bytes.NewReader(data)).Decode(out))
			require.True(t, dap.EqualValues(v, out))
		})
	}
}

func TestArrayShapeFidelity(t *testing.T) {
	cases := []struct {
		assertion string
		text      string
		fill      func(i int) any
	}{
		{"1d bytes", "Dataset { Byte a[7]; } x;", func(i int) any { return i }},
		{"2d int16", "Dataset { Int16 a[x = 3][4]; } x;", func(i int) any { return -i }},
		{"3d float64", "Dataset { Float64 a[2][3][4]; } x;", func(i int) any { return float64(i) / 3 }},
		{"strings", "Dataset { String a[2][2]; } x;", func(i int) any { return string(rune('a' + i)) }},
		{"empty", "Dataset { Int32 a[0]; } x;", func(i int) any { return i }},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			arr := parseOne(t, c.text)
			data := make([]any, arr.Len())
			for i := range data {
				data[i] = c.fill(i)
			}
			require.NoError(t, arr.SetData(data))
			encoded := encode(t, arr)
			if w := arr.Template().Tag().Width(); w > 0 {
				require.Len(t, encoded, w*arr.Len())
			}

			out := parseOne(t, c.text)
			require.NoError(t, codec.NewDecoder(bytes.NewReader(encoded)).Decode(out))
			require.Len(t, out.Data(), arr.Len())
			require.True(t, dap.EqualValues(arr, out))
		})
	}
}

func TestArrayLengthMismatch(t *testing.T) {
	arr := parseOne(t, "Dataset { Byte a[3]; } x;")
	err := codec.EncodeAll(context.Background(), io.Discard, []*dap.Variable{arr})
	require.ErrorIs(t, err, dap.ArrayLengthError{})
}

func TestUnsetScalar(t *testing.T) {
	b := parseOne(t, "Dataset { Byte b; } x;")
	err := codec.EncodeAll(context.Background(), io.Discard, []*dap.Variable{b})
	require.ErrorIs(t, err, &codec.EncodingError{})
}

func buildSequence(t *testing.T, n int) *dap.Variable {
	t.Helper()
	seq := parseOne(t, "Dataset { Sequence { Structure { Int32 id; String name; } rec; } q; } x;")
	for i := range n {
		row := seq.NewRow()
		id, err := row[0].Child("id")
		require.NoError(t, err)
		require.NoError(t, id.SetValue(i))
		name, err := row[0].Child("name")
		require.NoError(t, err)
		require.NoError(t, name.SetValue("r"))
		require.NoError(t, seq.AppendRow(row...))
	}
	return seq
}

func countMarkers(data []byte, marker uint32) int {
	var m [4]byte
	binary.BigEndian.PutUint32(m[:], marker)
	return bytes.Count(data, m[:])
}

func TestSequenceStreaming(t *testing.T) {
	seq := buildSequence(t, 3)
	data := encode(t, seq)

	// Each row is a marker, a 4-byte id, and a 5-byte string.
	require.Len(t, data, 3*(4+4+5)+4)
	assert.Equal(t, 3, countMarkers(data, codec.MarkerStart))
	assert.Equal(t, codec.MarkerEnd, binary.BigEndian.Uint32(data[len(data)-4:]))

	out := parseOne(t, "Dataset { Sequence { Structure { Int32 id; String name; } rec; } q; } x;")
	require.NoError(t, codec.NewDecoder(bytes.NewReader(data)).Decode(out))
	require.Equal(t, 3, out.NumRows())
	require.True(t, dap.EqualValues(seq, out))
}

func TestSequenceLayout(t *testing.T) {
	data := encode(t, buildSequence(t, 2))
	expected := testutils.Flatten(
		testutils.U32b(codec.MarkerStart), testutils.I32b(0), testutils.PrefixedString("r"),
		testutils.U32b(codec.MarkerStart), testutils.I32b(1), testutils.PrefixedString("r"),
		testutils.U32b(codec.MarkerEnd),
	)
	require.Equal(t, expected, data)
}

func TestSequenceRowSource(t *testing.T) {
	seq := parseOne(t, "Dataset { Sequence { Int16 v; } q; } x;")
	remaining := 5
	require.NoError(t, seq.SetRowSource(dap.RowFunc(func() ([]*dap.Variable, error) {
		if remaining == 0 {
			return nil, io.EOF
		}
		remaining--
		row := seq.NewRow()
		if err := row[0].SetValue(remaining); err != nil {
			return nil, err
		}
		return row, nil
	})))
	data := encode(t, seq)
	require.Equal(t, 5, countMarkers(data, codec.MarkerStart))

	out := parseOne(t, "Dataset { Sequence { Int16 v; } q; } x;")
	require.NoError(t, codec.NewDecoder(bytes.NewReader(data)).Decode(out))
	require.Equal(t, 5, out.NumRows())
}

func TestEmptySequence(t *testing.T) {
	seq := parseOne(t, "Dataset { Sequence { Int16 v; } q; } x;")
	data := encode(t, seq)
	require.Equal(t, []byte{0xA5, 0, 0, 0}, data)
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		assertion string
		text      string
		data      []byte
		target    error
	}{
		{"truncated int32", "Dataset { Int32 i; } x;", []byte{0, 0, 1}, io.ErrUnexpectedEOF},
		{"empty input", "Dataset { Float64 f; } x;", nil, io.ErrUnexpectedEOF},
		{"truncated string", "Dataset { String s; } x;", []byte{0, 0, 0, 5, 'a'}, io.ErrUnexpectedEOF},
		{"truncated array", "Dataset { Int16 a[3]; } x;", []byte{0, 1, 0, 2}, io.ErrUnexpectedEOF},
		{"missing end marker", "Dataset { Sequence { Byte b; } q; } x;", []byte{0x5A, 0, 0, 0, 1}, io.ErrUnexpectedEOF},
		{"unknown marker", "Dataset { Sequence { Byte b; } q; } x;", []byte{0x12, 0x34, 0x56, 0x78}, &codec.EncodingError{}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			v := parseOne(t, c.text)
			err := codec.NewDecoder(bytes.NewReader(c.data)).Decode(v)
			require.ErrorIs(t, err, &codec.EncodingError{})
			require.ErrorIs(t, err, c.target)
		})
	}
}

func TestDecodeFrozen(t *testing.T) {
	b := parseOne(t, "Dataset { Byte b; } x;")
	b.Freeze()
	err := codec.NewDecoder(bytes.NewReader([]byte{1})).Decode(b)
	require.ErrorIs(t, err, dap.ErrFrozen)
}

type failingWriter struct {
	n int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("connection reset")
}

func TestSinkClosed(t *testing.T) {
	arr := parseOne(t, "Dataset { Float64 a[100000]; } x;")
	data := make([]any, arr.Len())
	for i := range data {
		data[i] = float64(i)
	}
	require.NoError(t, arr.SetData(data))

	t.Run("write failure stops encoding", func(t *testing.T) {
		w := &failingWriter{}
		err := codec.EncodeAll(context.Background(), w, []*dap.Variable{arr})
		require.ErrorIs(t, err, codec.ErrSinkClosed)
		require.Equal(t, 1, w.n)
	})
	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		buf := &bytes.Buffer{}
		err := codec.EncodeAll(ctx, buf, []*dap.Variable{arr})
		require.ErrorIs(t, err, codec.ErrSinkClosed)
		require.ErrorIs(t, err, context.Canceled)
		require.Zero(t, buf.Len())
	})
}

func TestGridAndStructure(t *testing.T) {
	text := `Dataset {
		Structure {
			Byte a;
			Grid {
				Array: Int16 g[x = 2];
				Maps: Float32 x[x = 2];
			} grid;
		} s;
	} t;`
	s := parseOne(t, text)
	a, err := s.Child("a")
	require.NoError(t, err)
	require.NoError(t, a.SetValue(9))
	grid, err := s.Child("grid")
	require.NoError(t, err)
	require.NoError(t, grid.Array().SetData([]any{1, 2}))
	require.NoError(t, grid.Maps()[0].SetData([]any{0.5, math.Inf(1)}))

	data := encode(t, s)
	require.Equal(t, []byte{9, 0, 1, 0, 2, 0x3f, 0, 0, 0, 0x7f, 0x80, 0, 0}, data)

	out := parseOne(t, text)
	require.NoError(t, codec.DecodeAll(bytes.NewReader(data), []*dap.Variable{out}))
	require.True(t, dap.EqualValues(s, out))
}
