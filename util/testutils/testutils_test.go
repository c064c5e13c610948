package testutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/dapd/util/testutils"
)

func TestGetOpenPort(t *testing.T) {
	_, err := testutils.GetOpenPort()
	require.NoError(t, err)
}

func TestFlatten(t *testing.T) {
	cases := []struct {
		assertion string
		in        [][]int
		expected  []int
	}{
		{"empty", nil, nil},
		{"single", [][]int{{1}}, []int{1}},
		{"multiple", [][]int{{1, 2}, {}, {3}}, []int{1, 2, 3}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			require.Equal(t, c.expected, testutils.Flatten(c.in...))
		})
	}
}

func TestByteHelpers(t *testing.T) {
	cases := []struct {
		assertion string
		actual    []byte
		expected  []byte
	}{
		{"u16", testutils.U16b(0x1234), []byte{0x12, 0x34}},
		{"u32", testutils.U32b(0x5A000000), []byte{0x5A, 0, 0, 0}},
		{"i32", testutils.I32b(-1), []byte{0xff, 0xff, 0xff, 0xff}},
		{"f32", testutils.F32b(1), []byte{0x3f, 0x80, 0, 0}},
		{"f64", testutils.F64b(1), []byte{0x3f, 0xf0, 0, 0, 0, 0, 0, 0}},
		{"string", testutils.PrefixedString("hi"), []byte{0, 0, 0, 2, 'h', 'i'}},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			require.Equal(t, c.expected, c.actual)
		})
	}
}
