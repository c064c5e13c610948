package util_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/dapd/util"
)

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestCountingWriter(t *testing.T) {
	cases := []struct {
		assertion string
		inputs    [][]byte
		expected  int
	}{
		{
			"empty input",
			[][]byte{{}},
			0,
		},
		{
			"single character",
			[][]byte{{'a'}},
			1,
		},
		{
			"multiple writes",
			[][]byte{[]byte("Data:\n"), {0, 0, 0, 42}},
			10,
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			buf := &bytes.Buffer{}
			w := util.NewCountingWriter(buf)
			for _, input := range c.inputs {
				_, err := w.Write(input)
				require.NoError(t, err)
			}
			require.Equal(t, c.expected, w.Count())
			require.Equal(t, c.expected, buf.Len())
		})
	}

	t.Run("write failure", func(t *testing.T) {
		w := util.NewCountingWriter(brokenWriter{})
		_, err := w.Write([]byte("x"))
		require.Error(t, err)
		require.Zero(t, w.Count())
	})
}
