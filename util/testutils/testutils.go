package testutils

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
)

/*
General purpose test utilities. The byte helpers produce the big-endian
encodings used on the wire, for spelling out expected payloads in tests.
*/

////////////////////////////////////////////////////////////////////////////////

// GetOpenPort returns an open port that can be used for testing.
func GetOpenPort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("failed to get open port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Flatten concatenates slices of the same type.
func Flatten[T any](slices ...[]T) []T {
	var result []T
	for _, s := range slices {
		result = append(result, s...)
	}
	return result
}

// U16b returns the big-endian encoding of v.
func U16b(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

// U32b returns the big-endian encoding of v.
func U32b(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

// I32b returns the big-endian encoding of v.
func I32b(v int32) []byte {
	return U32b(uint32(v))
}

func F32b(v float32) []byte {
	return U32b(math.Float32bits(v))
}

func F64b(v float64) []byte {
	return binary.BigEndian.AppendUint64(nil, math.Float64bits(v))
}

// PrefixedString returns s preceded by its 4-byte length.
func PrefixedString(s string) []byte {
	return append(U32b(uint32(len(s))), s...)
}
