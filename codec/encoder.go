package codec

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wkalt/dapd/dap"
)

/*
Package codec implements the binary data stream that follows a DDS. Values
are written in declaration order with no padding and no self-description:

  - integers are fixed-width big-endian two's complement,
  - floats are big-endian IEEE-754,
  - strings and URLs are a four-byte big-endian length followed by the bytes,
  - arrays are their elements in row-major order with no count,
  - grids are their array followed by their maps,
  - sequences write MarkerStart before each row and MarkerEnd after the last.

Decoding is shape-directed: the caller supplies the variable tree the stream
was encoded from, and the decoder fills it.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	// MarkerStart precedes each sequence row.
	MarkerStart uint32 = 0x5A000000
	// MarkerEnd follows the last sequence row.
	MarkerEnd uint32 = 0xA5000000
)

// checkInterval is the number of array elements encoded between context
// checks.
const checkInterval = 1024

// Encoder writes variables to a sink.
type Encoder struct {
	w   *bufio.Writer
	buf [8]byte
}

// NewEncoder returns an encoder writing to w. Output is buffered; call Flush
// when done.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

type encodeFunc func(ctx context.Context, e *Encoder, v *dap.Variable) error

// nolint:gochecknoglobals
var encoders [dap.NumKinds]encodeFunc

func init() {
	encoders = [dap.NumKinds]encodeFunc{
		dap.KindScalar:    encodeScalar,
		dap.KindArray:     encodeArray,
		dap.KindStructure: encodeMembers,
		dap.KindSequence:  encodeSequence,
		dap.KindGrid:      encodeMembers,
	}
}

// Encode writes the values of v. It stops at the first sink failure or when
// ctx is canceled, returning a SinkClosedError.
func (e *Encoder) Encode(ctx context.Context, v *dap.Variable) error {
	return e.encode(ctx, v)
}

// Flush writes any buffered data to the sink.
func (e *Encoder) Flush() error {
	if err := e.w.Flush(); err != nil {
		return &SinkClosedError{Err: err}
	}
	return nil
}

func (e *Encoder) encode(ctx context.Context, v *dap.Variable) error {
	if err := ctx.Err(); err != nil {
		return &SinkClosedError{Err: err}
	}
	return encoders[v.Kind()](ctx, e, v)
}

func (e *Encoder) write(p []byte) error {
	if _, err := e.w.Write(p); err != nil {
		return &SinkClosedError{Err: err}
	}
	return nil
}

func (e *Encoder) writeUint32(x uint32) error {
	binary.BigEndian.PutUint32(e.buf[:4], x)
	return e.write(e.buf[:4])
}

func (e *Encoder) writeValue(tag dap.TypeTag, value any) error {
	switch x := value.(type) {
	case uint8:
		e.buf[0] = x
		return e.write(e.buf[:1])
	case int16:
		binary.BigEndian.PutUint16(e.buf[:2], uint16(x))
		return e.write(e.buf[:2])
	case uint16:
		binary.BigEndian.PutUint16(e.buf[:2], x)
		return e.write(e.buf[:2])
	case int32:
		return e.writeUint32(uint32(x))
	case uint32:
		return e.writeUint32(x)
	case float32:
		return e.writeUint32(math.Float32bits(x))
	case float64:
		binary.BigEndian.PutUint64(e.buf[:8], math.Float64bits(x))
		return e.write(e.buf[:8])
	case string:
		if uint64(len(x)) > math.MaxUint32 {
			return fmt.Errorf("string of length %d exceeds maximum", len(x))
		}
		if err := e.writeUint32(uint32(len(x))); err != nil {
			return err
		}
		if _, err := e.w.WriteString(x); err != nil {
			return &SinkClosedError{Err: err}
		}
		return nil
	default:
		return dap.TypeMismatchError{Tag: tag, Value: value}
	}
}

func encodeScalar(_ context.Context, e *Encoder, v *dap.Variable) error {
	value, ok := v.Value()
	if !ok {
		return &EncodingError{Path: v.Path(), Err: errors.New("value is unset")}
	}
	return e.wrap(v, e.writeValue(v.Tag(), value))
}

// wrap attaches the variable path to non-sink errors.
func (e *Encoder) wrap(v *dap.Variable, err error) error {
	if err == nil {
		return nil
	}
	var sinkErr *SinkClosedError
	var encErr *EncodingError
	if errors.As(err, &sinkErr) || errors.As(err, &encErr) {
		return err
	}
	return &EncodingError{Path: v.Path(), Err: err}
}

func encodeArray(ctx context.Context, e *Encoder, v *dap.Variable) error {
	data := v.Data()
	if len(data) != v.Len() {
		return dap.ArrayLengthError{Name: v.Path(), Want: v.Len(), Got: len(data)}
	}
	template := v.Template()
	if template.Tag().IsScalar() {
		for i, x := range data {
			if i%checkInterval == 0 {
				if err := ctx.Err(); err != nil {
					return &SinkClosedError{Err: err}
				}
			}
			if err := e.writeValue(template.Tag(), x); err != nil {
				return e.wrap(v, err)
			}
		}
		return nil
	}
	for _, x := range data {
		elem, ok := x.(*dap.Variable)
		if !ok {
			return &EncodingError{Path: v.Path(), Err: dap.TypeMismatchError{Tag: template.Tag(), Value: x}}
		}
		if err := e.encode(ctx, elem); err != nil {
			return err
		}
	}
	return nil
}

func encodeMembers(ctx context.Context, e *Encoder, v *dap.Variable) error {
	for child := range v.Children() {
		if err := e.encode(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func encodeSequence(ctx context.Context, e *Encoder, v *dap.Variable) error {
	rows := v.Rows()
	for {
		if err := ctx.Err(); err != nil {
			return &SinkClosedError{Err: err}
		}
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			return e.writeUint32(MarkerEnd)
		}
		if err != nil {
			return &EncodingError{Path: v.Path(), Err: fmt.Errorf("failed to read row: %w", err)}
		}
		if err := e.writeUint32(MarkerStart); err != nil {
			return err
		}
		for _, member := range row {
			if err := e.encode(ctx, member); err != nil {
				return err
			}
		}
	}
}

// EncodeAll writes vars to w in order and flushes.
func EncodeAll(ctx context.Context, w io.Writer, vars []*dap.Variable) error {
	enc := NewEncoder(w)
	for _, v := range vars {
		if err := enc.Encode(ctx, v); err != nil {
			return err
		}
	}
	return enc.Flush()
}
