package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wkalt/dapd/dap"
)

// Decoder reads variables from a binary stream.
type Decoder struct {
	r   *bufio.Reader
	buf [8]byte
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

type decodeFunc func(d *Decoder, v *dap.Variable) error

// nolint:gochecknoglobals
var decoders [dap.NumKinds]decodeFunc

func init() {
	decoders = [dap.NumKinds]decodeFunc{
		dap.KindScalar:    decodeScalar,
		dap.KindArray:     decodeArray,
		dap.KindStructure: decodeMembers,
		dap.KindSequence:  decodeSequence,
		dap.KindGrid:      decodeMembers,
	}
}

// Decode fills v, which must have the shape the stream was encoded from.
// Sequence rows already present in v are replaced.
func (d *Decoder) Decode(v *dap.Variable) error {
	if v.Frozen() {
		return dap.ErrFrozen
	}
	return decoders[v.Kind()](d, v)
}

func (d *Decoder) read(v *dap.Variable, n int) ([]byte, error) {
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		return nil, truncated(v, err)
	}
	return d.buf[:n], nil
}

func truncated(v *dap.Variable, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &EncodingError{Path: v.Path(), Err: err}
}

func (d *Decoder) readUint32(v *dap.Variable) (uint32, error) {
	b, err := d.read(v, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *Decoder) readValue(v *dap.Variable, tag dap.TypeTag) (any, error) {
	switch tag {
	case dap.Byte:
		b, err := d.read(v, 1)
		if err != nil {
			return nil, err
		}
		return b[0], nil
	case dap.Int16, dap.UInt16:
		b, err := d.read(v, 2)
		if err != nil {
			return nil, err
		}
		x := binary.BigEndian.Uint16(b)
		if tag == dap.Int16 {
			return int16(x), nil
		}
		return x, nil
	case dap.Int32, dap.UInt32, dap.Float32:
		x, err := d.readUint32(v)
		if err != nil {
			return nil, err
		}
		switch tag {
		case dap.Int32:
			return int32(x), nil
		case dap.Float32:
			return math.Float32frombits(x), nil
		default:
			return x, nil
		}
	case dap.Float64:
		b, err := d.read(v, 8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case dap.String, dap.URL:
		n, err := d.readUint32(v)
		if err != nil {
			return nil, err
		}
		buf := &bytes.Buffer{}
		if _, err := io.CopyN(buf, d.r, int64(n)); err != nil {
			return nil, truncated(v, err)
		}
		return buf.String(), nil
	default:
		return nil, &EncodingError{Path: v.Path(), Err: fmt.Errorf("%s is not a scalar type", tag)}
	}
}

func decodeScalar(d *Decoder, v *dap.Variable) error {
	value, err := d.readValue(v, v.Tag())
	if err != nil {
		return err
	}
	return v.SetValue(value)
}

func decodeArray(d *Decoder, v *dap.Variable) error {
	template := v.Template()
	n := v.Len()
	data := make([]any, 0, min(n, 1<<16))
	for range n {
		if template.Tag().IsScalar() {
			value, err := d.readValue(v, template.Tag())
			if err != nil {
				return err
			}
			data = append(data, value)
			continue
		}
		elem := v.NewElement()
		if err := d.Decode(elem); err != nil {
			return err
		}
		data = append(data, elem)
	}
	return v.SetData(data)
}

func decodeMembers(d *Decoder, v *dap.Variable) error {
	for child := range v.Children() {
		if err := d.Decode(child); err != nil {
			return err
		}
	}
	return nil
}

func decodeSequence(d *Decoder, v *dap.Variable) error {
	if err := v.ClearRows(); err != nil {
		return err
	}
	for {
		marker, err := d.readUint32(v)
		if err != nil {
			return err
		}
		switch marker {
		case MarkerEnd:
			return nil
		case MarkerStart:
			row := v.NewRow()
			for _, member := range row {
				if err := d.Decode(member); err != nil {
					return err
				}
			}
			if err := v.AppendRow(row...); err != nil {
				return err
			}
		default:
			return &EncodingError{Path: v.Path(), Err: fmt.Errorf("unknown sequence marker 0x%08x", marker)}
		}
	}
}

// DecodeAll fills vars from r in order.
func DecodeAll(r io.Reader, vars []*dap.Variable) error {
	dec := NewDecoder(r)
	for _, v := range vars {
		if err := dec.Decode(v); err != nil {
			return err
		}
	}
	return nil
}
