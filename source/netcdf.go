package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ctessum/cdf"
	"github.com/wkalt/dapd/dap"
	"github.com/wkalt/dapd/das"
	"github.com/wkalt/dapd/dataset"
	"github.com/wkalt/dapd/dds"
	"github.com/wkalt/dapd/util"
)

// NetCDF is a dataset stored as a classic-format netCDF file. Name is the
// dataset name, since netCDF files carry none.
//
// Each netCDF variable becomes an array with the file's named dimensions, or
// a scalar if it has no dimensions. Character variables collapse their last
// dimension into strings. A one-dimensional variable named after its
// dimension is a coordinate variable; any other variable whose dimensions
// all have coordinate variables is exposed as a grid over them.
type NetCDF struct {
	Name string
	Data []byte
}

// Load reads the file header and every variable. Malformed files are
// reported as errors.
func (s NetCDF) Load(ctx context.Context) (ds *dataset.Dataset, err error) {
	defer func() {
		if r := recover(); r != nil {
			ds, err = nil, fmt.Errorf("malformed netCDF file: %v", r)
		}
	}()
	f, err := cdf.Open(util.NewBuffer(s.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to open netCDF file: %w", err)
	}
	names := f.Header.Variables()
	coordinates := map[string]bool{}
	for _, name := range names {
		dims := f.Header.Dimensions(name)
		if len(dims) == 1 && dims[0] == name {
			coordinates[name] = true
		}
	}
	loaded := make(map[string]*dap.Variable, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := readVariable(f, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		loaded[name] = v
	}
	out := &dds.DDS{Name: s.Name}
	for _, name := range names {
		v := loaded[name]
		if !coordinates[name] && isGridded(f, name, v, coordinates) {
			maps := make([]*dap.Variable, 0, len(v.Dims()))
			for _, dim := range v.Dims() {
				maps = append(maps, loaded[dim.Name].Clone())
			}
			array := v
			v, err = dap.NewGrid(name, array, maps...)
			if err != nil {
				return nil, err
			}
		}
		out.Variables = append(out.Variables, v)
	}
	table, err := readAttributes(f, names)
	if err != nil {
		return nil, err
	}
	return dataset.New(out, table), nil
}

func isGridded(f *cdf.File, name string, v *dap.Variable, coordinates map[string]bool) bool {
	if v.Kind() != dap.KindArray {
		return false
	}
	dims := f.Header.Dimensions(name)
	if len(dims) != len(v.Dims()) {
		// character variables lose a dimension
		return false
	}
	for _, dim := range dims {
		if !coordinates[dim] {
			return false
		}
	}
	return true
}

func readVariable(f *cdf.File, name string) (*dap.Variable, error) {
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	dims := f.Header.Dimensions(name)
	lengths := f.Header.Lengths(name)
	tag, data, err := convert(buf)
	if err != nil {
		return nil, err
	}
	if tag == dap.String && len(lengths) > 0 {
		data = collapseChars(data, lengths[len(lengths)-1])
		dims = dims[:len(dims)-1]
		lengths = lengths[:len(lengths)-1]
	}
	template, err := dap.NewScalar(tag, name)
	if err != nil {
		return nil, err
	}
	if len(dims) == 0 {
		if len(data) > 0 {
			if err := template.SetValue(data[0]); err != nil {
				return nil, err
			}
		}
		return template, nil
	}
	shape := make([]dap.Dim, len(dims))
	for i := range dims {
		shape[i] = dap.Dim{Name: dims[i], Size: lengths[i]}
	}
	array, err := dap.NewArray(name, template, shape...)
	if err != nil {
		return nil, err
	}
	if err := array.SetData(data); err != nil {
		return nil, err
	}
	return array, nil
}

// convert maps a netCDF value slice to a DAP type and its elements. Character
// data is returned one byte per element.
func convert(buf any) (dap.TypeTag, []any, error) {
	switch x := buf.(type) {
	case []int8:
		return dap.Int16, widen(x, func(v int8) any { return int16(v) }), nil
	case []byte:
		return dap.String, widen(x, func(v byte) any { return v }), nil
	case string:
		return dap.String, []any{x}, nil
	case []int16:
		return dap.Int16, widen(x, func(v int16) any { return v }), nil
	case []int32:
		return dap.Int32, widen(x, func(v int32) any { return v }), nil
	case []float32:
		return dap.Float32, widen(x, func(v float32) any { return v }), nil
	case []float64:
		return dap.Float64, widen(x, func(v float64) any { return v }), nil
	default:
		return 0, nil, fmt.Errorf("unsupported netCDF type %T", buf)
	}
}

func widen[T any](xs []T, f func(T) any) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = f(x)
	}
	return out
}

// collapseChars joins runs of width characters into strings, dropping NUL
// padding.
func collapseChars(data []any, width int) []any {
	if width == 0 {
		return nil
	}
	out := make([]any, 0, len(data)/width)
	for i := 0; i+width <= len(data); i += width {
		chars := make([]byte, width)
		for j := range width {
			if b, ok := data[i+j].(byte); ok {
				chars[j] = b
			}
		}
		out = append(out, string(bytes.TrimRight(chars, "\x00")))
	}
	return out
}

func readAttributes(f *cdf.File, names []string) (*das.Table, error) {
	table := das.NewTable()
	add := func(container, variable string) error {
		attrs := f.Header.Attributes(variable)
		if len(attrs) == 0 {
			return nil
		}
		c, err := table.AddContainer(container)
		if err != nil {
			return err
		}
		for _, attr := range attrs {
			raw := f.Header.GetAttribute(variable, attr)
			if raw == nil {
				continue
			}
			tag, values, err := convert(raw)
			if err != nil {
				return fmt.Errorf("attribute %s of %s: %w", attr, container, err)
			}
			if tag == dap.String {
				values = []any{attributeString(values)}
			}
			if len(values) == 0 {
				// zero-length numeric attributes have no DAS form
				continue
			}
			if _, err := c.AddAttribute(attr, tag, values...); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(das.GlobalContainer, ""); err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := add(name, name); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func attributeString(values []any) string {
	if len(values) == 1 {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	chars := make([]byte, 0, len(values))
	for _, v := range values {
		if b, ok := v.(byte); ok {
			chars = append(chars, b)
		}
	}
	return string(bytes.TrimRight(chars, "\x00"))
}
