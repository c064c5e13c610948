package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/goccy/go-json"
	"github.com/wkalt/dapd/dap"
	"github.com/wkalt/dapd/das"
	"github.com/wkalt/dapd/dataset"
)

// JSON renders a dataset as a JSON document:
//
//	{
//	  "name": "sample",
//	  "attributes": {"b": {"units": "count"}},
//	  "variables": {"b": 42, "a": [[1, 2], [3, 4]], "obs": [{"id": 1}]}
//	}
//
// Object keys keep declaration order. Structures and grids become objects,
// arrays nested lists over their dimensions, and sequences lists of row
// objects. Unset scalars are null, and non-finite floats are rendered as the
// strings "NaN", "Inf" and "-Inf". Attributes with a single value are
// rendered as that value, otherwise as a list.
type JSON struct {
	w     io.Writer
	attrs *das.Table
	value any
}

// NewJSON returns a JSON renderer writing to w. Attributes may be nil.
func NewJSON(w io.Writer, attrs *das.Table) *JSON {
	return &JSON{w: w, attrs: attrs}
}

// WriteJSON renders a dataset.
func WriteJSON(w io.Writer, ds *dataset.Dataset) error {
	return NewJSON(w, ds.Attributes()).Write(ds.Name(), ds.Variables())
}

// Write renders the named variables as a single document.
func (r *JSON) Write(name string, vars []*dap.Variable) error {
	variables := object{}
	for _, v := range vars {
		x, err := r.eval(v)
		if err != nil {
			return err
		}
		variables = append(variables, member{v.Name(), x})
	}
	doc := object{{"name", name}}
	if r.attrs != nil {
		doc = append(doc, member{"attributes", containers(r.attrs.Containers())})
	}
	doc = append(doc, member{"variables", variables})
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return nil
}

func (r *JSON) eval(v *dap.Variable) (any, error) {
	if err := dap.Render(v, r); err != nil {
		return nil, err
	}
	return r.value, nil
}

// RenderScalar renders a scalar value.
func (r *JSON) RenderScalar(v *dap.Variable) error {
	x, ok := v.Value()
	if !ok {
		r.value = nil
		return nil
	}
	r.value = jsonScalar(x)
	return nil
}

// RenderArray renders an array as nested lists.
func (r *JSON) RenderArray(v *dap.Variable) error {
	data := v.Data()
	elems := make([]any, len(data))
	for i, x := range data {
		if elem, ok := x.(*dap.Variable); ok {
			value, err := r.eval(elem)
			if err != nil {
				return err
			}
			elems[i] = value
			continue
		}
		elems[i] = jsonScalar(x)
	}
	r.value = nest(elems, v.Dims())
	return nil
}

// RenderStructure renders an object of the members.
func (r *JSON) RenderStructure(v *dap.Variable) error {
	obj := object{}
	for child := range v.Children() {
		x, err := r.eval(child)
		if err != nil {
			return err
		}
		obj = append(obj, member{child.Name(), x})
	}
	r.value = obj
	return nil
}

// RenderSequence renders a list of row objects.
func (r *JSON) RenderSequence(v *dap.Variable) error {
	rows := v.Rows()
	out := []any{}
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read rows of %s: %w", v.Path(), err)
		}
		obj := make(object, 0, len(row))
		for _, m := range row {
			x, err := r.eval(m)
			if err != nil {
				return err
			}
			obj = append(obj, member{m.Name(), x})
		}
		out = append(out, obj)
	}
	r.value = out
	return nil
}

// RenderGrid renders an object of the array and its maps.
func (r *JSON) RenderGrid(v *dap.Variable) error {
	return r.RenderStructure(v)
}

func jsonScalar(x any) any {
	switch f := x.(type) {
	case float32:
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return dap.FormatValue(f)
		}
	case float64:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return dap.FormatValue(f)
		}
	}
	return x
}

// nest folds flat row-major elements into lists over dims.
func nest(elems []any, dims []dap.Dim) any {
	if len(dims) <= 1 {
		return elems
	}
	stride := len(elems)
	if dims[0].Size > 0 {
		stride /= dims[0].Size
	}
	out := make([]any, dims[0].Size)
	for i := range out {
		out[i] = nest(elems[i*stride:(i+1)*stride], dims[1:])
	}
	return out
}

func containers(cs []*das.Container) object {
	obj := make(object, 0, len(cs))
	for _, c := range cs {
		inner := object{}
		for _, a := range c.Attributes() {
			values := make([]any, len(a.Values))
			for i, x := range a.Values {
				values[i] = jsonScalar(x)
			}
			if len(values) == 1 {
				inner = append(inner, member{a.Name, values[0]})
			} else {
				inner = append(inner, member{a.Name, values})
			}
		}
		inner = append(inner, containers(c.Containers())...)
		obj = append(obj, member{c.Name(), inner})
	}
	return obj
}

type member struct {
	key   string
	value any
}

// object is a JSON object with ordered keys.
type object []member

func (o object) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal key: %w", err)
		}
		value, err := json.Marshal(m.value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", m.key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
