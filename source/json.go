package source

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/wkalt/dapd/dap"
	"github.com/wkalt/dapd/dataset"
)

// JSON is a dataset stored as DDS and DAS text plus a JSON document of
// values. The document maps variable paths to values:
//
//	{
//	  "b": 42,
//	  "a": [[1, 2], [3, 4]],
//	  "site": {"lat": 1.5, "lon": 2.5},
//	  "obs": [{"id": 1, "name": "x"}, {"id": 2, "name": "y"}]
//	}
//
// Scalars take a number or string, arrays take (possibly nested) lists in
// row-major order, structures and grids take objects keyed by member name,
// and sequences take lists of row objects. Omitted variables stay unset.
type JSON struct {
	DDS    []byte
	DAS    []byte
	Values []byte
}

// Load parses the DDS and DAS and assigns values from the document.
func (s JSON) Load(_ context.Context) (*dataset.Dataset, error) {
	ds, err := build(s.DDS, s.DAS)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(s.Values)) == 0 {
		return ds, nil
	}
	dec := json.NewDecoder(bytes.NewReader(s.Values))
	dec.UseNumber()
	doc := map[string]any{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode values: %w", err)
	}
	paths := make([]string, 0, len(doc))
	for path := range doc {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		v, err := ds.Variable(path)
		if err != nil {
			return nil, err
		}
		if err := assign(v, doc[path]); err != nil {
			return nil, fmt.Errorf("failed to assign %s: %w", path, err)
		}
	}
	return ds, nil
}

func assign(v *dap.Variable, raw any) error {
	switch v.Kind() {
	case dap.KindScalar:
		return assignScalar(v, raw)
	case dap.KindArray:
		return assignArray(v, raw)
	case dap.KindStructure, dap.KindGrid:
		return assignMembers(v, raw)
	case dap.KindSequence:
		return assignRows(v, raw)
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
}

func scalarValue(tag dap.TypeTag, raw any) (any, error) {
	switch x := raw.(type) {
	case json.Number:
		return dap.ParseValue(tag, x.String())
	case string:
		if tag == dap.String || tag == dap.URL {
			return x, nil
		}
		// NaN and the infinities have no JSON number form.
		if tag == dap.Float32 || tag == dap.Float64 {
			return dap.ParseValue(tag, x)
		}
		return nil, dap.TypeMismatchError{Tag: tag, Value: x}
	default:
		return nil, dap.TypeMismatchError{Tag: tag, Value: raw}
	}
}

func assignScalar(v *dap.Variable, raw any) error {
	if raw == nil {
		return v.Unset()
	}
	value, err := scalarValue(v.Tag(), raw)
	if err != nil {
		return err
	}
	return v.SetValue(value)
}

// flatten appends the leaves of nested lists in row-major order.
func flatten(raw any, out []any) []any {
	list, ok := raw.([]any)
	if !ok {
		return append(out, raw)
	}
	for _, x := range list {
		out = flatten(x, out)
	}
	return out
}

func assignArray(v *dap.Variable, raw any) error {
	if _, ok := raw.([]any); !ok {
		return fmt.Errorf("expected a list for array %s", v.Path())
	}
	template := v.Template()
	if !template.Tag().IsScalar() {
		list := raw.([]any)
		data := make([]any, 0, len(list))
		for _, x := range list {
			elem := v.NewElement()
			if err := assign(elem, x); err != nil {
				return err
			}
			data = append(data, elem)
		}
		return v.SetData(data)
	}
	leaves := flatten(raw, nil)
	if len(leaves) != v.Len() {
		return dap.ArrayLengthError{Name: v.Path(), Want: v.Len(), Got: len(leaves)}
	}
	data := make([]any, len(leaves))
	for i, x := range leaves {
		value, err := scalarValue(template.Tag(), x)
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		data[i] = value
	}
	return v.SetData(data)
}

func assignMembers(v *dap.Variable, raw any) error {
	obj, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("expected an object for %s", v.Path())
	}
	for child := range v.Children() {
		x, ok := obj[child.Name()]
		if !ok {
			continue
		}
		if err := assign(child, x); err != nil {
			return err
		}
	}
	for name := range obj {
		if _, err := v.Child(name); err != nil {
			return err
		}
	}
	return nil
}

func assignRows(v *dap.Variable, raw any) error {
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("expected a list of rows for sequence %s", v.Path())
	}
	if err := v.ClearRows(); err != nil {
		return err
	}
	for i, x := range list {
		obj, ok := x.(map[string]any)
		if !ok {
			return fmt.Errorf("row %d of %s is not an object", i, v.Path())
		}
		row := v.NewRow()
		for _, member := range row {
			value, ok := obj[member.Name()]
			if !ok {
				return fmt.Errorf("row %d of %s: missing member %s", i, v.Path(), member.Name())
			}
			if err := assign(member, value); err != nil {
				return err
			}
		}
		if err := v.AppendRow(row...); err != nil {
			return err
		}
	}
	return nil
}
