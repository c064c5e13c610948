package dataset

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wkalt/dapd/dap"
)

// Project returns an unfrozen copy of the dataset holding only the requested
// variables. A path into a structure or sequence keeps the enclosing
// constructor with only the selected members. A partially selected grid
// becomes a structure of the selected components. Arrays of structures are
// kept whole. With no paths the whole dataset is copied.
func (d *Dataset) Project(paths ...string) (*Dataset, error) {
	if len(paths) == 0 {
		return d.Clone(), nil
	}
	out := &Dataset{
		name:        d.name,
		attributes:  d.attributes.Clone(),
		unreachable: append([]string{}, d.unreachable...),
	}
	sel := selection{}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := d.Variable(path); err != nil {
			return nil, err
		}
		sel[path] = true
	}
	if len(sel) == 0 {
		return d.Clone(), nil
	}
	for _, v := range d.variables {
		if !sel.touches(v.Path()) {
			continue
		}
		p, err := sel.project(v)
		if err != nil {
			return nil, err
		}
		out.variables = append(out.variables, p)
	}
	return out, nil
}

type selection map[string]bool

// touches reports whether path is selected, or lies above a selected path.
func (s selection) touches(path string) bool {
	if s[path] {
		return true
	}
	for p := range s {
		if strings.HasPrefix(p, path+".") {
			return true
		}
	}
	return false
}

func (s selection) project(v *dap.Variable) (*dap.Variable, error) {
	if s[v.Path()] {
		return v.Clone(), nil
	}
	switch v.Kind() {
	case dap.KindStructure, dap.KindGrid:
		out, err := dap.NewStructure(v.Name())
		if err != nil {
			return nil, err
		}
		if err := s.addMembers(out, v); err != nil {
			return nil, err
		}
		return out, nil
	case dap.KindSequence:
		return s.projectSequence(v)
	default:
		return v.Clone(), nil
	}
}

func (s selection) addMembers(out, v *dap.Variable) error {
	for child := range v.Children() {
		if !s.touches(child.Path()) {
			continue
		}
		p, err := s.project(child)
		if err != nil {
			return err
		}
		if err := out.AddChild(p); err != nil {
			return fmt.Errorf("failed to project %s: %w", child.Path(), err)
		}
	}
	return nil
}

func (s selection) projectSequence(v *dap.Variable) (*dap.Variable, error) {
	out, err := dap.NewSequence(v.Name())
	if err != nil {
		return nil, err
	}
	var keep []int
	i := 0
	for child := range v.Children() {
		if s.touches(child.Path()) {
			keep = append(keep, i)
		}
		i++
	}
	if err := s.addMembers(out, v); err != nil {
		return nil, err
	}
	project := func(row []*dap.Variable) ([]*dap.Variable, error) {
		projected := make([]*dap.Variable, len(keep))
		for j, k := range keep {
			member, err := s.project(row[k])
			if err != nil {
				return nil, err
			}
			projected[j] = member
		}
		return projected, nil
	}
	rows := v.Rows()
	if v.Streaming() {
		err := out.SetRowSource(dap.RowFunc(func() ([]*dap.Variable, error) {
			row, err := rows.Next()
			if err != nil {
				return nil, err
			}
			return project(row)
		}))
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		projected, err := project(row)
		if err != nil {
			return nil, err
		}
		if err := out.AppendRow(projected...); err != nil {
			return nil, err
		}
	}
}
